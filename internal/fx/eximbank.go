package fx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kimchiscan/kimchiscan/internal/infrastructure/httpclient"
	"github.com/kimchiscan/kimchiscan/internal/models"
)

const eximbankBaseURL = "https://oapi.koreaexim.go.kr"

type eximbankProvider struct {
	fetcher *httpclient.Fetcher
	baseURL string
	authKey string
}

func newEximbankProvider(fetcher *httpclient.Fetcher, baseURL, authKey string) *eximbankProvider {
	if baseURL == "" {
		baseURL = eximbankBaseURL
	}
	return &eximbankProvider{fetcher: fetcher, baseURL: baseURL, authKey: authKey}
}

type eximbankRow struct {
	CurUnit  string `json:"cur_unit"`
	DealBasR string `json:"deal_bas_r"`
	TTB      string `json:"ttb"`
	TTS      string `json:"tts"`
}

// fetch reads the daily AP01 table and returns the USD row's base rate
// plus the telegraphic buy/sell rates. Eximbank formats numbers with
// thousands commas.
func (e *eximbankProvider) fetch(ctx context.Context) (decimal.Decimal, decimal.NullDecimal, decimal.NullDecimal, error) {
	url := fmt.Sprintf("%s/site/program/financial/exchangeJSON?authkey=%s&searchdate=%s&data=AP01",
		e.baseURL, e.authKey, time.Now().UTC().Format("20060102"))

	var rows []eximbankRow
	if err := e.fetcher.GetJSON(ctx, "eximbank", url, nil, &rows); err != nil {
		return decimal.Zero, decimal.NullDecimal{}, decimal.NullDecimal{}, &models.ExternalAPIError{Provider: "eximbank", Err: err}
	}

	for _, row := range rows {
		if row.CurUnit != "USD" {
			continue
		}

		rate, err := decimal.NewFromString(strings.ReplaceAll(row.DealBasR, ",", ""))
		if err != nil {
			return decimal.Zero, decimal.NullDecimal{}, decimal.NullDecimal{}, &models.ExternalAPIError{
				Provider: "eximbank",
				Err:      fmt.Errorf("parsing deal_bas_r %q: %w", row.DealBasR, err),
			}
		}

		return rate, parseOptionalRate(row.TTB), parseOptionalRate(row.TTS), nil
	}

	return decimal.Zero, decimal.NullDecimal{}, decimal.NullDecimal{}, &models.ExternalAPIError{
		Provider: "eximbank",
		Err:      fmt.Errorf("no USD row in response"),
	}
}

func parseOptionalRate(s string) decimal.NullDecimal {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
