package fx

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kimchiscan/kimchiscan/internal/infrastructure/httpclient"
	"github.com/kimchiscan/kimchiscan/internal/models"
)

const naverFxURL = "https://m.search.naver.com/p/csearch/content/qapirender.nhn?key=calculator&pkid=141&q=%ED%99%98%EC%9C%A8&where=m&u1=keb&u6=standardUnit&u7=0&u3=USD&u4=KRW&u8=down&u2=1"

// Without browser-looking headers Naver serves an empty shell.
var naverHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
	"Referer":    "https://m.search.naver.com/",
	"Accept":     "application/json, text/plain, */*",
}

var numericToken = regexp.MustCompile(`[0-9][0-9,]*(?:\.[0-9]+)?`)

// Plausibility window for a USD/KRW quote. Tokens outside it are page
// noise (timestamps, ids, unit counts), not rates.
const (
	naverRateFloor = 900.0
	naverRateCeil  = 2000.0
)

type naverProvider struct {
	fetcher *httpclient.Fetcher
	url     string
}

func newNaverProvider(fetcher *httpclient.Fetcher, url string) *naverProvider {
	if url == "" {
		url = naverFxURL
	}
	return &naverProvider{fetcher: fetcher, url: url}
}

// fetch scans the calculator response for numeric tokens and keeps the
// largest one inside the plausibility window. Floats appear only during
// the scan; the winner is widened to decimal immediately.
func (n *naverProvider) fetch(ctx context.Context) (decimal.Decimal, error) {
	body, err := n.fetcher.GetBody(ctx, "naver", n.url, naverHeaders)
	if err != nil {
		return decimal.Zero, &models.ExternalAPIError{Provider: "naver", Err: err}
	}

	best := 0.0
	for _, token := range numericToken.FindAllString(string(body), -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(token, ",", ""), 64)
		if err != nil {
			continue
		}
		if v < naverRateFloor || v > naverRateCeil {
			continue
		}
		if v > best {
			best = v
		}
	}

	if best == 0 {
		return decimal.Zero, &models.ExternalAPIError{Provider: "naver", Err: fmt.Errorf("no plausible USD/KRW token in response")}
	}

	return decimal.NewFromFloat(best), nil
}
