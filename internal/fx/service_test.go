package fx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimchiscan/kimchiscan/internal/infrastructure/httpclient"
	"github.com/kimchiscan/kimchiscan/internal/models"
)

type fakeFxStore struct {
	rows []models.FxRate
}

func (f *fakeFxStore) InsertFxRate(_ context.Context, currencyCode string, rate decimal.Decimal, ttb, tts decimal.NullDecimal) error {
	f.rows = append(f.rows, models.FxRate{
		ID:           int64(len(f.rows) + 1),
		CurrencyCode: currencyCode,
		Rate:         rate,
		TTBRate:      ttb,
		TTSRate:      tts,
		CreatedAt:    time.Now().UTC(),
	})
	return nil
}

func (f *fakeFxStore) LatestFxRate(_ context.Context, currencyCode string) (*models.FxRate, error) {
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].CurrencyCode == currencyCode {
			return &f.rows[i], nil
		}
	}
	return nil, models.ErrNotFound
}

func newTestService(t *testing.T, naverHandler, eximHandler http.HandlerFunc) (*Service, *fakeFxStore) {
	t.Helper()

	naverSrv := httptest.NewServer(naverHandler)
	eximSrv := httptest.NewServer(eximHandler)
	t.Cleanup(naverSrv.Close)
	t.Cleanup(eximSrv.Close)

	store := &fakeFxStore{}
	svc := NewService(httpclient.New(5*time.Second), store, "test-key", Options{
		NaverURL:        naverSrv.URL,
		EximbankBaseURL: eximSrv.URL,
	})

	return svc, store
}

func serve500(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusInternalServerError)
}

func TestNaverScanPicksMaxPlausibleToken(t *testing.T) {
	naver := func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("Referer"))
		w.Write([]byte(`{"country":[{"currencyUnit":"1","value":"1,388.50"},{"subValue":"985.20"},{"noise":"250000"}]}`))
	}

	svc, store := newTestService(t, naver, serve500)

	rate, err := svc.FetchAndSaveUsdKrwRate(context.Background())
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1388.5")))

	require.Len(t, store.rows, 1)
	assert.Equal(t, "USD", store.rows[0].CurrencyCode)
	assert.False(t, store.rows[0].TTBRate.Valid)
}

func TestFxFallsBackToEximbank(t *testing.T) {
	exim := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("authkey"))
		assert.Equal(t, "AP01", r.URL.Query().Get("data"))
		w.Write([]byte(`[
			{"cur_unit":"EUR","deal_bas_r":"1,501.22","ttb":"1,486.30","tts":"1,516.14"},
			{"cur_unit":"USD","deal_bas_r":"1,388.50","ttb":"1,374.80","tts":"1,402.20"}
		]`))
	}

	svc, store := newTestService(t, serve500, exim)

	rate, err := svc.FetchAndSaveUsdKrwRate(context.Background())
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1388.50")))

	require.Len(t, store.rows, 1)
	assert.True(t, store.rows[0].TTBRate.Valid)
	assert.True(t, store.rows[0].TTSRate.Decimal.Equal(decimal.RequireFromString("1402.20")))

	got := svc.GetLatestUsdKrwRate(context.Background())
	assert.True(t, got.Equal(rate))
}

func TestFxTotalFailureReturnsErrorAndPersistsNothing(t *testing.T) {
	svc, store := newTestService(t, serve500, serve500)

	_, err := svc.FetchAndSaveUsdKrwRate(context.Background())
	require.Error(t, err)
	assert.Empty(t, store.rows)
}

func TestGetLatestUsdKrwRateFallsBackToConstant(t *testing.T) {
	svc, store := newTestService(t, serve500, serve500)

	rate := svc.GetLatestUsdKrwRate(context.Background())
	assert.True(t, rate.Equal(FallbackUsdKrw))
	assert.Empty(t, store.rows, "fallback rate must never be persisted")
}

func TestGetLatestUsdKrwRatePrefersStoredRate(t *testing.T) {
	svc, store := newTestService(t, serve500, serve500)

	require.NoError(t, store.InsertFxRate(context.Background(), "USD",
		decimal.RequireFromString("1350.00"), decimal.NullDecimal{}, decimal.NullDecimal{}))

	rate := svc.GetLatestUsdKrwRate(context.Background())
	assert.True(t, rate.Equal(decimal.RequireFromString("1350.00")))
}

func TestEximbankNoUSDRowFails(t *testing.T) {
	exim := func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"cur_unit":"EUR","deal_bas_r":"1,501.22","ttb":"","tts":""}]`))
	}

	svc, _ := newTestService(t, serve500, exim)

	_, err := svc.FetchAndSaveUsdKrwRate(context.Background())
	require.Error(t, err)
}
