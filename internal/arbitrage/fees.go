package arbitrage

import (
	"github.com/shopspring/decimal"

	"github.com/kimchiscan/kimchiscan/internal/models"
)

// Fee constants in percent-points. A transfer pays the trading fee on
// both legs plus the FX conversion surcharge.
var (
	tradingFeePct  = decimal.NewFromFloat(0.1)
	exchangeFeePct = decimal.NewFromFloat(0.05)
	hundred        = decimal.NewFromInt(100)
)

// withdrawalFeeCoins returns the network withdrawal fee in coin units.
// Per-venue fee tables are a planned follow-up; these are conservative
// mainnet defaults.
func withdrawalFeeCoins(symbol string) decimal.Decimal {
	switch symbol {
	case "BTC":
		return decimal.NewFromFloat(0.0005)
	case "ETH":
		return decimal.NewFromFloat(0.005)
	default:
		return decimal.NewFromFloat(0.001)
	}
}

// totalFeePct is the percent-point fee total used by the arbitrage
// computation: trading fee twice (buy and sell) plus the conversion
// surcharge. The withdrawal fee is coin-denominated and stays out of
// this percent total.
func totalFeePct() decimal.Decimal {
	return tradingFeePct.Mul(decimal.NewFromInt(2)).Add(exchangeFeePct)
}

// FeeBreakdown itemizes the cost of moving a notional amount of a coin.
// Percent fees are applied to the amount; the withdrawal fee is a flat
// coin-unit charge and is included in the breakdown total.
func FeeBreakdown(symbol string, amount decimal.Decimal) models.FeeBreakdown {
	trading := tradingFeePct.Mul(amount).Div(hundred)
	withdrawal := withdrawalFeeCoins(symbol)
	exchange := exchangeFeePct.Mul(amount).Div(hundred)

	return models.FeeBreakdown{
		TradingFee:    trading,
		WithdrawalFee: withdrawal,
		ExchangeFee:   exchange,
		TotalFee:      trading.Add(withdrawal).Add(exchange),
	}
}
