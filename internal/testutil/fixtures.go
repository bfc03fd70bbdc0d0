package testutil

import (
	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/shopspring/decimal"
)

// Well-known fixture values shared by package tests.
const (
	TestTokenID = "71321045679252212594626385532706912750332728571942532289631379312455583992563"

	// TestPrivateKey is a throwaway key; never fund it.
	TestPrivateKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

	TestProxyAddress = "0x1234567890abcdef1234567890abcdef12345678"
	ExchangeAddress  = "0x4bfb41d5b3570defd03c39a9a4d8de6bd8b8982e"
)

// TestCredentials returns a complete set of L2 credentials.
func TestCredentials() *types.APICredentials {
	return &types.APICredentials{
		APIKey:     "test-api-key",
		Secret:     "dGVzdC1zZWNyZXQ=",
		Passphrase: "test-passphrase",
	}
}

// Dec parses a decimal literal, panicking on malformed input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// FillableDepth is a depth answer that fills completely.
func FillableDepth(vwap, best, worst string) *types.DepthResponse {
	return &types.DepthResponse{
		VWAP:        decimal.NewNullDecimal(Dec(vwap)),
		BestPrice:   Dec(best),
		WorstPrice:  Dec(worst),
		TotalShares: Dec("10"),
		LevelsUsed:  2,
		IsFillable:  true,
	}
}

// ThinDepth is a depth answer that leaves remaining notional unfilled.
func ThinDepth(worst, remaining string) *types.DepthResponse {
	return &types.DepthResponse{
		VWAP:          decimal.NewNullDecimal(Dec(worst)),
		BestPrice:     Dec(worst),
		WorstPrice:    Dec(worst),
		TotalShares:   Dec("5"),
		LevelsUsed:    1,
		IsFillable:    false,
		RemainingUSDC: Dec(remaining),
	}
}
