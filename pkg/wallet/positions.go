package wallet

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultDataAPIURL is the public Polymarket Data API.
const DefaultDataAPIURL = "https://data-api.polymarket.com"

// Position is one outcome-token holding of a wallet.
type Position struct {
	TokenID      string
	ConditionID  string
	MarketSlug   string
	Outcome      string
	Size         decimal.Decimal
	AvgPrice     decimal.Decimal
	CurrentPrice decimal.Decimal
	Value        decimal.Decimal
}

// dataAPIPosition represents the response from Polymarket Data API.
type dataAPIPosition struct {
	Asset        string          `json:"asset"`
	ConditionID  string          `json:"conditionId"`
	Size         decimal.Decimal `json:"size"`
	AvgPrice     decimal.Decimal `json:"avgPrice"`
	CurrentValue decimal.Decimal `json:"currentValue"`
	CurPrice     decimal.Decimal `json:"curPrice"`
	Slug         string          `json:"slug"`
	Outcome      string          `json:"outcome"`
}

// PositionsClient reads wallet positions from the Data API.
type PositionsClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewPositionsClient creates a Data API client.
func NewPositionsClient(baseURL string, logger *zap.Logger) *PositionsClient {
	if baseURL == "" {
		baseURL = DefaultDataAPIURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PositionsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// GetPositions fetches the non-empty positions held by address.
func (c *PositionsClient) GetPositions(ctx context.Context, address string) ([]Position, error) {
	url := fmt.Sprintf("%s/positions?user=%s&sizeThreshold=0.01", c.baseURL, address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		PositionLookupsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		PositionLookupsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("API error: status %d", resp.StatusCode)
	}

	var apiPositions []dataAPIPosition
	err = json.NewDecoder(resp.Body).Decode(&apiPositions)
	if err != nil {
		PositionLookupsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}
	PositionLookupsTotal.WithLabelValues("ok").Inc()

	positions := make([]Position, 0, len(apiPositions))
	for _, pos := range apiPositions {
		if !pos.Size.IsPositive() {
			continue
		}
		positions = append(positions, Position{
			TokenID:      pos.Asset,
			ConditionID:  pos.ConditionID,
			MarketSlug:   pos.Slug,
			Outcome:      pos.Outcome,
			Size:         pos.Size,
			AvgPrice:     pos.AvgPrice,
			CurrentPrice: pos.CurPrice,
			Value:        pos.CurrentValue,
		})
	}

	c.logger.Debug("positions-fetched",
		zap.String("address", address),
		zap.Int("count", len(positions)))

	return positions, nil
}

// PositionSize returns how many shares of tokenID address holds.
func (c *PositionsClient) PositionSize(ctx context.Context, address, tokenID string) (decimal.Decimal, error) {
	positions, err := c.GetPositions(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}

	for _, pos := range positions {
		if pos.TokenID == tokenID {
			return pos.Size, nil
		}
	}

	return decimal.Zero, fmt.Errorf("no position in token %s", tokenID)
}
