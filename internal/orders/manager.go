// Package orders manages resting orders with the session's credentials.
package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/percyitchy/xleaderboard/pkg/types"
	"go.uber.org/zap"
)

// Backend is the part of the trading API that manages resting orders.
type Backend interface {
	CancelOrder(ctx context.Context, req *types.CancelOrderRequest) (*types.CancelOrderResponse, error)
	OpenOrders(ctx context.Context, req *types.OpenOrdersRequest) (*types.OpenOrdersResponse, error)
}

// Session supplies the wallet identity and API credentials.
type Session interface {
	Identity() (types.Identity, error)
	Credentials() (*types.APICredentials, error)
}

// Manager cancels and lists orders for the connected wallet.
type Manager struct {
	backend Backend
	session Session
	logger  *zap.Logger
}

// Config holds manager configuration.
type Config struct {
	Backend Backend
	Session Session
	Logger  *zap.Logger
}

// New creates a new order manager.
func New(cfg *Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		backend: cfg.Backend,
		session: cfg.Session,
		logger:  logger,
	}
}

// Cancel cancels one resting order.
func (m *Manager) Cancel(ctx context.Context, orderID string) (*types.CancelResult, error) {
	if orderID == "" {
		return nil, errors.New("order id cannot be empty")
	}

	identity, creds, err := m.auth()
	if err != nil {
		return nil, err
	}

	resp, err := m.backend.CancelOrder(ctx, &types.CancelOrderRequest{
		OrderID:        orderID,
		UserAddress:    identity.Address,
		UserAPIKey:     creds.APIKey,
		UserAPISecret:  creds.Secret,
		UserPassphrase: creds.Passphrase,
	})
	if err != nil {
		CancelsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	if reason, ok := resp.Result.NotCanceled[orderID]; ok {
		CancelsTotal.WithLabelValues("rejected").Inc()
		return &resp.Result, fmt.Errorf("order %s not canceled: %s", orderID, reason)
	}

	CancelsTotal.WithLabelValues("canceled").Inc()
	m.logger.Info("order-canceled", zap.String("order-id", orderID))

	return &resp.Result, nil
}

// Open lists the wallet's resting orders.
func (m *Manager) Open(ctx context.Context) ([]types.OpenOrder, error) {
	identity, creds, err := m.auth()
	if err != nil {
		return nil, err
	}

	resp, err := m.backend.OpenOrders(ctx, &types.OpenOrdersRequest{
		UserAddress:    identity.Address,
		UserAPIKey:     creds.APIKey,
		UserAPISecret:  creds.Secret,
		UserPassphrase: creds.Passphrase,
	})
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}

	m.logger.Debug("open-orders-listed", zap.Int("count", len(resp.Orders)))
	return resp.Orders, nil
}

func (m *Manager) auth() (types.Identity, *types.APICredentials, error) {
	identity, err := m.session.Identity()
	if err != nil {
		return types.Identity{}, nil, fmt.Errorf("read identity: %w", err)
	}

	creds, err := m.session.Credentials()
	if err != nil {
		return types.Identity{}, nil, fmt.Errorf("read credentials: %w", err)
	}

	return identity, creds, nil
}
