package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/percyitchy/xleaderboard/pkg/types"
	"go.uber.org/zap"
)

// Session is a connected wallet: signing identity, proxy wallet and the L2
// API credentials derived for it. Everything becomes unavailable after
// Disconnect.
type Session struct {
	mu          sync.RWMutex
	signer      *LocalSigner
	proxy       string
	credentials *types.APICredentials
	connected   bool
	logger      *zap.Logger
}

// SessionConfig holds configuration for a wallet session.
type SessionConfig struct {
	Signer       *LocalSigner
	ProxyAddress string // defaults to the signer address
	Credentials  *types.APICredentials
	Logger       *zap.Logger
}

// NewSession creates a connected session.
func NewSession(cfg *SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	proxy := cfg.ProxyAddress
	if proxy == "" && cfg.Signer != nil {
		proxy = cfg.Signer.Address().Hex()
	}

	connected := cfg.Signer != nil
	if connected {
		Connected.Set(1)
	}

	return &Session{
		signer:      cfg.Signer,
		proxy:       proxy,
		credentials: cfg.Credentials,
		connected:   connected,
		logger:      logger,
	}
}

// Identity returns the signing and proxy addresses.
func (s *Session) Identity() (types.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return types.Identity{}, fmt.Errorf("wallet disconnected: %w", types.ErrCredentialsUnavailable)
	}

	return types.Identity{
		Address:      s.signer.Address().Hex(),
		ProxyAddress: s.proxy,
	}, nil
}

// Credentials returns a copy of the L2 API credentials.
func (s *Session) Credentials() (*types.APICredentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return nil, fmt.Errorf("wallet disconnected: %w", types.ErrCredentialsUnavailable)
	}
	if !s.credentials.Complete() {
		return nil, fmt.Errorf("api credentials missing: %w", types.ErrCredentialsUnavailable)
	}

	creds := *s.credentials
	return &creds, nil
}

// SignTypedData signs through the session's signer.
func (s *Session) SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error) {
	s.mu.RLock()
	signer, connected := s.signer, s.connected
	s.mu.RUnlock()

	if !connected {
		SignaturesTotal.WithLabelValues("disconnected").Inc()
		return nil, fmt.Errorf("wallet disconnected: %w", types.ErrCredentialsUnavailable)
	}

	return signer.SignTypedData(ctx, data)
}

// Disconnect drops the identity and credentials.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return
	}

	s.connected = false
	s.credentials = nil
	Connected.Set(0)
	s.logger.Info("wallet-disconnected")
}
