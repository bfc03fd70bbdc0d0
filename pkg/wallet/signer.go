package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/percyitchy/xleaderboard/pkg/types"
	"go.uber.org/zap"
)

// ApproveFunc decides whether a signature request is granted. It plays the
// part of the user's confirmation prompt.
type ApproveFunc func(ctx context.Context, data apitypes.TypedData) bool

// LocalSigner signs EIP-712 typed data with a private key held in memory.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	approve ApproveFunc
	logger  *zap.Logger
}

// SignerConfig holds configuration for a local signer.
type SignerConfig struct {
	PrivateKey string // hex, with or without 0x
	Approve    ApproveFunc
	Logger     *zap.Logger
}

// NewLocalSigner creates a signer from a hex private key.
func NewLocalSigner(cfg *SignerConfig) (*LocalSigner, error) {
	if cfg.PrivateKey == "" {
		return nil, errors.New("private key cannot be empty")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		approve: cfg.Approve,
		logger:  logger,
	}, nil
}

// Address returns the signer's address.
func (s *LocalSigner) Address() common.Address {
	return s.address
}

// SignTypedData hashes data per EIP-712 and returns a 65-byte signature with
// V in {27, 28}. A declined approval yields a WalletError with code 4001.
func (s *LocalSigner) SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	if s.approve != nil && !s.approve(ctx, data) {
		SignaturesTotal.WithLabelValues("rejected").Inc()
		s.logger.Info("signature-rejected", zap.String("primary-type", data.PrimaryType))
		return nil, &types.WalletError{Code: types.UserRejectedCode, Message: "User rejected the request."}
	}

	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		SignaturesTotal.WithLabelValues("error").Inc()
		return nil, &types.WalletError{Code: -32602, Message: fmt.Sprintf("hash typed data: %v", err)}
	}

	signature, err := crypto.Sign(hash, s.key)
	if err != nil {
		SignaturesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	signature[64] += 27

	SignaturesTotal.WithLabelValues("ok").Inc()
	s.logger.Debug("typed-data-signed",
		zap.String("primary-type", data.PrimaryType),
		zap.String("signer", s.address.Hex()))

	return signature, nil
}

// RecoverTypedDataSigner returns the address that produced signature over data.
func RecoverTypedDataSigner(data apitypes.TypedData, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(signature))
	}

	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return common.Address{}, fmt.Errorf("hash typed data: %w", err)
	}

	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}
