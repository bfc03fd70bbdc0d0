package signing

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/google/uuid"
	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/polymarket/go-order-utils/pkg/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Step is an observable stage of PrepareAndSign.
type Step string

const (
	StepPreparing Step = "preparing"
	StepSigning   Step = "signing"
)

//nolint:gochecknoglobals // field tables
// integerFields are the order message fields parsed as exact integers.
var integerFields = []string{
	"salt", "tokenId", "makerAmount", "takerAmount", "expiration",
	"nonce", "feeRateBps", "side", "signatureType",
}

// addressFields are the order message fields holding addresses.
var addressFields = []string{"maker", "signer", "taker"}

// Preparer builds unsigned orders.
type Preparer interface {
	PrepareOrder(ctx context.Context, req *types.PrepareOrderRequest) (*types.UnsignedOrder, error)
}

// Signer signs EIP-712 typed data. Declines are reported as *types.WalletError.
type Signer interface {
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
}

// IdentityProvider returns the connected wallet identity. It fails with
// types.ErrCredentialsUnavailable once the wallet disconnects.
type IdentityProvider interface {
	Identity() (types.Identity, error)
}

// OrderRequest is a frozen order intent with its resolved price.
type OrderRequest struct {
	TokenID string
	Side    types.Side
	Kind    types.OrderKind
	Price   decimal.Decimal
	Shares  decimal.Decimal
}

// SignedPayload is one attempt's signed order.
type SignedPayload struct {
	AttemptID string
	Salt      string
	Order     *model.SignedOrder
	TypedData apitypes.TypedData
	Signed    types.SignedTypedOrder
}

// Coordinator prepares a fresh unsigned order for every attempt and has the
// wallet sign it.
type Coordinator struct {
	preparer Preparer
	signer   Signer
	identity IdentityProvider
	logger   *zap.Logger
}

// Config holds configuration for the coordinator.
type Config struct {
	Preparer Preparer
	Signer   Signer
	Identity IdentityProvider
	Logger   *zap.Logger
}

// New creates a new signing coordinator.
func New(cfg *Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		preparer: cfg.Preparer,
		signer:   cfg.Signer,
		identity: cfg.Identity,
		logger:   logger,
	}
}

// PrepareAndSign runs one prepare/sign cycle under a newly minted attempt id.
// salts holds every salt already signed in the session; a repeated salt is
// refused. onStep, if non-nil, is called on entering each step.
func (c *Coordinator) PrepareAndSign(
	ctx context.Context,
	req *OrderRequest,
	salts *SaltSet,
	onStep func(Step),
) (*SignedPayload, error) {
	attemptID := uuid.NewString()
	notify(onStep, StepPreparing)

	identity, err := c.identity.Identity()
	if err != nil {
		return nil, fmt.Errorf("read identity: %w", err)
	}

	unsigned, err := c.preparer.PrepareOrder(ctx, &types.PrepareOrderRequest{
		UserAddress:  identity.Address,
		ProxyAddress: identity.ProxyAddress,
		TokenID:      req.TokenID,
		Price:        req.Price.InexactFloat64(),
		Size:         req.Shares.InexactFloat64(),
		Side:         string(req.Side),
		OrderType:    req.Kind.OrderType(),
		AttemptID:    attemptID,
	})
	if err != nil {
		var rejected *types.PrepareRejectedError
		if errors.As(err, &rejected) {
			PreparedTotal.WithLabelValues("rejected").Inc()
		} else {
			PreparedTotal.WithLabelValues("error").Inc()
		}
		return nil, fmt.Errorf("prepare order: %w", err)
	}

	order, err := ToModelOrder(unsigned)
	if err != nil {
		PreparedTotal.WithLabelValues("rejected").Inc()
		return nil, &types.PrepareRejectedError{Reason: err.Error()}
	}

	err = checkOrder(order, req, identity)
	if err != nil {
		PreparedTotal.WithLabelValues("rejected").Inc()
		return nil, &types.PrepareRejectedError{Reason: err.Error()}
	}

	salt := order.Salt.String()
	if salts != nil && !salts.Add(salt) {
		PreparedTotal.WithLabelValues("rejected").Inc()
		c.logger.Warn("salt-reused",
			zap.String("attempt-id", attemptID),
			zap.String("salt", salt))
		return nil, &types.PrepareRejectedError{Reason: "salt reused"}
	}
	PreparedTotal.WithLabelValues("ok").Inc()

	typedData, err := BuildTypedData(unsigned, order)
	if err != nil {
		return nil, &types.PrepareRejectedError{Reason: err.Error()}
	}

	c.logger.Info("order-prepared",
		zap.String("attempt-id", attemptID),
		zap.String("salt", salt),
		zap.String("token-id", req.TokenID),
		zap.String("side", string(req.Side)),
		zap.String("price", req.Price.String()),
		zap.String("shares", req.Shares.String()))

	notify(onStep, StepSigning)

	start := time.Now()
	signature, err := c.signer.SignTypedData(ctx, typedData)
	SigningDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, types.ErrWalletRejected) {
			SignedTotal.WithLabelValues("rejected").Inc()
		} else {
			SignedTotal.WithLabelValues("error").Inc()
		}
		return nil, fmt.Errorf("sign order: %w", err)
	}
	SignedTotal.WithLabelValues("ok").Inc()

	sigHex := hexutil.Encode(signature)

	return &SignedPayload{
		AttemptID: attemptID,
		Salt:      salt,
		Order:     &model.SignedOrder{Order: *order, Signature: signature},
		TypedData: typedData,
		Signed: types.SignedTypedOrder{
			Types:       unsigned.Types,
			Domain:      unsigned.Domain,
			PrimaryType: unsigned.PrimaryType,
			Message:     messageStrings(unsigned.Message),
			Signature:   sigHex,
		},
	}, nil
}

// ToModelOrder parses the message of an unsigned order into exact integers.
func ToModelOrder(unsigned *types.UnsignedOrder) (*model.Order, error) {
	if unsigned == nil || unsigned.Message == nil {
		return nil, fmt.Errorf("empty order payload")
	}

	ints := make(map[string]*big.Int, len(integerFields))
	for _, field := range integerFields {
		n, err := unsigned.Message[field].BigInt()
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		if n.Sign() < 0 {
			return nil, fmt.Errorf("field %s: negative value", field)
		}
		ints[field] = n
	}

	addrs := make(map[string]common.Address, len(addressFields))
	for _, field := range addressFields {
		raw := unsigned.Message[field].String()
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("field %s: invalid address %q", field, raw)
		}
		addrs[field] = common.HexToAddress(raw)
	}

	return &model.Order{
		Salt:          ints["salt"],
		Maker:         addrs["maker"],
		Signer:        addrs["signer"],
		Taker:         addrs["taker"],
		TokenId:       ints["tokenId"],
		MakerAmount:   ints["makerAmount"],
		TakerAmount:   ints["takerAmount"],
		Expiration:    ints["expiration"],
		Nonce:         ints["nonce"],
		FeeRateBps:    ints["feeRateBps"],
		Side:          ints["side"],
		SignatureType: ints["signatureType"],
	}, nil
}

// BuildTypedData converts the backend payload into go-ethereum typed data,
// passing every integer as a big integer.
func BuildTypedData(unsigned *types.UnsignedOrder, order *model.Order) (apitypes.TypedData, error) {
	chainID, err := unsigned.Domain.ChainID.BigInt()
	if err != nil {
		return apitypes.TypedData{}, fmt.Errorf("domain chainId: %w", err)
	}

	if !common.IsHexAddress(unsigned.Domain.VerifyingContract) {
		return apitypes.TypedData{}, fmt.Errorf("domain verifyingContract: invalid address %q", unsigned.Domain.VerifyingContract)
	}

	primary := unsigned.PrimaryType
	if primary == "" {
		primary = "Order"
	}
	if _, ok := unsigned.Types[primary]; !ok {
		return apitypes.TypedData{}, fmt.Errorf("missing type definition for %s", primary)
	}

	typeDefs := make(apitypes.Types, len(unsigned.Types))
	for name, fields := range unsigned.Types {
		converted := make([]apitypes.Type, 0, len(fields))
		for _, f := range fields {
			converted = append(converted, apitypes.Type{Name: f.Name, Type: f.Type})
		}
		typeDefs[name] = converted
	}

	return apitypes.TypedData{
		Types:       typeDefs,
		PrimaryType: primary,
		Domain: apitypes.TypedDataDomain{
			Name:              unsigned.Domain.Name,
			Version:           unsigned.Domain.Version,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: common.HexToAddress(unsigned.Domain.VerifyingContract).Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"salt":          order.Salt,
			"maker":         order.Maker.Hex(),
			"signer":        order.Signer.Hex(),
			"taker":         order.Taker.Hex(),
			"tokenId":       order.TokenId,
			"makerAmount":   order.MakerAmount,
			"takerAmount":   order.TakerAmount,
			"expiration":    order.Expiration,
			"nonce":         order.Nonce,
			"feeRateBps":    order.FeeRateBps,
			"side":          order.Side,
			"signatureType": order.SignatureType,
		},
	}, nil
}

// checkOrder refuses payloads that do not describe the requested order.
func checkOrder(order *model.Order, req *OrderRequest, identity types.Identity) error {
	tokenID, ok := new(big.Int).SetString(req.TokenID, 10)
	if !ok || tokenID.Cmp(order.TokenId) != 0 {
		return fmt.Errorf("token id mismatch")
	}

	if order.Signer != common.HexToAddress(identity.Address) {
		return fmt.Errorf("signer mismatch")
	}

	wantSide := int64(model.BUY)
	if req.Side == types.Sell {
		wantSide = int64(model.SELL)
	}
	if order.Side.Cmp(big.NewInt(wantSide)) != 0 {
		return fmt.Errorf("side mismatch")
	}

	return nil
}

func messageStrings(msg map[string]types.FlexString) map[string]string {
	out := make(map[string]string, len(msg))
	for k, v := range msg {
		out[k] = v.String()
	}
	return out
}

func notify(onStep func(Step), step Step) {
	if onStep != nil {
		onStep(step)
	}
}
