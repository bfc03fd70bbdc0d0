package signing

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/percyitchy/xleaderboard/internal/backend"
	"github.com/percyitchy/xleaderboard/internal/testutil"
	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/percyitchy/xleaderboard/pkg/wallet"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	mock        *testutil.MockBackend
	session     *wallet.Session
	signer      *wallet.LocalSigner
	coordinator *Coordinator
}

func newFixture(t *testing.T, approve wallet.ApproveFunc) *fixture {
	t.Helper()

	mock := testutil.NewMockBackend()
	t.Cleanup(mock.Close)

	signer, err := wallet.NewLocalSigner(&wallet.SignerConfig{
		PrivateKey: testutil.TestPrivateKey,
		Approve:    approve,
	})
	require.NoError(t, err)

	session := wallet.NewSession(&wallet.SessionConfig{
		Signer:       signer,
		ProxyAddress: testutil.TestProxyAddress,
		Credentials:  testutil.TestCredentials(),
	})

	client := backend.NewClient(&backend.Config{
		BaseURL: mock.URL,
		Timeout: 5 * time.Second,
	})

	return &fixture{
		mock:    mock,
		session: session,
		signer:  signer,
		coordinator: New(&Config{
			Preparer: client,
			Signer:   session,
			Identity: session,
			Logger:   zap.NewNop(),
		}),
	}
}

func buyRequest() *OrderRequest {
	return &OrderRequest{
		TokenID: testutil.TestTokenID,
		Side:    types.Buy,
		Kind:    types.Market,
		Price:   decimal.RequireFromString("0.21"),
		Shares:  decimal.NewFromInt(10),
	}
}

type stepRecorder struct {
	mu    sync.Mutex
	steps []Step
}

func (r *stepRecorder) record(s Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, s)
}

func TestPrepareAndSign(t *testing.T) {
	f := newFixture(t, nil)
	steps := &stepRecorder{}

	payload, err := f.coordinator.PrepareAndSign(context.Background(), buyRequest(), NewSaltSet(), steps.record)
	require.NoError(t, err)

	assert.Equal(t, []Step{StepPreparing, StepSigning}, steps.steps)

	prepared := f.mock.Prepared()
	require.Len(t, prepared, 1)
	assert.Equal(t, payload.AttemptID, prepared[0].AttemptID)
	assert.Equal(t, types.OrderTypeFOK, prepared[0].OrderType)
	assert.Equal(t, f.signer.Address().Hex(), prepared[0].UserAddress)
	assert.InDelta(t, 0.21, prepared[0].Price, 1e-9)
	assert.InDelta(t, 10.0, prepared[0].Size, 1e-9)

	// Integers arrive exactly, including the 77-digit token id.
	assert.Equal(t, testutil.TestTokenID, payload.Order.TokenId.String())
	assert.Equal(t, "2100000", payload.Order.MakerAmount.String())
	assert.Equal(t, "10000000", payload.Order.TakerAmount.String())
	assert.Equal(t, int64(model.BUY), payload.Order.Side.Int64())
	assert.Equal(t, payload.Salt, payload.Order.Salt.String())

	recovered, err := wallet.RecoverTypedDataSigner(payload.TypedData, payload.Order.Signature)
	require.NoError(t, err)
	assert.Equal(t, f.signer.Address(), recovered)

	assert.Equal(t, payload.Salt, payload.Signed.Message["salt"])
	assert.Equal(t, "0x", payload.Signed.Signature[:2])
	assert.Len(t, payload.Signed.Signature, 132)
}

func TestPrepareAndSign_HashMatchesOrderUtils(t *testing.T) {
	f := newFixture(t, nil)

	payload, err := f.coordinator.PrepareAndSign(context.Background(), buyRequest(), NewSaltSet(), nil)
	require.NoError(t, err)

	hash, _, err := apitypes.TypedDataAndHash(payload.TypedData)
	require.NoError(t, err)

	orderBuilder := builder.NewExchangeOrderBuilderImpl(big.NewInt(137), nil)
	expected, err := orderBuilder.BuildOrderHash(&payload.Order.Order, model.CTFExchange)
	require.NoError(t, err)

	assert.Equal(t, common.Hash(expected).Hex(), common.BytesToHash(hash).Hex())
}

func TestPrepareAndSign_FreshAttemptIdentity(t *testing.T) {
	f := newFixture(t, nil)
	salts := NewSaltSet()

	first, err := f.coordinator.PrepareAndSign(context.Background(), buyRequest(), salts, nil)
	require.NoError(t, err)
	second, err := f.coordinator.PrepareAndSign(context.Background(), buyRequest(), salts, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.AttemptID, second.AttemptID)
	assert.NotEqual(t, first.Salt, second.Salt)
	assert.Equal(t, []string{first.Salt, second.Salt}, salts.List())
}

func TestPrepareAndSign_SaltReused(t *testing.T) {
	f := newFixture(t, nil)
	f.mock.FixedSalt = "424242"
	salts := NewSaltSet()

	_, err := f.coordinator.PrepareAndSign(context.Background(), buyRequest(), salts, nil)
	require.NoError(t, err)

	steps := &stepRecorder{}
	_, err = f.coordinator.PrepareAndSign(context.Background(), buyRequest(), salts, steps.record)

	var rejected *types.PrepareRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "salt reused", rejected.Reason)
	assert.Equal(t, []Step{StepPreparing}, steps.steps)
}

func TestPrepareAndSign_WalletRejected(t *testing.T) {
	f := newFixture(t, func(ctx context.Context, data apitypes.TypedData) bool { return false })

	_, err := f.coordinator.PrepareAndSign(context.Background(), buyRequest(), NewSaltSet(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrWalletRejected))
}

func TestPrepareAndSign_BackendRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.mock.PrepareReject = "Minimum order value is $1"

	_, err := f.coordinator.PrepareAndSign(context.Background(), buyRequest(), NewSaltSet(), nil)

	var rejected *types.PrepareRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "Minimum order value is $1", rejected.Reason)
}

func TestPrepareAndSign_Disconnected(t *testing.T) {
	f := newFixture(t, nil)
	f.session.Disconnect()

	_, err := f.coordinator.PrepareAndSign(context.Background(), buyRequest(), NewSaltSet(), nil)
	assert.ErrorIs(t, err, types.ErrCredentialsUnavailable)
	assert.Empty(t, f.mock.Prepared())
}

func TestToModelOrder_Malformed(t *testing.T) {
	base := func() *types.UnsignedOrder {
		return testutil.BuildUnsignedOrder(types.PrepareOrderRequest{
			UserAddress:  "0x1111111111111111111111111111111111111111",
			ProxyAddress: testutil.TestProxyAddress,
			TokenID:      testutil.TestTokenID,
			Price:        0.5,
			Size:         10,
			Side:         "SELL",
		}, "99")
	}

	order, err := ToModelOrder(base())
	require.NoError(t, err)
	assert.Equal(t, int64(model.SELL), order.Side.Int64())
	assert.Equal(t, "10000000", order.MakerAmount.String())

	tests := []struct {
		name  string
		field string
		value types.FlexString
	}{
		{"fractional-amount", "makerAmount", "1.5"},
		{"scientific-salt", "salt", "1e18"},
		{"negative-nonce", "nonce", "-1"},
		{"missing-token", "tokenId", ""},
		{"bad-address", "signer", "0xnothex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unsigned := base()
			unsigned.Message[tt.field] = tt.value

			_, err := ToModelOrder(unsigned)
			assert.Error(t, err)
		})
	}
}

func TestSaltSet(t *testing.T) {
	salts := NewSaltSet()
	assert.True(t, salts.Add("1"))
	assert.True(t, salts.Add("2"))
	assert.False(t, salts.Add("1"))
	assert.Equal(t, []string{"1", "2"}, salts.List())
}
