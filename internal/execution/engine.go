package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/percyitchy/xleaderboard/internal/signing"
	"github.com/percyitchy/xleaderboard/pkg/types"
	"go.uber.org/zap"
)

// PayloadSigner produces a fresh signed payload per call.
type PayloadSigner interface {
	PrepareAndSign(ctx context.Context, req *signing.OrderRequest, salts *signing.SaltSet, onStep func(signing.Step)) (*signing.SignedPayload, error)
}

// OrderSubmitter submits signed orders to the backend.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, req *types.SubmitOrderRequest) (*types.SubmitOrderResponse, error)
}

// CredentialsProvider returns the user's L2 credentials at submit time.
type CredentialsProvider interface {
	Credentials() (*types.APICredentials, error)
}

// Engine runs execution sessions: prepare, sign and submit, restarting from
// prepare with a brand-new payload after a retryable signature rejection.
type Engine struct {
	signer      PayloadSigner
	submitter   OrderSubmitter
	credentials CredentialsProvider
	maxRetries  int
	logger      *zap.Logger
}

// Config holds engine configuration.
type Config struct {
	Signer      PayloadSigner
	Submitter   OrderSubmitter
	Credentials CredentialsProvider
	MaxRetries  int
	Logger      *zap.Logger
}

// New creates a new execution engine.
func New(cfg *Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Engine{
		signer:      cfg.Signer,
		submitter:   cfg.Submitter,
		credentials: cfg.Credentials,
		maxRetries:  maxRetries,
		logger:      logger,
	}
}

// MaxRetries returns the retry bound.
func (e *Engine) MaxRetries() int {
	return e.maxRetries
}

// Execute drives session to a terminal phase. At most MaxRetries+1 attempts
// are made, strictly one after another.
func (e *Engine) Execute(ctx context.Context, session *Session) (*Result, error) {
	if session.State().Phase != PhaseIdle {
		return nil, ErrSessionStarted
	}

	start := time.Now()
	req := session.Request()
	retries := 0

	for attempt := 1; ; attempt++ {
		AttemptsTotal.Inc()

		err := session.transition(PhasePreparing, func(s *State) {
			s.Attempt = attempt
			s.Retries = retries
			s.Err = nil
		})
		if err != nil {
			return nil, err
		}

		result, err := e.runAttempt(ctx, session, &req)
		if err == nil {
			ExecutionDurationSeconds.Observe(time.Since(start).Seconds())
			SessionsTotal.WithLabelValues(types.OutcomeSuccess).Inc()
			e.logger.Info("execution-succeeded",
				zap.String("session-id", session.ID()),
				zap.Int("attempts", attempt),
				zap.String("order-id", result.OrderID),
				zap.String("status", result.Status))

			terr := session.transition(PhaseSuccess, func(s *State) { s.Result = result })
			if terr != nil {
				return nil, terr
			}
			return result, nil
		}

		if types.IsRetryableSignatureError(err) && retries < e.maxRetries {
			retries++
			RetriesTotal.Inc()
			e.logger.Warn("execution-retrying",
				zap.String("session-id", session.ID()),
				zap.Int("attempt", attempt),
				zap.Int("retries", retries),
				zap.Error(err))
			continue
		}

		ExecutionDurationSeconds.Observe(time.Since(start).Seconds())
		outcome := types.OutcomeError
		if errors.Is(err, types.ErrWalletRejected) {
			outcome = types.OutcomeCancelled
		}
		SessionsTotal.WithLabelValues(outcome).Inc()
		e.logger.Error("execution-failed",
			zap.String("session-id", session.ID()),
			zap.Int("attempts", attempt),
			zap.Error(err))

		terr := session.transition(PhaseError, func(s *State) { s.Err = err })
		if terr != nil {
			return nil, terr
		}
		return nil, err
	}
}

// runAttempt performs one prepare/sign/submit cycle. The session is in
// Preparing on entry and in Submitting on a submission outcome.
func (e *Engine) runAttempt(ctx context.Context, session *Session, req *signing.OrderRequest) (*Result, error) {
	var stepErr error
	payload, err := e.signer.PrepareAndSign(ctx, req, session.salts, func(step signing.Step) {
		if step == signing.StepSigning {
			stepErr = session.transition(PhaseSigning, nil)
		}
	})
	if stepErr != nil {
		return nil, stepErr
	}
	if err != nil {
		return nil, err
	}
	session.recordAttempt(payload.AttemptID)

	err = session.transition(PhaseSubmitting, nil)
	if err != nil {
		return nil, err
	}

	return e.Submit(ctx, payload, req.Kind.OrderType())
}

// Submit submits one signed payload with the current credentials and
// classifies the outcome.
func (e *Engine) Submit(ctx context.Context, payload *signing.SignedPayload, orderType string) (*Result, error) {
	creds, err := e.credentials.Credentials()
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	resp, err := e.submitter.SubmitOrder(ctx, &types.SubmitOrderRequest{
		SignedOrder:    payload.Signed,
		UserAPIKey:     creds.APIKey,
		UserAPISecret:  creds.Secret,
		UserPassphrase: creds.Passphrase,
		OrderType:      orderType,
	})
	if err != nil {
		countSubmission(err)
		return nil, fmt.Errorf("submit order: %w", err)
	}

	if !resp.Success || !resp.Result.Success || resp.Result.OrderID == "" {
		msg := resp.Result.ErrorMsg
		if msg == "" {
			msg = "order not accepted"
		}
		subErr := types.NewSubmissionError(0, "", msg)
		countSubmission(subErr)
		return nil, fmt.Errorf("submit order: %w", subErr)
	}

	SubmissionsTotal.WithLabelValues("ok").Inc()

	e.logger.Info("order-submitted",
		zap.String("attempt-id", payload.AttemptID),
		zap.String("order-id", resp.Result.OrderID),
		zap.String("status", resp.Result.Status))

	return &Result{
		OrderID:           resp.Result.OrderID,
		Status:            resp.Result.Status,
		TransactionHashes: resp.Result.TransactionHashes,
		TakingAmount:      resp.Result.TakingAmount,
		MakingAmount:      resp.Result.MakingAmount,
		Pending:           resp.Result.Status != "" && resp.Result.Status != "matched",
	}, nil
}

func countSubmission(err error) {
	if types.IsRetryableSignatureError(err) {
		SubmissionsTotal.WithLabelValues("retryable").Inc()
		return
	}
	SubmissionsTotal.WithLabelValues("terminal").Inc()
}
