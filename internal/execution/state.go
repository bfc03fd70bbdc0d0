package execution

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/percyitchy/xleaderboard/internal/signing"
	"github.com/percyitchy/xleaderboard/pkg/types"
)

// Phase is the externally visible stage of an execution session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePreparing
	PhaseSigning
	PhaseSubmitting
	PhaseSuccess
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreparing:
		return "preparing"
	case PhaseSigning:
		return "signing"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseSuccess || p == PhaseError
}

// ErrIllegalTransition is returned for edges outside the phase graph.
var ErrIllegalTransition = errors.New("illegal phase transition")

// ErrSessionStarted is returned when a session is executed twice.
var ErrSessionStarted = errors.New("session already started")

//nolint:gochecknoglobals // transition table
var transitions = map[Phase][]Phase{
	PhaseIdle:       {PhasePreparing},
	PhasePreparing:  {PhaseSigning, PhaseError},
	PhaseSigning:    {PhaseSubmitting, PhaseError},
	PhaseSubmitting: {PhasePreparing, PhaseSuccess, PhaseError},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Result is a successful submission.
type Result struct {
	OrderID           string
	Status            string
	TransactionHashes []string
	TakingAmount      string
	MakingAmount      string
	// Pending is true when the order was accepted but not matched yet.
	Pending bool
}

// State is a snapshot delivered to observers.
type State struct {
	SessionID string
	Phase     Phase
	Attempt   int // 1-based; 0 before the first attempt
	Retries   int
	Result    *Result
	Err       error
}

// Observer receives state snapshots in transition order.
type Observer func(State)

// Session is one confirmation's execution: a sequence of attempts that ends
// in Success or Error.
type Session struct {
	id      string
	request signing.OrderRequest
	salts   *signing.SaltSet

	mu         sync.Mutex
	state      State
	observers  []Observer
	detached   bool
	attemptIDs []string
	startedAt  time.Time
	finishedAt time.Time

	// notifyMu keeps observer callbacks in transition order.
	notifyMu sync.Mutex
}

// NewSession creates an idle session for a frozen order request.
func NewSession(req signing.OrderRequest) *Session {
	id := uuid.NewString()
	return &Session{
		id:      id,
		request: req,
		salts:   signing.NewSaltSet(),
		state:   State{SessionID: id, Phase: PhaseIdle},
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Request returns the frozen order request.
func (s *Session) Request() signing.OrderRequest {
	return s.request
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers an observer for future transitions.
func (s *Session) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Detach stops delivering updates. A running attempt is not interrupted.
func (s *Session) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detached = true
}

// Detached reports whether Detach was called.
func (s *Session) Detached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detached
}

// AttemptIDs returns the attempt ids in order.
func (s *Session) AttemptIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.attemptIDs...)
}

// Salts returns every salt signed in this session.
func (s *Session) Salts() []string {
	return s.salts.List()
}

// transition moves to phase `to`, applying mutate to the new snapshot.
func (s *Session) transition(to Phase, mutate func(*State)) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	from := s.state.Phase
	if !CanTransition(from, to) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}

	s.state.Phase = to
	if mutate != nil {
		mutate(&s.state)
	}
	if from == PhaseIdle {
		s.startedAt = time.Now()
	}
	if to.Terminal() {
		s.finishedAt = time.Now()
	}

	snapshot := s.state
	var observers []Observer
	if !s.detached {
		observers = append(observers, s.observers...)
	}
	s.mu.Unlock()

	for _, o := range observers {
		o(snapshot)
	}
	return nil
}

func (s *Session) recordAttempt(attemptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attemptIDs = append(s.attemptIDs, attemptID)
}

// Record summarizes a finished session for history.
func (s *Session) Record() *types.ExecutionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := &types.ExecutionRecord{
		SessionID:  s.id,
		TokenID:    s.request.TokenID,
		Side:       s.request.Side,
		Kind:       s.request.Kind,
		Shares:     s.request.Shares,
		Price:      s.request.Price,
		Total:      s.request.Price.Mul(s.request.Shares),
		Attempts:   s.state.Attempt,
		AttemptIDs: append([]string(nil), s.attemptIDs...),
		Salts:      s.salts.List(),
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
	}

	switch s.state.Phase {
	case PhaseSuccess:
		record.Outcome = types.OutcomeSuccess
	case PhaseError:
		record.Outcome = types.OutcomeError
		if errors.Is(s.state.Err, types.ErrWalletRejected) {
			record.Outcome = types.OutcomeCancelled
		}
	}

	if s.state.Result != nil {
		record.OrderID = s.state.Result.OrderID
		record.Status = s.state.Result.Status
		record.TxHashes = s.state.Result.TransactionHashes
	}
	if s.state.Err != nil {
		record.Error = s.state.Err.Error()
	}

	return record
}
