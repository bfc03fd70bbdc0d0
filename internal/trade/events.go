package trade

import (
	"sync"

	"github.com/percyitchy/xleaderboard/internal/execution"
)

// Event types published by the controller.
const (
	EventOpened  = "opened"
	EventQuote   = "quote"
	EventSession = "session"
	EventClosed  = "closed"
)

// QuoteView is the quote part of an event.
type QuoteView struct {
	Notional       string `json:"notional"`
	VWAP           string `json:"vwap,omitempty"`
	BestPrice      string `json:"best_price,omitempty"`
	WorstPrice     string `json:"worst_price,omitempty"`
	Fillable       bool   `json:"is_fillable"`
	Remaining      string `json:"remaining_usdc,omitempty"`
	ExecutionPrice string `json:"execution_price,omitempty"`
	EstimatedTotal string `json:"estimated_total,omitempty"`
	Validation     string `json:"validation,omitempty"`
	Unavailable    bool   `json:"unavailable,omitempty"`
}

// Event is a dialog update for dashboard clients.
type Event struct {
	DialogID string     `json:"dialog_id"`
	Type     string     `json:"type"`
	Quote    *QuoteView `json:"quote,omitempty"`
	Phase    string     `json:"phase,omitempty"`
	Attempt  int        `json:"attempt,omitempty"`
	OrderID  string     `json:"order_id,omitempty"`
	Status   string     `json:"status,omitempty"`
	Error    string     `json:"error,omitempty"`
}

func sessionEvent(dialogID string, s execution.State) Event {
	ev := Event{
		DialogID: dialogID,
		Type:     EventSession,
		Phase:    s.Phase.String(),
		Attempt:  s.Attempt,
	}
	if s.Result != nil {
		ev.OrderID = s.Result.OrderID
		ev.Status = s.Result.Status
	}
	if s.Err != nil {
		ev.Error = s.Err.Error()
	}
	return ev
}

// broker fans events out to subscribers.
type broker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

func newBroker() *broker {
	return &broker{subs: make(map[int]func(Event))}
}

func (b *broker) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

func (b *broker) publish(ev Event) {
	b.mu.RLock()
	subs := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
