package binder

import "time"

// Outcome is how a binding request ended.
type Outcome string

const (
	OutcomeBound     Outcome = "bound"
	OutcomeFailed    Outcome = "failed"
	OutcomeSuggested Outcome = "suggested"
	// OutcomeSelf means the target bound the call itself (see Invoker).
	OutcomeSelf Outcome = "self"
)

// Event describes one binding request.
type Event struct {
	// Site is the shape key of the call site when it has one.
	Site       string
	Operation  string
	Outcome    Outcome
	Kind       ErrorKind
	Candidates int
	Interop    bool
	Time       time.Time
	Duration   time.Duration
}

// Observer receives binding events. Observe is called synchronously on the
// binding goroutine and should return quickly.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }
