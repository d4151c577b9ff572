// Package resolve is a reflection based binder.ResolutionEngine for Go
// values.
//
// Candidates for an invoke are, depending on the target:
//   - a function value: the function itself,
//   - an *OverloadSet: its members,
//   - any other value: members registered for its dynamic type with
//     Register, or else an exported method named Invoke,
//   - a reflect.Type in a static call: members registered with RegisterStatic.
//
// Overload resolution ranks each argument conversion (identical, assignable,
// untyped constant, interface, empty interface) and picks the unique
// candidate that converts no argument worse and some argument better than
// every other candidate.
package resolve

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/funvibe/dynbind/internal/config"
	"github.com/funvibe/dynbind/pkg/binder"
)

// Engine resolves invoke call sites over Go values. It is safe for
// concurrent use: registration takes the write lock, resolution only reads.
type Engine struct {
	mu        sync.RWMutex
	members   map[reflect.Type][]*Member
	static    map[reflect.Type][]*Member
	operation string
	logger    *slog.Logger
}

var _ binder.ResolutionEngine = (*Engine)(nil)

func New() *Engine {
	return &Engine{
		members:   make(map[reflect.Type][]*Member),
		static:    make(map[reflect.Type][]*Member),
		operation: config.InvokeOperationName,
	}
}

// WithLogger sets the logger. If not set, slog.Default() is used.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

func (e *Engine) log() *slog.Logger {
	if e.logger == nil {
		return slog.Default()
	}
	return e.logger
}

// Register adds instance members for values of type t. Each member's first
// parameter is the receiver and must accept a t.
func (e *Engine) Register(t reflect.Type, members ...*Member) error {
	for _, m := range members {
		if _, err := m.signature(true); err != nil {
			return fmt.Errorf("register %s: %w", t, err)
		}
		if recv := m.fn.Type().In(0); !t.AssignableTo(recv) {
			return fmt.Errorf("register %s: receiver parameter %s of %s does not accept it", t, recv, m)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.members[t] = append(e.members[t], members...)
	return nil
}

// RegisterStatic adds members invoked through a static call on t.
func (e *Engine) RegisterStatic(t reflect.Type, members ...*Member) error {
	for _, m := range members {
		if _, err := m.signature(false); err != nil {
			return fmt.Errorf("register static %s: %w", t, err)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.static[t] = append(e.static[t], members...)
	return nil
}

// Resolve implements binder.ResolutionEngine.
func (e *Engine) Resolve(site binder.CallSite, target any, args []any) (binder.BoundResult, error) {
	if len(site.TypeArguments()) > 0 {
		return nil, binder.BindFailure(binder.KindNoApplicableOverload, site, 0,
			"explicit type arguments are not supported")
	}

	infos := make([]binder.ArgumentInfo, len(args))
	for i := range args {
		info, err := site.Argument(i + 1)
		if err != nil {
			return nil, err
		}
		infos[i] = info
	}

	cands, err := e.candidates(site, target, site.Name())
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, binder.BindFailure(binder.KindNoApplicableOverload, site, 0,
			"%s has no member %s", describeTarget(target), site.Name())
	}

	scope := site.CallingContext()
	var open, closed []*binding
	for _, c := range cands {
		list := bindings(c, infos, args)
		if c.accessibleFrom(scope) {
			open = append(open, list...)
		} else {
			closed = append(closed, list...)
		}
	}

	e.log().Debug("resolving invoke",
		slog.String("target", describeTarget(target)),
		slog.Int("candidates", len(cands)),
		slog.Int("applicable", len(open)),
		slog.Int("inaccessible", len(closed)),
	)

	if len(open) == 0 {
		if len(closed) > 0 {
			return nil, binder.BindFailure(binder.KindInaccessibleMember, site, len(cands),
				"%s is not accessible from %s", closed[0], scope).
				WithDetail("member", closed[0].String())
		}
		return nil, binder.BindFailure(binder.KindNoApplicableOverload, site, len(cands),
			"no overload of %s on %s accepts %s", site.Name(), describeTarget(target), argumentTypes(args)).
			WithDetail("arguments", argumentTypes(args))
	}

	winner := best(open, args)
	if winner == nil {
		tied := make([]string, len(open))
		for i, b := range open {
			tied[i] = b.String()
		}
		return nil, binder.BindFailure(binder.KindAmbiguousOverload, site, len(cands),
			"call %s%s is ambiguous between %d overloads", site.Name(), argumentTypes(args), len(open)).
			WithDetail("overloads", tied)
	}
	return newPlan(winner, infos, args, site.Flags().Has(binder.ResultDiscarded)), nil
}

func describeTarget(target any) string {
	switch t := target.(type) {
	case nil:
		return "nil"
	case reflect.Type:
		return "type " + t.String()
	case *OverloadSet:
		return "overload set"
	}
	return reflect.TypeOf(target).String()
}
