// Package binder binds dynamic invoke call sites at run time.
//
// A call site is described once by an immutable InvokeCallSite: call flags,
// the calling context used for accessibility checks, and one ArgumentInfo
// per argument (slot 0 is the target). Each execution pairs the descriptor
// with live values and asks a Binder for a BoundResult:
//
//	site, _ := binder.NewInvokeCallSite(0, binder.Scope{}, []binder.ArgumentInfo{
//		binder.Positional(), // target
//		binder.Positional(),
//	})
//	b := binder.New(resolve.New())
//	out, err := b.Invoke(ctx, site, fn, 42)
//
// The Binder tries an optional InteropFallback for foreign object models
// first and otherwise delegates to its ResolutionEngine, which performs
// overload resolution. Binding failures are returned as *Error; a
// caller-supplied error suggestion replaces recoverable failures.
package binder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"
)

// ResolutionEngine performs member lookup, accessibility checks and
// overload resolution for a call site against runtime values.
//
// Failures must be *Error values of kind KindNoApplicableOverload,
// KindAmbiguousOverload or KindInaccessibleMember. Implementations must be
// safe for concurrent use by distinct call sites.
type ResolutionEngine interface {
	Resolve(site CallSite, target any, args []any) (BoundResult, error)
}

// InteropFallback binds calls on targets from a foreign object model.
//
// TryBind returns ok=false with a nil result and error when it has no
// opinion about the target, which lets the ResolutionEngine run. With
// ok=true the result or the error is authoritative.
type InteropFallback interface {
	TryBind(site CallSite, target any, args []any) (result BoundResult, ok bool, err error)
}

// Invoker is implemented by targets that can bind an invoke themselves.
// ok=false defers to the Binder's fallback protocol.
type Invoker interface {
	TryInvoke(site CallSite, args []any) (result BoundResult, ok bool, err error)
}

// NoInterop is the InteropFallback that never has an opinion.
type NoInterop struct{}

func (NoInterop) TryBind(CallSite, any, []any) (BoundResult, bool, error) { return nil, false, nil }

// Chain tries each fallback in order and returns the first opinion.
func Chain(fallbacks ...InteropFallback) InteropFallback {
	return chain(fallbacks)
}

type chain []InteropFallback

func (c chain) TryBind(site CallSite, target any, args []any) (BoundResult, bool, error) {
	for _, f := range c {
		if res, ok, err := f.TryBind(site, target, args); ok {
			return res, true, err
		}
	}
	return nil, false, nil
}

// Binder runs the fallback protocol for invoke call sites. Configure it with
// the With methods before sharing it between goroutines.
type Binder struct {
	engine    ResolutionEngine
	interop   InteropFallback
	logger    *slog.Logger
	observers []Observer
}

// New returns a Binder that resolves calls with engine.
func New(engine ResolutionEngine) *Binder {
	if engine == nil {
		panic("binder: nil ResolutionEngine")
	}
	return &Binder{
		engine:  engine,
		interop: NoInterop{},
	}
}

// WithInterop sets the strategy tried before the resolution engine.
// It returns the binder for chaining.
func (b *Binder) WithInterop(f InteropFallback) *Binder {
	if f == nil {
		f = NoInterop{}
	}
	b.interop = f
	return b
}

// WithLogger sets the logger. If not set, slog.Default() is used.
func (b *Binder) WithLogger(logger *slog.Logger) *Binder {
	b.logger = logger
	return b
}

// WithObserver adds an observer that receives one Event per binding.
func (b *Binder) WithObserver(o Observer) *Binder {
	b.observers = append(b.observers, o)
	return b
}

// Engine returns the resolution engine the binder delegates to.
func (b *Binder) Engine() ResolutionEngine { return b.engine }

func (b *Binder) log() *slog.Logger {
	if b.logger == nil {
		return slog.Default()
	}
	return b.logger
}

// BindInvoke binds an invoke of target. A target implementing Invoker gets
// the first chance; otherwise the call goes through FallbackInvoke. On both
// paths a non-nil errorSuggestion replaces a recoverable binding failure.
func (b *Binder) BindInvoke(site CallSite, target any, args []any, errorSuggestion BoundResult) (BoundResult, error) {
	if inv, ok := target.(Invoker); ok {
		start := time.Now()
		res, ok, err := inv.TryInvoke(site, args)
		if ok {
			if err != nil && b.suggest(site, err, errorSuggestion) {
				b.report(site, start, OutcomeSuggested, err, false)
				return errorSuggestion, nil
			}
			b.report(site, start, OutcomeSelf, err, false)
			return res, err
		}
	}
	return b.FallbackInvoke(site, target, args, errorSuggestion)
}

// suggest reports whether errorSuggestion should stand in for err.
func (b *Binder) suggest(site CallSite, err error, errorSuggestion BoundResult) bool {
	var be *Error
	if errorSuggestion == nil || !errors.As(err, &be) || !be.Recoverable() {
		return false
	}
	b.log().Debug("binding failed, using error suggestion",
		slog.String("operation", site.Name()),
		slog.String("kind", string(be.Kind)),
	)
	return true
}

// FallbackInvoke binds an invoke the target could not answer itself.
//
// args excludes the target; its length must be site.ArgumentCount()-1 or
// FallbackInvoke panics. A non-nil errorSuggestion is returned instead of a
// recoverable binding failure.
func (b *Binder) FallbackInvoke(site CallSite, target any, args []any, errorSuggestion BoundResult) (BoundResult, error) {
	if want := site.ArgumentCount() - 1; len(args) != want {
		panic(fmt.Sprintf("binder: call site declares %d arguments, got %d", want, len(args)))
	}
	start := time.Now()

	if err := checkAddressable(site, target, args); err != nil {
		b.report(site, start, OutcomeFailed, err, false)
		return nil, err
	}

	if res, ok, err := b.interop.TryBind(site, target, args); ok {
		if err != nil {
			b.report(site, start, OutcomeFailed, err, true)
			return nil, err
		}
		b.report(site, start, OutcomeBound, nil, true)
		return res, nil
	}

	res, err := b.engine.Resolve(site, target, args)
	if err == nil {
		b.report(site, start, OutcomeBound, nil, false)
		return res, nil
	}

	if b.suggest(site, err, errorSuggestion) {
		b.report(site, start, OutcomeSuggested, err, false)
		return errorSuggestion, nil
	}
	b.report(site, start, OutcomeFailed, err, false)
	return nil, err
}

// Invoke binds and performs target(args...) in one step.
func (b *Binder) Invoke(ctx context.Context, site CallSite, target any, args ...any) (any, error) {
	res, err := b.BindInvoke(site, target, args, nil)
	if err != nil {
		return nil, err
	}
	return res.Invoke(ctx)
}

// checkAddressable enforces that ref and out slots hold pointers.
func checkAddressable(site CallSite, target any, args []any) error {
	for i := 0; i < site.ArgumentCount(); i++ {
		info, err := site.Argument(i)
		if err != nil {
			return err
		}
		if info.Mode() == ByValue {
			continue
		}
		v := target
		if i > 0 {
			v = args[i-1]
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer || rv.IsNil() {
			return BindFailure(KindInvalidArgumentShape, site, 0,
				"argument %d is passed %s but its value %T is not a pointer", i, info.Mode(), v)
		}
	}
	return nil
}

func (b *Binder) report(site CallSite, start time.Time, outcome Outcome, err error, interop bool) {
	ev := Event{
		Operation: site.Name(),
		Outcome:   outcome,
		Interop:   interop,
		Time:      start,
		Duration:  time.Since(start),
	}
	if k, ok := site.(interface{ Key() string }); ok {
		ev.Site = k.Key()
	}
	var be *Error
	if errors.As(err, &be) {
		ev.Kind = be.Kind
		ev.Candidates = be.Candidates
	}

	logger := b.log()
	if err != nil && outcome == OutcomeFailed {
		logger.Debug("binding failed",
			slog.String("operation", ev.Operation),
			slog.String("site", ev.Site),
			slog.Bool("interop", interop),
			slog.Any("error", err),
		)
	} else {
		logger.Debug("binding completed",
			slog.String("operation", ev.Operation),
			slog.String("site", ev.Site),
			slog.String("outcome", string(outcome)),
			slog.Duration("duration", ev.Duration),
		)
	}

	for _, o := range b.observers {
		o.Observe(ev)
	}
}
