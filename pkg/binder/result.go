package binder

import (
	"context"
	"reflect"
)

// BoundResult is how to perform a bound call. The binder passes it
// through without looking inside.
type BoundResult interface {
	// Invoke performs the call. A trailing error result of the underlying
	// operation is returned as err.
	Invoke(ctx context.Context) (any, error)
	// ResultDiscarded reports whether the return value is elided.
	ResultDiscarded() bool
}

// Fixed returns a BoundResult that performs nothing and yields value.
// It is the usual error suggestion: a default the caller accepts when
// binding fails.
func Fixed(value any) BoundResult {
	return fixedResult{value: value}
}

type fixedResult struct {
	value any
}

func (r fixedResult) Invoke(context.Context) (any, error) { return r.value, nil }
func (r fixedResult) ResultDiscarded() bool               { return false }

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Results folds the return values of a reflective call into (value, err):
// no results give nil, a trailing error becomes err, one remaining value is
// returned as is and several are returned as []any. With discard set the
// values are dropped but the error is kept.
func Results(out []reflect.Value, discard bool) (any, error) {
	var err error
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if e := out[n-1]; !e.IsNil() {
			err = e.Interface().(error)
		}
		out = out[:n-1]
	}
	if discard {
		return nil, err
	}
	switch len(out) {
	case 0:
		return nil, err
	case 1:
		return out[0].Interface(), err
	}
	values := make([]any, len(out))
	for i, v := range out {
		values[i] = v.Interface()
	}
	return values, err
}
