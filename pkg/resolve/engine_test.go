package resolve

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/funvibe/dynbind/pkg/binder"
)

func newSite(t *testing.T, flags binder.CallFlags, scope string, args ...binder.ArgumentInfo) *binder.InvokeCallSite {
	t.Helper()
	site, err := binder.NewInvokeCallSite(flags, binder.Scope{PkgPath: scope}, args)
	if err != nil {
		t.Fatalf("NewInvokeCallSite: %v", err)
	}
	return site
}

// positional returns n positional descriptors, target included.
func positional(n int) []binder.ArgumentInfo {
	out := make([]binder.ArgumentInfo, n)
	for i := range out {
		out[i] = binder.Positional()
	}
	return out
}

func constant() binder.ArgumentInfo { return binder.MustArgument(binder.ArgConstant, "") }

func TestInvoke_FunctionValue(t *testing.T) {
	b := binder.New(New())
	site := newSite(t, 0, "", positional(2)...)

	v, err := b.Invoke(context.Background(), site, func(x int) int { return x * 2 }, 21)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Errorf("result = %v, want 42", v)
	}
}

func TestResolve_DiscardedResult(t *testing.T) {
	calls := 0
	target := func(s string) int { calls++; return len(s) }
	site := newSite(t, binder.ResultDiscarded, "", positional(2)...)

	res, err := New().Resolve(site, target, []any{"hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.ResultDiscarded() {
		t.Error("plan does not report a discarded result")
	}
	v, err := res.Invoke(context.Background())
	if err != nil || v != nil {
		t.Errorf("Invoke = %v, %v; want nil, nil", v, err)
	}
	if calls != 1 {
		t.Errorf("target called %d times", calls)
	}
}

type named struct{ s string }

func (n named) String() string { return n.s }

func TestResolve_BestConversionWins(t *testing.T) {
	set := Overloads(
		Func(func(any) string { return "any" }),
		Func(func(fmt.Stringer) string { return "stringer" }),
		Func(func(int) string { return "int" }),
	)
	b := binder.New(New())
	site := newSite(t, 0, "", positional(2)...)

	cases := []struct {
		arg  any
		want string
	}{
		{5, "int"},
		{named{"x"}, "stringer"},
		{"plain", "any"},
		{nil, "stringer"},
	}
	for _, tc := range cases {
		v, err := b.Invoke(context.Background(), site, set, tc.arg)
		if err != nil {
			t.Errorf("%v: unexpected error: %v", tc.arg, err)
			continue
		}
		if v != tc.want {
			t.Errorf("%v: picked %v, want %s", tc.arg, v, tc.want)
		}
	}
}

func TestResolve_MoreSpecificInterface(t *testing.T) {
	set := Overloads(
		Func(func(fmt.Stringer) string { return "stringer" }),
		Func(func(interface {
			fmt.Stringer
			Len() int
		}) string {
			return "stringer with len"
		}),
	)
	site := newSite(t, 0, "", positional(2)...)
	v, err := binder.New(New()).Invoke(context.Background(), site, set, sizedName{"abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "stringer with len" {
		t.Errorf("picked %v", v)
	}
}

type sizedName struct{ s string }

func (n sizedName) String() string { return n.s }
func (n sizedName) Len() int       { return len(n.s) }

func TestResolve_Ambiguous(t *testing.T) {
	set := Overloads(
		Func(func(int, any) string { return "first" }),
		Func(func(any, int) string { return "second" }),
	)
	site := newSite(t, 0, "", positional(3)...)
	b := binder.New(New())

	_, err := b.FallbackInvoke(site, set, []any{1, 2}, nil)
	if !errors.Is(err, binder.ErrAmbiguousOverload) {
		t.Fatalf("expected AmbiguousOverload, got %v", err)
	}
	var be *binder.Error
	if !errors.As(err, &be) || be.Candidates != 2 {
		t.Errorf("error = %#v", err)
	}
	if tied, _ := be.Details["overloads"].([]string); len(tied) != 2 {
		t.Errorf("overloads detail = %v", be.Details["overloads"])
	}

	suggestion := binder.Fixed("fallback")
	res, err := b.FallbackInvoke(site, set, []any{1, 2}, suggestion)
	if err != nil || res != suggestion {
		t.Errorf("with suggestion = %v, %v", res, err)
	}
}

func TestResolve_IdenticalSignaturesAreAmbiguous(t *testing.T) {
	set := Overloads(
		Func(func(int) int { return 1 }),
		Func(func(int) int { return 2 }),
	)
	site := newSite(t, 0, "", positional(2)...)
	_, err := New().Resolve(site, set, []any{1})
	if binder.KindOf(err) != binder.KindAmbiguousOverload {
		t.Fatalf("expected ambiguous_overload, got %v", err)
	}
}

func TestResolve_Constants(t *testing.T) {
	set := Overloads(
		Func(func(int8) string { return "int8" }),
		Func(func(float64) string { return "float64" }),
	)
	b := binder.New(New())
	constSite := newSite(t, 0, "", binder.Positional(), constant())

	cases := []struct {
		arg  any
		want string
	}{
		{5, "int8"},
		{300, "float64"},
		{2.5, "float64"},
		{complex(4.5, 0), "float64"},
	}
	for _, tc := range cases {
		v, err := b.Invoke(context.Background(), constSite, set, tc.arg)
		if err != nil {
			t.Errorf("%v: unexpected error: %v", tc.arg, err)
			continue
		}
		if v != tc.want {
			t.Errorf("%v: picked %v, want %s", tc.arg, v, tc.want)
		}
	}

	// the same value from a variable does not convert
	varSite := newSite(t, 0, "", positional(2)...)
	if _, err := b.Invoke(context.Background(), varSite, set, 5); !errors.Is(err, binder.ErrNoApplicableOverload) {
		t.Errorf("expected NoApplicableOverload, got %v", err)
	}
}

func TestResolve_ConstantPrefersOwnFamilyThenNarrower(t *testing.T) {
	set := Overloads(
		Func(func(int64) string { return "int64" }),
		Func(func(int16) string { return "int16" }),
		Func(func(uint8) string { return "uint8" }),
	)
	site := newSite(t, 0, "", binder.Positional(), constant())
	b := binder.New(New())

	if v, _ := b.Invoke(context.Background(), site, set, 7); v != "int16" {
		t.Errorf("7 picked %v, want int16", v)
	}
	if v, _ := b.Invoke(context.Background(), site, set, 70000); v != "int64" {
		t.Errorf("70000 picked %v, want int64", v)
	}
	if v, _ := b.Invoke(context.Background(), site, set, uint(7)); v != "uint8" {
		t.Errorf("uint 7 picked %v, want uint8", v)
	}
}

type Celsius float64

func TestResolve_ConstantToNamedType(t *testing.T) {
	fn := func(c Celsius) Celsius { return c + 1 }
	site := newSite(t, 0, "", binder.Positional(), constant())
	v, err := binder.New(New()).Invoke(context.Background(), site, fn, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != Celsius(21) {
		t.Errorf("result = %v", v)
	}
}

func TestResolve_Inaccessible(t *testing.T) {
	internal := Overloads(Func(func(int) string { return "internal" }).Internal("example.com/lib"))
	b := binder.New(New())

	outside := newSite(t, 0, "example.com/app", positional(2)...)
	_, err := b.FallbackInvoke(outside, internal, []any{1}, nil)
	if !errors.Is(err, binder.ErrInaccessibleMember) {
		t.Fatalf("expected InaccessibleMember, got %v", err)
	}

	inside := newSite(t, 0, "example.com/lib", positional(2)...)
	if v, err := b.Invoke(context.Background(), inside, internal, 1); err != nil || v != "internal" {
		t.Errorf("from the owning package = %v, %v", v, err)
	}
	unrestricted := newSite(t, 0, "", positional(2)...)
	if _, err := b.Invoke(context.Background(), unrestricted, internal, 1); err != nil {
		t.Errorf("unrestricted scope: %v", err)
	}
}

func TestResolve_AccessibleBeatsBetterInaccessible(t *testing.T) {
	set := Overloads(
		Func(func(int) string { return "internal" }).Internal("example.com/lib"),
		Func(func(any) string { return "public" }),
	)
	site := newSite(t, 0, "example.com/app", positional(2)...)
	v, err := binder.New(New()).Invoke(context.Background(), site, set, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "public" {
		t.Errorf("picked %v, want public", v)
	}
}

func TestResolve_NamedArguments(t *testing.T) {
	join := Overloads(Func(func(a, b string) string { return a + b }).Named("a", "b"))
	b := binder.New(New())

	site := newSite(t, 0, "", binder.Positional(), binder.Named("b"), binder.Named("a"))
	v, err := b.Invoke(context.Background(), site, join, "x", "y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "yx" {
		t.Errorf("result = %v, want yx", v)
	}

	unknown := newSite(t, 0, "", binder.Positional(), binder.Positional(), binder.Named("c"))
	if _, err := b.Invoke(context.Background(), unknown, join, "x", "y"); !errors.Is(err, binder.ErrNoApplicableOverload) {
		t.Errorf("unknown name: expected NoApplicableOverload, got %v", err)
	}

	misplaced := newSite(t, 0, "", binder.Positional(), binder.Named("b"), binder.Positional())
	if _, err := b.Invoke(context.Background(), misplaced, join, "x", "y"); !errors.Is(err, binder.ErrNoApplicableOverload) {
		t.Errorf("misplaced named argument: expected NoApplicableOverload, got %v", err)
	}

	inPlace := newSite(t, 0, "", binder.Positional(), binder.Named("a"), binder.Positional())
	if v, err := b.Invoke(context.Background(), inPlace, join, "x", "y"); err != nil || v != "xy" {
		t.Errorf("named argument in position = %v, %v", v, err)
	}
}

func TestResolve_Variadic(t *testing.T) {
	count := func(prefix string, xs ...int) string { return fmt.Sprintf("%s%d", prefix, len(xs)) }
	e := New()
	ctx := context.Background()

	cases := []struct {
		args     []any
		want     string
		expanded bool
	}{
		{[]any{"p"}, "p0", true},
		{[]any{"p", 1, 2, 3}, "p3", true},
		{[]any{"p", []int{1, 2}}, "p2", false},
	}
	for _, tc := range cases {
		site := newSite(t, 0, "", positional(len(tc.args)+1)...)
		res, err := e.Resolve(site, count, tc.args)
		if err != nil {
			t.Errorf("%v: unexpected error: %v", tc.args, err)
			continue
		}
		plan := res.(*Plan)
		if plan.Expanded() != tc.expanded {
			t.Errorf("%v: expanded = %v, want %v", tc.args, plan.Expanded(), tc.expanded)
		}
		if v, _ := plan.Invoke(ctx); v != tc.want {
			t.Errorf("%v: result = %v, want %s", tc.args, v, tc.want)
		}
	}
}

func TestResolve_NormalFormBeatsExpanded(t *testing.T) {
	fn := func(xs ...any) int { return len(xs) }
	site := newSite(t, 0, "", positional(2)...)
	res, err := New().Resolve(site, fn, []any{[]any{1, 2, 3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.(*Plan).Expanded() {
		t.Error("expected normal form")
	}
	if v, _ := res.Invoke(context.Background()); v != 3 {
		t.Errorf("result = %v, want 3", v)
	}
}

func TestResolve_NonVariadicPreferred(t *testing.T) {
	set := Overloads(
		Func(func(xs ...int) string { return "variadic" }),
		Func(func(x int) string { return "fixed" }),
	)
	site := newSite(t, 0, "", positional(2)...)
	v, err := binder.New(New()).Invoke(context.Background(), site, set, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "fixed" {
		t.Errorf("picked %v", v)
	}
}

func TestResolve_RefAndOut(t *testing.T) {
	b := binder.New(New())
	ctx := context.Background()

	double := func(in int, out *int) bool { *out = in * 2; return true }
	outSite := newSite(t, 0, "", binder.Positional(), binder.Positional(), binder.MustArgument(binder.ArgOut, ""))
	result := 99
	v, err := b.Invoke(ctx, outSite, double, 4, &result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != true || result != 8 {
		t.Errorf("result = %v, out = %d", v, result)
	}

	untouched := func(out *string) {}
	stale := "stale"
	if _, err := b.Invoke(ctx, newSite(t, 0, "", binder.Positional(), binder.MustArgument(binder.ArgOut, "")), untouched, &stale); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stale != "" {
		t.Errorf("out argument not reset: %q", stale)
	}

	inc := func(p *int) { *p++ }
	n := 1
	refSite := newSite(t, 0, "", binder.Positional(), binder.MustArgument(binder.ArgRef, ""))
	if _, err := b.Invoke(ctx, refSite, inc, &n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("ref argument = %d, want 2", n)
	}

	// a ref argument only binds to its exact pointer type
	takesAny := func(p any) {}
	if _, err := b.Invoke(ctx, refSite, takesAny, &n); !errors.Is(err, binder.ErrNoApplicableOverload) {
		t.Errorf("expected NoApplicableOverload, got %v", err)
	}
}

type requestKey struct{}

func TestResolve_ContextInjected(t *testing.T) {
	fn := func(ctx context.Context, n int) string {
		id, _ := ctx.Value(requestKey{}).(string)
		return fmt.Sprintf("%s:%d", id, n)
	}
	site := newSite(t, 0, "", positional(2)...)
	ctx := context.WithValue(context.Background(), requestKey{}, "req-7")

	v, err := binder.New(New()).Invoke(ctx, site, fn, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "req-7:3" {
		t.Errorf("result = %v", v)
	}
}

type counter struct{}

func TestResolve_StaticCall(t *testing.T) {
	e := New()
	if err := e.RegisterStatic(reflect.TypeOf(counter{}), Func(func(n int) int { return n + 1 })); err != nil {
		t.Fatalf("RegisterStatic: %v", err)
	}
	b := binder.New(e)
	site := newSite(t, 0, "", binder.MustArgument(binder.ArgStaticType, ""), binder.Positional())

	v, err := b.Invoke(context.Background(), site, reflect.TypeOf(counter{}), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 2 {
		t.Errorf("result = %v, want 2", v)
	}

	if _, err := b.Invoke(context.Background(), site, counter{}, 1); !errors.Is(err, binder.ErrNoApplicableOverload) {
		t.Errorf("instance as static target: expected NoApplicableOverload, got %v", err)
	}
	if _, err := b.Invoke(context.Background(), site, reflect.TypeOf(0), 1); !errors.Is(err, binder.ErrNoApplicableOverload) {
		t.Errorf("type without members: expected NoApplicableOverload, got %v", err)
	}
}

type greeter struct{ name string }

func TestResolve_RegisteredMembers(t *testing.T) {
	e := New()
	err := e.Register(reflect.TypeOf(greeter{}),
		Func(func(g greeter, greeting string) string { return greeting + ", " + g.name }),
		Func(func(g greeter, times int) int { return times * len(g.name) }),
	)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	b := binder.New(e)
	site := newSite(t, 0, "", positional(2)...)
	ctx := context.Background()

	if v, err := b.Invoke(ctx, site, greeter{"world"}, "hello"); err != nil || v != "hello, world" {
		t.Errorf("string overload = %v, %v", v, err)
	}
	if v, err := b.Invoke(ctx, site, &greeter{"abc"}, 2); err != nil || v != 6 {
		t.Errorf("int overload through pointer = %v, %v", v, err)
	}

	if err := e.Register(reflect.TypeOf(0), Func(func(s string) {})); err == nil {
		t.Error("expected error for a receiver that does not accept the type")
	}
	if err := e.Register(reflect.TypeOf(0), Func(func() {})); err == nil {
		t.Error("expected error for a member without receiver")
	}
}

type adder struct{ base int }

func (a adder) Invoke(n int) int { return a.base + n }

func TestResolve_ReflectedInvokeMethod(t *testing.T) {
	site := newSite(t, 0, "", positional(2)...)
	b := binder.New(New())
	v, err := b.Invoke(context.Background(), site, adder{base: 10}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 15 {
		t.Errorf("result = %v, want 15", v)
	}

	if _, err := b.Invoke(context.Background(), site, 42, 5); !errors.Is(err, binder.ErrNoApplicableOverload) {
		t.Errorf("int target: expected NoApplicableOverload, got %v", err)
	}
	if _, err := b.Invoke(context.Background(), site, nil, 5); !errors.Is(err, binder.ErrNoApplicableOverload) {
		t.Errorf("nil target: expected NoApplicableOverload, got %v", err)
	}
}

func TestResolve_RegisteredMemberShadowsMethod(t *testing.T) {
	e := New()
	if err := e.Register(reflect.TypeOf(adder{}), Func(func(a adder, n int) int { return -n })); err != nil {
		t.Fatalf("Register: %v", err)
	}
	site := newSite(t, 0, "", positional(2)...)
	v, err := binder.New(e).Invoke(context.Background(), site, adder{base: 10}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != -5 {
		t.Errorf("result = %v, want -5", v)
	}
}

func TestResolve_RegisteredMemberShadowsMethodThroughPointer(t *testing.T) {
	e := New()
	if err := e.Register(reflect.TypeOf(adder{}), Func(func(a adder, n int) int { return -n })); err != nil {
		t.Fatalf("Register: %v", err)
	}
	site := newSite(t, 0, "", positional(2)...)
	v, err := binder.New(e).Invoke(context.Background(), site, &adder{base: 10}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != -5 {
		t.Errorf("result = %v, want -5", v)
	}
}

func TestResolve_NilArgument(t *testing.T) {
	b := binder.New(New())
	site := newSite(t, 0, "", positional(2)...)

	isNil := func(p *int) bool { return p == nil }
	if v, err := b.Invoke(context.Background(), site, isNil, nil); err != nil || v != true {
		t.Errorf("nil pointer argument = %v, %v", v, err)
	}
	if _, err := b.Invoke(context.Background(), site, func(int) {}, nil); !errors.Is(err, binder.ErrNoApplicableOverload) {
		t.Errorf("nil for int: expected NoApplicableOverload, got %v", err)
	}
}

func TestResolve_ErrorResult(t *testing.T) {
	fail := errors.New("negative")
	fn := func(n int) (int, error) {
		if n < 0 {
			return 0, fail
		}
		return n, nil
	}
	site := newSite(t, 0, "", positional(2)...)
	b := binder.New(New())

	if v, err := b.Invoke(context.Background(), site, fn, 3); err != nil || v != 3 {
		t.Errorf("Invoke(3) = %v, %v", v, err)
	}
	if _, err := b.Invoke(context.Background(), site, fn, -1); !errors.Is(err, fail) {
		t.Errorf("Invoke(-1) error = %v", err)
	}
}

type genericSite struct{ *binder.InvokeCallSite }

func (genericSite) TypeArguments() []reflect.Type { return []reflect.Type{reflect.TypeOf(0)} }

func TestResolve_TypeArgumentsRejected(t *testing.T) {
	site := genericSite{newSite(t, 0, "", positional(2)...)}
	_, err := New().Resolve(site, func(int) {}, []any{1})
	if !errors.Is(err, binder.ErrNoApplicableOverload) {
		t.Fatalf("expected NoApplicableOverload, got %v", err)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	set := Overloads(
		Func(func(any) string { return "any" }),
		Func(func(int) string { return "int" }),
		Func(func(int64) string { return "int64" }),
	)
	site := newSite(t, 0, "", binder.Positional(), constant())
	e := New()

	first, err := e.Resolve(site, set, []any{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 50; i++ {
		res, err := e.Resolve(site, set, []any{1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.(*Plan).Member() != first.(*Plan).Member() {
			t.Fatalf("iteration %d picked %s, first pick was %s", i, res, first)
		}
	}
}

func TestEngine_ConcurrentUse(t *testing.T) {
	e := New()
	b := binder.New(e)
	site := newSite(t, 0, "", positional(2)...)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = e.Register(reflect.TypeOf(greeter{}), Func(func(g greeter, n int) int { return n }))
		}()
		go func(g int) {
			defer wg.Done()
			v, err := b.Invoke(context.Background(), site, func(n int) int { return n }, g)
			if err != nil || v != g {
				t.Errorf("Invoke = %v, %v", v, err)
			}
		}(g)
	}
	wg.Wait()
}
