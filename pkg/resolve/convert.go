package resolve

import (
	"math"
	"reflect"

	"github.com/funvibe/dynbind/pkg/binder"
)

// rank orders argument conversions, best first.
type rank int

const (
	rankIdentical rank = iota
	rankAssignable
	rankConstant
	rankInterface
	rankAny
)

func (r rank) String() string {
	switch r {
	case rankIdentical:
		return "identical"
	case rankAssignable:
		return "assignable"
	case rankConstant:
		return "constant"
	case rankInterface:
		return "interface"
	case rankAny:
		return "any"
	}
	return "unknown"
}

// classify decides whether v, passed as described by info, converts to a
// parameter of type p, and how good that conversion is.
func classify(v any, info binder.ArgumentInfo, p reflect.Type) (rank, bool) {
	if info.Mode() != binder.ByValue {
		// ref and out bind to the identical pointer type only
		if t := reflect.TypeOf(v); t == p {
			return rankIdentical, true
		}
		return 0, false
	}
	if v == nil {
		if nilable(p.Kind()) {
			return rankAssignable, true
		}
		return 0, false
	}

	t := reflect.TypeOf(v)
	if t == p {
		return rankIdentical, true
	}
	if p.Kind() == reflect.Interface {
		if !t.Implements(p) {
			return 0, false
		}
		if p.NumMethod() == 0 {
			return rankAny, true
		}
		return rankInterface, true
	}
	if t.AssignableTo(p) {
		return rankAssignable, true
	}
	if info.IsConstant() && constantConvertible(reflect.ValueOf(v), p) {
		return rankConstant, true
	}
	return 0, false
}

// convert produces the reflect.Value passed for a classified argument.
func convert(v any, r rank, p reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(p)
	}
	rv := reflect.ValueOf(v)
	if r == rankConstant {
		if familyOf(rv.Kind()) == familyComplex && familyOf(p.Kind()) != familyComplex {
			rv = reflect.ValueOf(real(rv.Complex()))
		}
		return rv.Convert(p)
	}
	return rv
}

func nilable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return true
	}
	return false
}

type family int

const (
	familyNone family = iota
	familySigned
	familyUnsigned
	familyFloat
	familyComplex
	familyString
	familyBool
)

func familyOf(k reflect.Kind) family {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return familySigned
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return familyUnsigned
	case reflect.Float32, reflect.Float64:
		return familyFloat
	case reflect.Complex64, reflect.Complex128:
		return familyComplex
	case reflect.String:
		return familyString
	case reflect.Bool:
		return familyBool
	}
	return familyNone
}

// constantConvertible follows Go's rules for untyped constants: a literal
// converts to any type of a compatible kind that can represent its value.
func constantConvertible(v reflect.Value, p reflect.Type) bool {
	target := reflect.New(p).Elem()
	src, dst := familyOf(v.Kind()), familyOf(p.Kind())

	switch src {
	case familySigned:
		return intFits(v.Int(), target, dst)
	case familyUnsigned:
		u := v.Uint()
		if u > math.MaxInt64 {
			return dst == familyUnsigned && !target.OverflowUint(u) || dst == familyFloat || dst == familyComplex
		}
		return intFits(int64(u), target, dst)
	case familyFloat:
		f := v.Float()
		switch dst {
		case familyFloat:
			return !target.OverflowFloat(f)
		case familyComplex:
			return !target.OverflowComplex(complex(f, 0))
		case familySigned, familyUnsigned:
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
				return false
			}
			return intFits(int64(f), target, dst)
		}
	case familyComplex:
		c := v.Complex()
		if dst == familyComplex {
			return !target.OverflowComplex(c)
		}
		if imag(c) != 0 {
			return false
		}
		return constantConvertible(reflect.ValueOf(real(c)), p)
	case familyString, familyBool:
		return src == dst
	}
	return false
}

func intFits(i int64, target reflect.Value, dst family) bool {
	switch dst {
	case familySigned:
		return !target.OverflowInt(i)
	case familyUnsigned:
		return i >= 0 && !target.OverflowUint(uint64(i))
	case familyFloat:
		return !target.OverflowFloat(float64(i))
	case familyComplex:
		return true
	}
	return false
}
