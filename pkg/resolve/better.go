package resolve

import "reflect"

// best returns the unique binding that is better than every other one, or
// nil when there is none.
func best(list []*binding, args []any) *binding {
	for i, a := range list {
		wins := true
		for j, b := range list {
			if i != j && !better(a, b, args) {
				wins = false
				break
			}
		}
		if wins {
			return a
		}
	}
	return nil
}

// better reports whether a is strictly better than b.
func better(a, b *binding, args []any) bool {
	aWins, bWins := false, false
	for i := range a.ranks {
		switch compareArg(a, b, i, args[i]) {
		case -1:
			aWins = true
		case 1:
			bWins = true
		}
	}
	if aWins != bWins {
		return aWins
	}
	if aWins {
		return false
	}

	// every argument converts equally well
	if a.expanded != b.expanded {
		return !a.expanded
	}
	av, bv := a.cand.sig.isVariadic, b.cand.sig.isVariadic
	if av != bv {
		return !av
	}
	return false
}

// compareArg returns -1 if argument i converts better for a, 1 if better
// for b and 0 otherwise.
func compareArg(a, b *binding, i int, arg any) int {
	ra, rb := a.ranks[i], b.ranks[i]
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	pa, pb := a.types[i], b.types[i]
	if pa == pb {
		return 0
	}
	// the more specific target, the one assignable to the other, wins
	aToB, bToA := pa.AssignableTo(pb), pb.AssignableTo(pa)
	switch {
	case aToB && !bToA:
		return -1
	case bToA && !aToB:
		return 1
	}
	if ra == rankConstant {
		return compareConstant(reflect.TypeOf(arg).Kind(), pa, pb)
	}
	return 0
}

// compareConstant prefers the target in the literal's own numeric family,
// then the narrower target.
func compareConstant(src reflect.Kind, pa, pb reflect.Type) int {
	f := familyOf(src)
	fa, fb := familyOf(pa.Kind()), familyOf(pb.Kind())
	if fa != fb {
		switch {
		case fa == f:
			return -1
		case fb == f:
			return 1
		}
		return 0
	}
	switch {
	case pa.Size() < pb.Size():
		return -1
	case pb.Size() < pa.Size():
		return 1
	}
	return 0
}
