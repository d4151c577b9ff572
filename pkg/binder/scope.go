package binder

import "reflect"

// Scope is the calling context of a call site: the import path of the
// package the call originates from. The zero Scope is unrestricted.
type Scope struct {
	PkgPath string
}

// ScopeOf returns the Scope of the package that declares v's type.
func ScopeOf(v any) Scope {
	t, ok := v.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(v)
	}
	for t != nil && t.Name() == "" && (t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice) {
		t = t.Elem()
	}
	if t == nil {
		return Scope{}
	}
	return Scope{PkgPath: t.PkgPath()}
}

func (s Scope) IsZero() bool { return s.PkgPath == "" }

// CanAccess reports whether code in s may use a member that is internal to
// pkgPath. An empty pkgPath denotes a public member.
func (s Scope) CanAccess(pkgPath string) bool {
	return pkgPath == "" || s.IsZero() || s.PkgPath == pkgPath
}

func (s Scope) String() string {
	if s.IsZero() {
		return "<unrestricted>"
	}
	return s.PkgPath
}
