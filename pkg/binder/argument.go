package binder

import (
	"fmt"
	"strings"
)

// PassingMode is the calling convention of a single argument slot.
type PassingMode uint8

const (
	ByValue PassingMode = iota
	ByRef
	Out
)

func (m PassingMode) String() string {
	switch m {
	case ByValue:
		return "byvalue"
	case ByRef:
		return "ref"
	case Out:
		return "out"
	default:
		return fmt.Sprintf("PassingMode(%d)", uint8(m))
	}
}

// ArgumentFlags describe an argument the way the call-site producer saw it.
type ArgumentFlags uint8

const (
	// ArgStaticType marks an argument that is a type reference rather than a value.
	ArgStaticType ArgumentFlags = 1 << iota
	// ArgRef passes the argument by reference. The runtime slot must be a pointer.
	ArgRef
	// ArgOut passes the argument as an out parameter. The runtime slot must be a pointer.
	ArgOut
	// ArgNamed marks a named argument.
	ArgNamed
	// ArgConstant marks a literal, which enables untyped-constant conversions.
	ArgConstant
)

// ArgumentInfo classifies one call argument. It is a comparable value:
// two ArgumentInfo with the same flags and name are interchangeable.
type ArgumentInfo struct {
	flags ArgumentFlags
	name  string
}

// NewArgument builds an ArgumentInfo, rejecting contradictory flag sets.
func NewArgument(flags ArgumentFlags, name string) (ArgumentInfo, error) {
	info := ArgumentInfo{flags: flags, name: name}
	if err := info.validate(); err != nil {
		return ArgumentInfo{}, err
	}
	return info, nil
}

// MustArgument is like NewArgument but panics on an invalid combination.
// It is meant for static descriptor tables.
func MustArgument(flags ArgumentFlags, name string) ArgumentInfo {
	info, err := NewArgument(flags, name)
	if err != nil {
		panic(err)
	}
	return info
}

// Positional returns a plain by-value positional argument.
func Positional() ArgumentInfo { return ArgumentInfo{} }

// Named returns a by-value named argument.
func Named(name string) ArgumentInfo { return MustArgument(ArgNamed, name) }

func (a ArgumentInfo) validate() error {
	if a.flags&ArgOut != 0 && a.flags&ArgConstant != 0 {
		return newShapeError("an out argument cannot be a constant")
	}
	if a.flags&ArgOut != 0 && a.flags&ArgRef != 0 {
		return newShapeError("an argument cannot be both ref and out")
	}
	if a.flags&ArgNamed != 0 && a.name == "" {
		return newShapeError("a named argument needs a name")
	}
	return nil
}

func (a ArgumentInfo) Flags() ArgumentFlags { return a.flags }
func (a ArgumentInfo) IsStaticType() bool   { return a.flags&ArgStaticType != 0 }
func (a ArgumentInfo) IsNamed() bool        { return a.flags&ArgNamed != 0 }
func (a ArgumentInfo) IsConstant() bool     { return a.flags&ArgConstant != 0 }

// Name is the argument name; empty unless IsNamed.
func (a ArgumentInfo) Name() string {
	if !a.IsNamed() {
		return ""
	}
	return a.name
}

func (a ArgumentInfo) Mode() PassingMode {
	switch {
	case a.flags&ArgOut != 0:
		return Out
	case a.flags&ArgRef != 0:
		return ByRef
	default:
		return ByValue
	}
}

func (a ArgumentInfo) String() string {
	var parts []string
	if a.IsStaticType() {
		parts = append(parts, "type")
	}
	if m := a.Mode(); m != ByValue {
		parts = append(parts, m.String())
	}
	if a.IsConstant() {
		parts = append(parts, "const")
	}
	if a.IsNamed() {
		parts = append(parts, "name="+a.name)
	}
	if len(parts) == 0 {
		return "{}"
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// CallFlags are modifiers that apply to the whole call site.
type CallFlags uint8

const (
	// ResultDiscarded means the caller ignores the return value.
	ResultDiscarded CallFlags = 1 << iota
	// StaticContext is reserved. Static calls are inferred from slot 0.
	StaticContext
)

func (f CallFlags) Has(flag CallFlags) bool { return f&flag != 0 }

func (f CallFlags) String() string {
	var parts []string
	if f.Has(ResultDiscarded) {
		parts = append(parts, "discard")
	}
	if f.Has(StaticContext) {
		parts = append(parts, "static")
	}
	return strings.Join(parts, "|")
}
