// Package catalog inspects Go source for the candidates an invoke call site
// may bind to: methods named Invoke and named function types. It works on
// type-checked packages, so the listing is available before run time.
package catalog

import (
	"fmt"
	"go/types"
	"os"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/funvibe/dynbind/internal/config"
)

// Kind is what an Entry describes.
type Kind string

const (
	// KindMethod is a method named Invoke on a named type.
	KindMethod Kind = "method"
	// KindFuncType is a named type whose underlying type is a function.
	KindFuncType Kind = "functype"
)

// Param is one parameter or result.
type Param struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
	// Variadic marks the last parameter of a variadic signature. Type is
	// then the element type.
	Variadic bool `json:"variadic,omitempty"`
}

// Signature is the part of a Go signature the binder cares about.
type Signature struct {
	Params          []Param `json:"params"`
	Results         []Param `json:"results"`
	Variadic        bool    `json:"variadic,omitempty"`
	HasContextParam bool    `json:"context,omitempty"`
	HasErrorReturn  bool    `json:"error,omitempty"`
}

// Entry is one invoke candidate.
type Entry struct {
	Package  string    `json:"package"`
	Name     string    `json:"name"`
	Kind     Kind      `json:"kind"`
	Receiver string    `json:"receiver,omitempty"`
	Sig      Signature `json:"signature"`
	// Internal is the package path the candidate is restricted to, or
	// empty when any package may use it.
	Internal string `json:"internal,omitempty"`
}

// Visibility is "public" or "internal to <pkg>".
func (e Entry) Visibility() string {
	if e.Internal == "" {
		return "public"
	}
	return "internal to " + e.Internal
}

func (e Entry) String() string {
	var sb strings.Builder
	sb.WriteString(e.Package)
	sb.WriteByte('.')
	if e.Receiver != "" {
		sb.WriteString(e.Receiver)
		sb.WriteByte('.')
	}
	sb.WriteString(e.Name)
	sb.WriteString(e.Sig.String())
	return sb.String()
}

func (s Signature) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if p.Variadic {
			sb.WriteString("...")
		}
		sb.WriteString(p.Type)
	}
	sb.WriteByte(')')
	switch len(s.Results) {
	case 0:
	case 1:
		sb.WriteByte(' ')
		sb.WriteString(s.Results[0].Type)
	default:
		rs := make([]string, len(s.Results))
		for i, r := range s.Results {
			rs[i] = r.Type
		}
		sb.WriteString(" (")
		sb.WriteString(strings.Join(rs, ", "))
		sb.WriteByte(')')
	}
	return sb.String()
}

// Inspect loads the packages matched by patterns, relative to dir, and lists
// their invoke candidates sorted by package and name. With no patterns it
// loads "./...".
func Inspect(dir string, patterns ...string) ([]Entry, error) {
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	cfg := &packages.Config{
		Mode: packages.NeedName |
			packages.NeedTypes |
			packages.NeedTypesInfo |
			packages.NeedSyntax,
		Dir: dir,
		Env: append(os.Environ(), "GOWORK=off"),
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}

	var errs []string
	var entries []Entry
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			errs = append(errs, fmt.Sprintf("%s: %s", pkg.PkgPath, e.Msg))
		}
		if pkg.Types != nil {
			entries = append(entries, scan(pkg.Types)...)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("package errors:\n  %s", strings.Join(errs, "\n  "))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Package != b.Package {
			return a.Package < b.Package
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Receiver < b.Receiver
	})
	return entries, nil
}

// scan lists the candidates declared at package level in pkg.
func scan(pkg *types.Package) []Entry {
	scope := pkg.Scope()
	var entries []Entry
	for _, name := range scope.Names() {
		tn, ok := scope.Lookup(name).(*types.TypeName)
		if !ok || tn.IsAlias() {
			continue
		}
		named, ok := tn.Type().(*types.Named)
		if !ok {
			continue
		}

		if sig, ok := named.Underlying().(*types.Signature); ok {
			entries = append(entries, Entry{
				Package:  pkg.Path(),
				Name:     name,
				Kind:     KindFuncType,
				Sig:      extractSignature(sig, pkg),
				Internal: internalTo(pkg.Path(), tn.Exported()),
			})
		}

		// Value and pointer receivers alike.
		mset := types.NewMethodSet(types.NewPointer(named))
		for i := 0; i < mset.Len(); i++ {
			fn, ok := mset.At(i).Obj().(*types.Func)
			if !ok || fn.Name() != config.InvokeOperationName {
				continue
			}
			// Promoted methods belong to the embedded type.
			if len(mset.At(i).Index()) > 1 {
				continue
			}
			sig := fn.Type().(*types.Signature)
			entries = append(entries, Entry{
				Package:  pkg.Path(),
				Name:     fn.Name(),
				Kind:     KindMethod,
				Receiver: receiverName(sig, pkg),
				Sig:      extractSignature(sig, pkg),
				Internal: internalTo(pkg.Path(), tn.Exported()),
			})
		}
	}
	return entries
}

// internalTo applies Go's visibility rules: unexported names are private
// to their package, and anything under an internal/ directory is limited
// to that tree, reported here as the package itself.
func internalTo(pkgPath string, exported bool) string {
	if !exported || pkgPath == "internal" || strings.HasPrefix(pkgPath, "internal/") ||
		strings.Contains(pkgPath, "/internal/") || strings.HasSuffix(pkgPath, "/internal") {
		return pkgPath
	}
	return ""
}

func receiverName(sig *types.Signature, pkg *types.Package) string {
	recv := sig.Recv()
	if recv == nil {
		return ""
	}
	return typeString(recv.Type(), pkg)
}

// extractSignature converts a go/types signature into a Signature, with
// type names qualified relative to pkg.
func extractSignature(sig *types.Signature, pkg *types.Package) Signature {
	s := Signature{Variadic: sig.Variadic()}

	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		param := params.At(i)
		p := Param{Name: param.Name(), Type: typeString(param.Type(), pkg)}

		if i == 0 && isContextType(param.Type()) {
			s.HasContextParam = true
		}
		if sig.Variadic() && i == params.Len()-1 {
			p.Variadic = true
			if slice, ok := param.Type().(*types.Slice); ok {
				p.Type = typeString(slice.Elem(), pkg)
			}
		}
		s.Params = append(s.Params, p)
	}

	results := sig.Results()
	for i := 0; i < results.Len(); i++ {
		result := results.At(i)
		if i == results.Len()-1 && isErrorType(result.Type()) {
			s.HasErrorReturn = true
		}
		s.Results = append(s.Results, Param{Name: result.Name(), Type: typeString(result.Type(), pkg)})
	}
	return s
}

func typeString(t types.Type, pkg *types.Package) string {
	return types.TypeString(t, types.RelativeTo(pkg))
}

// isContextType checks if a type is context.Context.
func isContextType(t types.Type) bool {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Pkg() != nil && obj.Pkg().Path() == "context" && obj.Name() == "Context"
}

// isErrorType checks if a type is the error interface.
func isErrorType(t types.Type) bool {
	iface, ok := types.Unalias(t).Underlying().(*types.Interface)
	if !ok {
		return false
	}
	return iface.NumMethods() == 1 && iface.Method(0).Name() == "Error"
}
