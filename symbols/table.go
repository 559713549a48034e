package symbols

import (
	"fmt"

	"github.com/gogpu/sdsl/source"
)

// Kind classifies a symbol.
type Kind uint8

const (
	Variable Kind = iota
	Parameter
	Constant
	Stream
	Function
	TypeName
	CBufferMember
)

var kindNames = [...]string{
	Variable:      "variable",
	Parameter:     "parameter",
	Constant:      "constant",
	Stream:        "stream",
	Function:      "function",
	TypeName:      "type",
	CBufferMember: "constant buffer member",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Symbol is a named entity.
type Symbol struct {
	Name string
	Kind Kind
	Type Type
	Span source.Span

	// Decl is the declaration that introduced the symbol.
	Decl any
}

// ScopeKind tells what introduced a scope.
type ScopeKind uint8

const (
	GlobalScope ScopeKind = iota
	MixinScope
	ShaderScope
	FunctionScope
	BlockScope
)

// Scope maps names to symbols at one nesting level.
type Scope struct {
	Kind    ScopeKind
	parent  *Scope
	symbols map[string]*Symbol
	order   []*Symbol
}

// Parent returns the enclosing scope, or nil for the global scope.
func (s *Scope) Parent() *Scope { return s.parent }

// Lookup returns the symbol bound to name in this scope only.
func (s *Scope) Lookup(name string) (*Symbol, bool) {
	sym, ok := s.symbols[name]
	return sym, ok
}

// Symbols returns the symbols of this scope in declaration order.
func (s *Scope) Symbols() []*Symbol { return s.order }

// Table is a stack of nested scopes.
type Table struct {
	global  *Scope
	current *Scope
}

// NewTable returns a table holding only the global scope.
func NewTable() *Table {
	g := &Scope{Kind: GlobalScope, symbols: make(map[string]*Symbol)}
	return &Table{global: g, current: g}
}

// Global returns the outermost scope.
func (t *Table) Global() *Scope { return t.global }

// Current returns the innermost scope.
func (t *Table) Current() *Scope { return t.current }

// Push opens a nested scope.
func (t *Table) Push(kind ScopeKind) *Scope {
	t.current = &Scope{Kind: kind, parent: t.current, symbols: make(map[string]*Symbol)}
	return t.current
}

// Pop closes the innermost scope. The global scope is never popped.
func (t *Table) Pop() {
	if t.current.parent != nil {
		t.current = t.current.parent
	}
}

// Declare binds sym in the innermost scope.
func (t *Table) Declare(sym *Symbol) error {
	return t.current.declare(sym)
}

func (s *Scope) declare(sym *Symbol) error {
	if prev, ok := s.symbols[sym.Name]; ok {
		return &DuplicateSymbolError{Name: sym.Name, Span: sym.Span, Previous: prev.Span}
	}
	s.symbols[sym.Name] = sym
	s.order = append(s.order, sym)
	return nil
}

// Resolve looks name up from the innermost scope outwards.
// span is the location of the reference, used in the error.
func (t *Table) Resolve(name string, span source.Span) (*Symbol, error) {
	if sym, ok := t.Lookup(name); ok {
		return sym, nil
	}
	return nil, &UnboundSymbolError{Name: name, Span: span}
}

// Lookup is Resolve without an error.
func (t *Table) Lookup(name string) (*Symbol, bool) {
	for s := t.current; s != nil; s = s.parent {
		if sym, ok := s.symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// UnboundSymbolError reports a reference to an undeclared name.
type UnboundSymbolError struct {
	Name string
	Span source.Span
}

func (e *UnboundSymbolError) Error() string {
	return fmt.Sprintf("%s: undeclared identifier '%s'", e.Span.Start, e.Name)
}

// DuplicateSymbolError reports a name declared twice in one scope.
type DuplicateSymbolError struct {
	Name     string
	Span     source.Span
	Previous source.Span
}

func (e *DuplicateSymbolError) Error() string {
	return fmt.Sprintf("%s: redefinition of '%s' (previously declared at %s)", e.Span.Start, e.Name, e.Previous.Start)
}
