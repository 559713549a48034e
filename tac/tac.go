// Package tac lowers typed SDSL syntax trees to three-address code.
//
// Lowering is a straightforward walk: every expression is evaluated into a
// register, temporaries are named T0, T1, ... in allocation order and
// labels L0, L1, ... so that identical trees always lower to identical
// code. The IR is used for inspection (sdslc -emit tac) and testing; the
// SPIR-V backend works from the typed tree directly.
package tac

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/symbols"
)

// Register is an operand or result of an operation: a NamedRegister or a
// ValueRegister.
type Register interface {
	String() string
	register()
}

// NamedRegister refers to a variable, temporary or label by name.
type NamedRegister struct {
	Name string
	Type symbols.Type
}

func (r NamedRegister) String() string { return r.Name }
func (NamedRegister) register()        {}

// Constant is the set of immediate value types.
type Constant interface {
	int64 | uint64 | float64 | bool
}

// ValueRegister is an immediate value.
type ValueRegister[T Constant] struct {
	Value T
	Type  symbols.Type
}

func (ValueRegister[T]) register() {}

func (r ValueRegister[T]) String() string {
	switch v := any(r.Value).(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10) + "u"
	case float64:
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eIN") {
			s += ".0"
		}
		return s
	case bool:
		return strconv.FormatBool(v)
	}
	return "?"
}

// Op is an operator of a three-address operation. Binary arithmetic,
// comparison and logical operators use their source spelling.
type Op string

const (
	OpCopy     Op = "="
	OpNeg      Op = "neg"
	OpNot      Op = "!"
	OpBitNot   Op = "~"
	OpIndex    Op = "[]"  // Result = Left[Right]
	OpMember   Op = "."   // Result = Left.Right
	OpStoreIdx Op = "[]=" // Result[Left] = Right
	OpStoreMem Op = ".="  // Result.Left = Right
	OpParam    Op = "param"
	OpCall     Op = "call" // Result = call Left, Right arguments
	OpDecl     Op = "decl"
	OpLabel    Op = "label"
	OpGoto     Op = "goto"
	OpIf       Op = "if"      // if Left goto Right
	OpIfFalse  Op = "iffalse" // iffalse Left goto Right
	OpReturn   Op = "return"
	OpDiscard  Op = "discard"
)

// Operation is a single three-address instruction. Unused registers are nil.
type Operation struct {
	Result Register
	Op     Op
	Left   Register
	Right  Register
}

func (o Operation) String() string {
	switch o.Op {
	case OpCopy:
		return fmt.Sprintf("%s = %s", o.Result, o.Left)
	case OpNeg, OpNot, OpBitNot:
		return fmt.Sprintf("%s = %s %s", o.Result, o.Op, o.Left)
	case OpIndex:
		return fmt.Sprintf("%s = %s[%s]", o.Result, o.Left, o.Right)
	case OpMember:
		return fmt.Sprintf("%s = %s.%s", o.Result, o.Left, o.Right)
	case OpStoreIdx:
		return fmt.Sprintf("%s[%s] = %s", o.Result, o.Left, o.Right)
	case OpStoreMem:
		return fmt.Sprintf("%s.%s = %s", o.Result, o.Left, o.Right)
	case OpParam:
		return fmt.Sprintf("param %s", o.Left)
	case OpCall:
		if o.Result == nil {
			return fmt.Sprintf("call %s, %s", o.Left, o.Right)
		}
		return fmt.Sprintf("%s = call %s, %s", o.Result, o.Left, o.Right)
	case OpDecl:
		return fmt.Sprintf("decl %s", o.Result)
	case OpLabel:
		return fmt.Sprintf("%s:", o.Left)
	case OpGoto:
		return fmt.Sprintf("goto %s", o.Left)
	case OpIf, OpIfFalse:
		return fmt.Sprintf("%s %s goto %s", o.Op, o.Left, o.Right)
	case OpReturn:
		if o.Left == nil {
			return "return"
		}
		return fmt.Sprintf("return %s", o.Left)
	case OpDiscard:
		return "discard"
	}
	return fmt.Sprintf("%s = %s %s %s", o.Result, o.Left, o.Op, o.Right)
}

// Snippet is an ordered list of operations with a lookup of the
// operation that last defined each result name.
//
// Adding an operation whose result name is already defined keeps both
// operations in Ops and only moves the lookup entry to the newer one.
type Snippet struct {
	Name string
	Ops  []Operation

	index map[string]int
	names []string
}

// NewSnippet returns an empty snippet.
func NewSnippet(name string) *Snippet {
	return &Snippet{Name: name, index: make(map[string]int)}
}

// Add appends op.
func (s *Snippet) Add(op Operation) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	s.Ops = append(s.Ops, op)
	if op.Result == nil || op.Op == OpStoreIdx || op.Op == OpStoreMem {
		return
	}
	name := op.Result.String()
	if _, ok := s.index[name]; !ok {
		s.names = append(s.names, name)
	}
	s.index[name] = len(s.Ops) - 1
}

// Lookup returns the operation that last defined name.
func (s *Snippet) Lookup(name string) (Operation, bool) {
	i, ok := s.index[name]
	if !ok {
		return Operation{}, false
	}
	return s.Ops[i], true
}

// Names returns the defined result names in order of first definition.
func (s *Snippet) Names() []string { return s.names }

func (s *Snippet) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", s.Name)
	for _, op := range s.Ops {
		if op.Op == OpLabel {
			fmt.Fprintf(&b, "%s\n", op)
			continue
		}
		fmt.Fprintf(&b, "\t%s\n", op)
	}
	return b.String()
}

// ErrConsumed is yielded when a lowering sequence is ranged over twice.
var ErrConsumed = errors.New("tac: lowering sequence already consumed")

// LoweringGapError reports a node that has no lowering.
type LoweringGapError struct {
	Node ast.Node
}

func (e *LoweringGapError) Error() string {
	return fmt.Sprintf("%s: no lowering for %T", e.Node.Span().Start, e.Node)
}
