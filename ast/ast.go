// Package ast declares the syntax tree of SDSL modules.
//
// Expression nodes carry the type assigned by semantic analysis; before
// analysis Type reports an Undefined type.
package ast

import (
	"github.com/gogpu/sdsl/source"
	"github.com/gogpu/sdsl/symbols"
	"github.com/gogpu/sdsl/token"
)

// Node is any syntax tree node.
type Node interface {
	Span() source.Span
}

// Expr is an expression node.
type Expr interface {
	Node
	Type() symbols.Type
	SetType(symbols.Type)
	exprNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Decl is a declaration at module or shader level.
type Decl interface {
	Node
	declNode()
}

// Pos is the embedded source span of a node.
type Pos struct {
	Src source.Span
}

// Span returns the node's source span.
func (p *Pos) Span() source.Span { return p.Src }

// At returns a Pos for span.
func At(span source.Span) Pos { return Pos{Src: span} }

// ExprPos is embedded by expression nodes. It holds the span and the type
// assigned by semantic analysis.
type ExprPos struct {
	Pos
	typ symbols.Type
}

// ExprAt returns an ExprPos for span.
func ExprAt(span source.Span) ExprPos { return ExprPos{Pos: At(span)} }

// Type returns the assigned type, or Undefined before analysis.
func (e *ExprPos) Type() symbols.Type {
	if e.typ == nil {
		return symbols.Undefined{}
	}
	return e.typ
}

// SetType assigns the expression type.
func (e *ExprPos) SetType(t symbols.Type) { e.typ = t }

func (*ExprPos) exprNode() {}

// Module is a parsed source file.
type Module struct {
	Pos
	Directives []*Directive
	Decls      []Decl
}

// Directive is a #pragma or #line left in the source after preprocessing.
type Directive struct {
	Pos
	Text string
}

// ----------------------------------------------------------------------------
// Types and attributes

// TypeRef is a syntactic type: a name with optional template parameters,
// as in float4, MyStruct or vector<float, 3>.
type TypeRef struct {
	Pos
	Name   string
	Params []string

	// Resolved is filled in by semantic analysis.
	Resolved symbols.Type
}

// Attribute is a bracketed annotation such as [numthreads(8, 8, 1)].
type Attribute struct {
	Pos
	Name string
	Args []Expr
}

// Qualifier is a set of declaration qualifiers.
type Qualifier uint32

const (
	QualStream Qualifier = 1 << iota
	QualStage
	QualStatic
	QualConst
	QualIn
	QualOut
	QualInOut
	QualPatch
	QualNoInterpolation
	QualLinear
	QualCentroid
	QualUniform
	QualOverride
	QualAbstract
)

// QualifierKeywords lists qualifiers in printing order.
var QualifierKeywords = []struct {
	Qual Qualifier
	Kind token.Kind
}{
	{QualOverride, token.KwOverride},
	{QualAbstract, token.KwAbstract},
	{QualStage, token.KwStage},
	{QualStatic, token.KwStatic},
	{QualConst, token.KwConst},
	{QualStream, token.KwStream},
	{QualPatch, token.KwPatch},
	{QualIn, token.KwIn},
	{QualOut, token.KwOut},
	{QualInOut, token.KwInOut},
	{QualNoInterpolation, token.KwNoInterpolation},
	{QualLinear, token.KwLinear},
	{QualCentroid, token.KwCentroid},
	{QualUniform, token.KwUniform},
}

// Has reports whether every qualifier in f is set.
func (q Qualifier) Has(f Qualifier) bool { return q&f == f }

// ----------------------------------------------------------------------------
// Declarations

// ShaderDecl is a shader class with its base mixins.
type ShaderDecl struct {
	Pos
	Name  string
	Bases []string
	Decls []Decl
}

// StructDecl declares a struct type.
type StructDecl struct {
	Pos
	Name   string
	Fields []*VarDecl
}

// CBufferDecl declares a constant buffer or resource group.
type CBufferDecl struct {
	Pos
	Kind    token.Kind // KwCBuffer or KwRGroup
	Name    string
	Members []*VarDecl
}

// VarDecl declares a variable, stream, struct field or constant buffer member.
type VarDecl struct {
	Pos
	Qualifiers Qualifier
	Type       *TypeRef
	Name       string
	ArrayDims  []Expr
	Semantic   string
	Init       Expr
}

// Param is a function parameter.
type Param struct {
	Pos
	Qualifiers Qualifier
	Type       *TypeRef
	Name       string
	ArrayDims  []Expr
	Semantic   string
}

// FuncDecl declares a function. Body is nil for abstract functions.
type FuncDecl struct {
	Pos
	Attrs      []*Attribute
	Qualifiers Qualifier
	Result     *TypeRef
	Name       string
	Params     []*Param
	Semantic   string
	Body       *Block
}

// Attr returns the attribute with the given name.
func (f *FuncDecl) Attr(name string) (*Attribute, bool) {
	for _, a := range f.Attrs {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

func (*ShaderDecl) declNode()  {}
func (*StructDecl) declNode()  {}
func (*CBufferDecl) declNode() {}
func (*VarDecl) declNode()     {}
func (*FuncDecl) declNode()    {}

// ----------------------------------------------------------------------------
// Statements

// Block is a braced statement list.
type Block struct {
	Pos
	Stmts []Stmt
}

// DeclStmt declares local variables.
type DeclStmt struct {
	Pos
	Vars []*VarDecl
}

// ExprStmt evaluates an expression for its effects.
type ExprStmt struct {
	Pos
	X Expr
}

// EmptyStmt is a lone semicolon.
type EmptyStmt struct {
	Pos
}

// IfStmt is a conditional statement. Else is nil, a *Block or an *IfStmt.
type IfStmt struct {
	Pos
	Attrs []*Attribute
	Cond  Expr
	Then  Stmt
	Else  Stmt
}

// ForStmt is a C-style for loop; Init, Cond and Post may be nil.
type ForStmt struct {
	Pos
	Attrs []*Attribute
	Init  Stmt
	Cond  Expr
	Post  Expr
	Body  Stmt
}

// WhileStmt is a pre-tested loop.
type WhileStmt struct {
	Pos
	Attrs []*Attribute
	Cond  Expr
	Body  Stmt
}

// DoWhileStmt is a post-tested loop.
type DoWhileStmt struct {
	Pos
	Attrs []*Attribute
	Body  Stmt
	Cond  Expr
}

// SwitchStmt is a multi-way branch.
type SwitchStmt struct {
	Pos
	Attrs []*Attribute
	Tag   Expr
	Cases []*CaseClause
}

// CaseClause is one arm of a switch. Values is nil for default.
type CaseClause struct {
	Pos
	Values []Expr
	Body   []Stmt
}

// BreakStmt exits the innermost loop or switch.
type BreakStmt struct{ Pos }

// ContinueStmt starts the next iteration of the innermost loop.
type ContinueStmt struct{ Pos }

// DiscardStmt discards the current fragment.
type DiscardStmt struct{ Pos }

// ReturnStmt returns from a function. Value may be nil.
type ReturnStmt struct {
	Pos
	Value Expr
}

func (*Block) stmtNode()        {}
func (*DeclStmt) stmtNode()     {}
func (*ExprStmt) stmtNode()     {}
func (*EmptyStmt) stmtNode()    {}
func (*IfStmt) stmtNode()       {}
func (*ForStmt) stmtNode()      {}
func (*WhileStmt) stmtNode()    {}
func (*DoWhileStmt) stmtNode()  {}
func (*SwitchStmt) stmtNode()   {}
func (*BreakStmt) stmtNode()    {}
func (*ContinueStmt) stmtNode() {}
func (*DiscardStmt) stmtNode()  {}
func (*ReturnStmt) stmtNode()   {}

// ----------------------------------------------------------------------------
// Expressions

// IntLit is an integer literal. Text is the exact source spelling.
type IntLit struct {
	ExprPos
	Text string
}

// FloatLit is a floating-point literal. Text is the exact source spelling.
type FloatLit struct {
	ExprPos
	Text string
}

// BoolLit is true or false.
type BoolLit struct {
	ExprPos
	Value bool
}

// StringLit is a quoted string, used in attribute arguments.
type StringLit struct {
	ExprPos
	Text string // including quotes
}

// Ident is a name reference.
type Ident struct {
	ExprPos
	Name string

	// Symbol is the resolved symbol, set by semantic analysis.
	Symbol *symbols.Symbol
}

// UnaryExpr is a prefix operator: - ! ~ +.
type UnaryExpr struct {
	ExprPos
	Op token.Kind
	X  Expr
}

// IncDecExpr is ++ or -- in prefix or postfix position.
type IncDecExpr struct {
	ExprPos
	Op     token.Kind // PlusPlus or MinusMinus
	Prefix bool
	X      Expr
}

// BinaryExpr is a binary operation.
type BinaryExpr struct {
	ExprPos
	Op BinaryOp
	X  Expr
	Y  Expr

	// OperandType is the type both operands are converted to before the
	// operation, set by semantic analysis.
	OperandType symbols.Type
}

// ConditionalExpr is cond ? then : else.
type ConditionalExpr struct {
	ExprPos
	Cond Expr
	Then Expr
	Else Expr
}

// AssignExpr is a simple or compound assignment; Op is empty for '='.
type AssignExpr struct {
	ExprPos
	Op  BinaryOp
	LHS Expr
	RHS Expr
}

// MemberExpr selects a field or swizzle: X.Name.
type MemberExpr struct {
	ExprPos
	X    Expr
	Name string

	// Swizzle holds component indices when Name is a vector swizzle.
	Swizzle []int

	// Symbol is set when the expression names a stream variable, as in
	// streams.Color.
	Symbol *symbols.Symbol
}

// IndexExpr is X[Index].
type IndexExpr struct {
	ExprPos
	X     Expr
	Index Expr
}

// CallExpr calls a function, intrinsic or method.
type CallExpr struct {
	ExprPos
	Fn   Expr
	Args []Expr

	// Set by semantic analysis: the resolved user function, or the
	// intrinsic name when Decl is nil.
	Decl      *FuncDecl
	Intrinsic string

	// ParamTypes are the types the arguments are converted to.
	ParamTypes []symbols.Type
}

// ConstructExpr builds a value of a numeric type: float4(1, 0, 0, 1).
type ConstructExpr struct {
	ExprPos
	TypeRef *TypeRef
	Args    []Expr
}

// CastExpr is (T)X.
type CastExpr struct {
	ExprPos
	To *TypeRef
	X  Expr
}

// BinaryOp is a binary operator.
type BinaryOp string

const (
	OpAdd        BinaryOp = "+"
	OpSub        BinaryOp = "-"
	OpMul        BinaryOp = "*"
	OpDiv        BinaryOp = "/"
	OpMod        BinaryOp = "%"
	OpShl        BinaryOp = "<<"
	OpShr        BinaryOp = ">>"
	OpLess       BinaryOp = "<"
	OpLessEq     BinaryOp = "<="
	OpGreater    BinaryOp = ">"
	OpGreaterEq  BinaryOp = ">="
	OpEqual      BinaryOp = "=="
	OpNotEqual   BinaryOp = "!="
	OpBitAnd     BinaryOp = "&"
	OpBitXor     BinaryOp = "^"
	OpBitOr      BinaryOp = "|"
	OpLogicalAnd BinaryOp = "&&"
	OpLogicalOr  BinaryOp = "||"
)

// IsComparison reports whether op yields a boolean from its operands.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpLess, OpLessEq, OpGreater, OpGreaterEq, OpEqual, OpNotEqual:
		return true
	}
	return false
}

// IsLogical reports whether op is && or ||.
func (op BinaryOp) IsLogical() bool { return op == OpLogicalAnd || op == OpLogicalOr }
