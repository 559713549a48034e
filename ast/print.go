package ast

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gogpu/sdsl/token"
)

// Print formats node as SDSL source. Expressions are fully parenthesized,
// so that printing a tree and parsing the output yields the same tree.
func Print(node Node) string {
	var p printer
	p.node(node)
	return p.String()
}

// Fprint writes the formatted node to w.
func Fprint(w io.Writer, node Node) error {
	_, err := io.WriteString(w, Print(node))
	return err
}

type printer struct {
	strings.Builder
	indent int
}

func (p *printer) line(format string, args ...any) {
	p.WriteString(strings.Repeat("\t", p.indent))
	fmt.Fprintf(p, format, args...)
	p.WriteByte('\n')
}

func (p *printer) node(n Node) {
	switch n := n.(type) {
	case *Module:
		for _, d := range n.Directives {
			p.line("%s", d.Text)
		}
		for i, d := range n.Decls {
			if i > 0 || len(n.Directives) > 0 {
				p.WriteByte('\n')
			}
			p.decl(d)
		}
	case Decl:
		p.decl(n)
	case Stmt:
		p.stmt(n)
	case Expr:
		p.WriteString(ExprString(n))
	case *TypeRef:
		p.WriteString(n.String())
	case *Param:
		p.WriteString(paramString(n))
	case *Attribute:
		p.WriteString(attrString(n))
	case *CaseClause:
		p.caseClause(n)
	case *Directive:
		p.line("%s", n.Text)
	}
}

func (p *printer) decl(d Decl) {
	switch d := d.(type) {
	case *ShaderDecl:
		head := "shader " + d.Name
		if len(d.Bases) > 0 {
			head += " : " + strings.Join(d.Bases, ", ")
		}
		p.line("%s", head)
		p.line("{")
		p.indent++
		for _, m := range d.Decls {
			p.decl(m)
		}
		p.indent--
		p.line("}")
	case *StructDecl:
		p.line("struct %s", d.Name)
		p.line("{")
		p.indent++
		for _, f := range d.Fields {
			p.line("%s;", varString(f))
		}
		p.indent--
		p.line("};")
	case *CBufferDecl:
		kw := "cbuffer"
		if d.Kind == token.KwRGroup {
			kw = "rgroup"
		}
		p.line("%s %s", kw, d.Name)
		p.line("{")
		p.indent++
		for _, m := range d.Members {
			p.line("%s;", varString(m))
		}
		p.indent--
		p.line("}")
	case *VarDecl:
		p.line("%s;", varString(d))
	case *FuncDecl:
		for _, a := range d.Attrs {
			p.line("%s", attrString(a))
		}
		params := make([]string, len(d.Params))
		for i, prm := range d.Params {
			params[i] = paramString(prm)
		}
		sig := qualString(d.Qualifiers) + d.Result.String() + " " + d.Name + "(" + strings.Join(params, ", ") + ")"
		if d.Semantic != "" {
			sig += " : " + d.Semantic
		}
		if d.Body == nil {
			p.line("%s;", sig)
			return
		}
		p.line("%s", sig)
		p.block(d.Body)
	}
}

func (p *printer) block(b *Block) {
	p.line("{")
	p.indent++
	for _, s := range b.Stmts {
		p.stmt(s)
	}
	p.indent--
	p.line("}")
}

// body prints a nested statement, indenting it unless it is a block.
func (p *printer) body(s Stmt) {
	if b, ok := s.(*Block); ok {
		p.block(b)
		return
	}
	p.indent++
	p.stmt(s)
	p.indent--
}

func (p *printer) attrs(list []*Attribute) {
	for _, a := range list {
		p.line("%s", attrString(a))
	}
}

func (p *printer) stmt(s Stmt) {
	switch s := s.(type) {
	case *Block:
		p.block(s)
	case *DeclStmt:
		p.line("%s;", declStmtString(s))
	case *ExprStmt:
		p.line("%s;", ExprString(s.X))
	case *EmptyStmt:
		p.line(";")
	case *IfStmt:
		p.attrs(s.Attrs)
		p.line("if (%s)", ExprString(s.Cond))
		p.body(s.Then)
		if s.Else != nil {
			p.line("else")
			p.body(s.Else)
		}
	case *ForStmt:
		p.attrs(s.Attrs)
		init := ""
		switch i := s.Init.(type) {
		case *DeclStmt:
			init = declStmtString(i)
		case *ExprStmt:
			init = ExprString(i.X)
		}
		var cond, post string
		if s.Cond != nil {
			cond = ExprString(s.Cond)
		}
		if s.Post != nil {
			post = ExprString(s.Post)
		}
		p.line("for (%s; %s; %s)", init, cond, post)
		p.body(s.Body)
	case *WhileStmt:
		p.attrs(s.Attrs)
		p.line("while (%s)", ExprString(s.Cond))
		p.body(s.Body)
	case *DoWhileStmt:
		p.attrs(s.Attrs)
		p.line("do")
		p.body(s.Body)
		p.line("while (%s);", ExprString(s.Cond))
	case *SwitchStmt:
		p.attrs(s.Attrs)
		p.line("switch (%s)", ExprString(s.Tag))
		p.line("{")
		for _, c := range s.Cases {
			p.caseClause(c)
		}
		p.line("}")
	case *BreakStmt:
		p.line("break;")
	case *ContinueStmt:
		p.line("continue;")
	case *DiscardStmt:
		p.line("discard;")
	case *ReturnStmt:
		if s.Value == nil {
			p.line("return;")
		} else {
			p.line("return %s;", ExprString(s.Value))
		}
	}
}

func (p *printer) caseClause(c *CaseClause) {
	if c.Values == nil {
		p.line("default:")
	}
	for _, v := range c.Values {
		p.line("case %s:", ExprString(v))
	}
	p.indent++
	for _, s := range c.Body {
		p.stmt(s)
	}
	p.indent--
}

func declStmtString(d *DeclStmt) string {
	if len(d.Vars) == 0 {
		return ""
	}
	first := varString(d.Vars[0])
	rest := make([]string, 0, len(d.Vars)-1)
	for _, v := range d.Vars[1:] {
		rest = append(rest, declaratorString(v))
	}
	if len(rest) == 0 {
		return first
	}
	return first + ", " + strings.Join(rest, ", ")
}

func varString(v *VarDecl) string {
	return qualString(v.Qualifiers) + v.Type.String() + " " + declaratorString(v)
}

func declaratorString(v *VarDecl) string {
	var sb strings.Builder
	sb.WriteString(v.Name)
	for _, d := range v.ArrayDims {
		sb.WriteString("[" + ExprString(d) + "]")
	}
	if v.Semantic != "" {
		sb.WriteString(" : " + v.Semantic)
	}
	if v.Init != nil {
		sb.WriteString(" = " + ExprString(v.Init))
	}
	return sb.String()
}

func paramString(prm *Param) string {
	var sb strings.Builder
	sb.WriteString(qualString(prm.Qualifiers) + prm.Type.String() + " " + prm.Name)
	for _, d := range prm.ArrayDims {
		sb.WriteString("[" + ExprString(d) + "]")
	}
	if prm.Semantic != "" {
		sb.WriteString(" : " + prm.Semantic)
	}
	return sb.String()
}

func attrString(a *Attribute) string {
	if a.Args == nil {
		return "[" + a.Name + "]"
	}
	return "[" + a.Name + "(" + exprList(a.Args) + ")]"
}

func qualString(q Qualifier) string {
	var sb strings.Builder
	for _, qk := range QualifierKeywords {
		if q.Has(qk.Qual) {
			sb.WriteString(strings.Trim(qk.Kind.String(), "'") + " ")
		}
	}
	return sb.String()
}

// String formats the type reference as written.
func (t *TypeRef) String() string {
	if len(t.Params) == 0 {
		return t.Name
	}
	return t.Name + "<" + strings.Join(t.Params, ", ") + ">"
}

func exprList(list []Expr) string {
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = ExprString(e)
	}
	return strings.Join(parts, ", ")
}

// ExprString formats an expression with explicit parentheses around every
// operator application.
func ExprString(e Expr) string {
	switch e := e.(type) {
	case *IntLit:
		return e.Text
	case *FloatLit:
		return e.Text
	case *BoolLit:
		return strconv.FormatBool(e.Value)
	case *StringLit:
		return e.Text
	case *Ident:
		return e.Name
	case *UnaryExpr:
		return "(" + strings.Trim(e.Op.String(), "'") + ExprString(e.X) + ")"
	case *IncDecExpr:
		op := strings.Trim(e.Op.String(), "'")
		if e.Prefix {
			return "(" + op + ExprString(e.X) + ")"
		}
		return "(" + ExprString(e.X) + op + ")"
	case *BinaryExpr:
		return "(" + ExprString(e.X) + " " + string(e.Op) + " " + ExprString(e.Y) + ")"
	case *ConditionalExpr:
		return "(" + ExprString(e.Cond) + " ? " + ExprString(e.Then) + " : " + ExprString(e.Else) + ")"
	case *AssignExpr:
		return "(" + ExprString(e.LHS) + " " + string(e.Op) + "= " + ExprString(e.RHS) + ")"
	case *MemberExpr:
		return ExprString(e.X) + "." + e.Name
	case *IndexExpr:
		return ExprString(e.X) + "[" + ExprString(e.Index) + "]"
	case *CallExpr:
		return ExprString(e.Fn) + "(" + exprList(e.Args) + ")"
	case *ConstructExpr:
		return e.TypeRef.String() + "(" + exprList(e.Args) + ")"
	case *CastExpr:
		return "((" + e.To.String() + ")" + ExprString(e.X) + ")"
	case nil:
		return ""
	}
	return fmt.Sprintf("<%T>", e)
}
