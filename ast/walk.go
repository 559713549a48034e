package ast

// Inspect traverses the tree rooted at node in depth-first order, calling
// f for each node. If f returns false the children of that node are skipped.
func Inspect(node Node, f func(Node) bool) {
	if node == nil || !f(node) {
		return
	}
	walk := func(n Node) { Inspect(n, f) }
	exprs := func(list []Expr) {
		for _, e := range list {
			walk(e)
		}
	}
	attrs := func(list []*Attribute) {
		for _, a := range list {
			walk(a)
		}
	}

	switch n := node.(type) {
	case *Module:
		for _, d := range n.Directives {
			walk(d)
		}
		for _, d := range n.Decls {
			walk(d)
		}
	case *ShaderDecl:
		for _, d := range n.Decls {
			walk(d)
		}
	case *StructDecl:
		for _, f := range n.Fields {
			walk(f)
		}
	case *CBufferDecl:
		for _, m := range n.Members {
			walk(m)
		}
	case *VarDecl:
		walk(n.Type)
		exprs(n.ArrayDims)
		if n.Init != nil {
			walk(n.Init)
		}
	case *Param:
		walk(n.Type)
		exprs(n.ArrayDims)
	case *FuncDecl:
		attrs(n.Attrs)
		walk(n.Result)
		for _, p := range n.Params {
			walk(p)
		}
		if n.Body != nil {
			walk(n.Body)
		}
	case *Attribute:
		exprs(n.Args)

	case *Block:
		for _, s := range n.Stmts {
			walk(s)
		}
	case *DeclStmt:
		for _, v := range n.Vars {
			walk(v)
		}
	case *ExprStmt:
		walk(n.X)
	case *IfStmt:
		attrs(n.Attrs)
		walk(n.Cond)
		walk(n.Then)
		if n.Else != nil {
			walk(n.Else)
		}
	case *ForStmt:
		attrs(n.Attrs)
		if n.Init != nil {
			walk(n.Init)
		}
		if n.Cond != nil {
			walk(n.Cond)
		}
		if n.Post != nil {
			walk(n.Post)
		}
		walk(n.Body)
	case *WhileStmt:
		attrs(n.Attrs)
		walk(n.Cond)
		walk(n.Body)
	case *DoWhileStmt:
		attrs(n.Attrs)
		walk(n.Body)
		walk(n.Cond)
	case *SwitchStmt:
		attrs(n.Attrs)
		walk(n.Tag)
		for _, c := range n.Cases {
			walk(c)
		}
	case *CaseClause:
		exprs(n.Values)
		for _, s := range n.Body {
			walk(s)
		}
	case *ReturnStmt:
		if n.Value != nil {
			walk(n.Value)
		}

	case *UnaryExpr:
		walk(n.X)
	case *IncDecExpr:
		walk(n.X)
	case *BinaryExpr:
		walk(n.X)
		walk(n.Y)
	case *ConditionalExpr:
		walk(n.Cond)
		walk(n.Then)
		walk(n.Else)
	case *AssignExpr:
		walk(n.LHS)
		walk(n.RHS)
	case *MemberExpr:
		walk(n.X)
	case *IndexExpr:
		walk(n.X)
		walk(n.Index)
	case *CallExpr:
		walk(n.Fn)
		exprs(n.Args)
	case *ConstructExpr:
		walk(n.TypeRef)
		exprs(n.Args)
	case *CastExpr:
		walk(n.To)
		walk(n.X)
	}
}
