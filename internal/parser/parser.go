// Package parser implements a recursive-descent parser for uC (spec.md
// §6.2), producing the ast.Node tree described in spec.md §3.1.
//
// The teacher (hhramberg-go-vslc) generates its parser with goyacc from an
// LALR grammar file (src/frontend/*.y, built via `go:generate goyacc`).
// That generation step cannot be reproduced here: this exercise forbids
// running any Go/build tooling, and a goyacc grammar file without a
// generation pass is not a working parser. A hand-written recursive-descent
// parser over the same grammar (§6.2's operator precedence table collapses
// cleanly into a classic precedence-climbing expression parser) is the
// substitute the spec invites ("An implementer can reproduce [the parser]
// from ... the grammar in §6.2").
package parser

import (
	"fmt"

	"ucc/internal/ast"
	"ucc/internal/lexer"
	"ucc/internal/types"
)

// Parse scans and parses src, returning the Program root node.
func Parse(src string) (*ast.Node, error) {
	toks, err := lexer.Lex(src)
	if err != nil {
		return nil, fmt.Errorf("lexical error: %w", err)
	}
	p := &parser{toks: toks}
	prog, err := p.parseProgram()
	if err != nil {
		return nil, fmt.Errorf("syntax error: %w", err)
	}
	return prog, nil
}

type parser struct {
	toks []lexer.Token
	pos  int
}

func (p *parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *parser) at(t lexer.TokenType) bool {
	return p.cur().Type == t
}

func (p *parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(t lexer.TokenType, what string) (lexer.Token, error) {
	if !p.at(t) {
		c := p.cur()
		return c, fmt.Errorf("%d:%d: expected %s, got %q", c.Line, c.Col, what, c.Val)
	}
	return p.advance(), nil
}

func perr(tok lexer.Token, format string, args ...interface{}) error {
	return fmt.Errorf("%d:%d: %s", tok.Line, tok.Col, fmt.Sprintf(format, args...))
}

// ---------------------------------------------------------------------
// Top level: program := global_declaration+
// ---------------------------------------------------------------------

func (p *parser) parseProgram() (*ast.Node, error) {
	start := p.cur()
	prog := ast.New(ast.Program, start.Line, start.Col)
	gdecl := ast.New(ast.GlobalDecl, start.Line, start.Col)
	prog.Children = append(prog.Children, gdecl)
	for !p.at(lexer.EOF) {
		n, err := p.parseGlobal()
		if err != nil {
			return nil, err
		}
		gdecl.Children = append(gdecl.Children, n)
	}
	return prog, nil
}

// typeKeyword maps a type-introducing keyword token to its Tag.
func (p *parser) typeKeyword() (types.Tag, bool) {
	switch p.cur().Type {
	case lexer.KW_INT:
		return types.Int, true
	case lexer.KW_FLOAT:
		return types.Float, true
	case lexer.KW_CHAR:
		return types.Char, true
	case lexer.KW_VOID:
		return types.Void, true
	}
	return "", false
}

// parseGlobal parses one top-level function definition or declaration.
func (p *parser) parseGlobal() (*ast.Node, error) {
	tok := p.cur()
	tag, ok := p.typeKeyword()
	if !ok {
		return nil, perr(tok, "expected type specifier, got %q", tok.Val)
	}
	typeNode := ast.New(ast.TypeSpec, tok.Line, tok.Col)
	typeNode.TypeTags = []types.Tag{tag}
	p.advance()

	declarator, err := p.parseDeclarator(typeNode)
	if err != nil {
		return nil, err
	}

	if p.at('{') {
		// Function definition: declarator must bottom out in a FuncDecl.
		body, err := p.parseCompound()
		if err != nil {
			return nil, err
		}
		def := ast.New(ast.FuncDef, tok.Line, tok.Col, typeNode, declarator, body)
		return def, nil
	}

	// Declaration: possibly several comma-separated init-declarators.
	decl := ast.New(ast.Decl, tok.Line, tok.Col)
	initDecl, err := p.finishInitDeclarator(declarator)
	if err != nil {
		return nil, err
	}
	decl.Children = append(decl.Children, initDecl)
	for p.at(',') {
		p.advance()
		d2, err := p.parseDeclarator(typeNode)
		if err != nil {
			return nil, err
		}
		d2, err = p.finishInitDeclarator(d2)
		if err != nil {
			return nil, err
		}
		decl.Children = append(decl.Children, d2)
	}
	if _, err := p.expect(';', "';'"); err != nil {
		return nil, err
	}
	return decl, nil
}

// finishInitDeclarator wraps a bare declarator with its optional
// initializer, producing a Decl-child pair of (declarator[, init]).
func (p *parser) finishInitDeclarator(declarator *ast.Node) (*ast.Node, error) {
	if p.at('=') {
		eq := p.advance()
		init, err := p.parseInitializer()
		if err != nil {
			return nil, err
		}
		return ast.New(ast.Decl, eq.Line, eq.Col, declarator, init), nil
	}
	return ast.New(ast.Decl, declarator.Line, declarator.Col, declarator), nil
}

func (p *parser) parseInitializer() (*ast.Node, error) {
	if p.at('{') {
		return p.parseInitList()
	}
	return p.parseExpr()
}

func (p *parser) parseInitList() (*ast.Node, error) {
	lb := p.advance() // '{'
	n := ast.New(ast.InitList, lb.Line, lb.Col)
	if !p.at('}') {
		for {
			item, err := p.parseInitializer()
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, item)
			if p.at(',') {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect('}', "'}'"); err != nil {
		return nil, err
	}
	return n, nil
}

// ---------------------------------------------------------------------
// Declarators: declarator := pointer? direct_declarator
// direct_declarator := ID | direct_declarator '[' const_expr? ']'
//                     | direct_declarator '(' parameter_list ')'
// ---------------------------------------------------------------------

// parseDeclarator parses pointer/array/function modifiers around an
// identifier, building the declarator chain described in spec.md §3.1
// ("Applying a modifier inserts it at the tail of the chain").
func (p *parser) parseDeclarator(base *ast.Node) (*ast.Node, error) {
	var ptrDepth int
	for p.at('*') {
		p.advance()
		ptrDepth++
	}

	idTok, err := p.expect(lexer.IDENTIFIER, "identifier")
	if err != nil {
		return nil, err
	}
	varDecl := ast.New(ast.VarDecl, idTok.Line, idTok.Col)
	varDecl.Name = idTok.Val
	varDecl.Children = []*ast.Node{base}

	chain := varDecl
	for {
		switch {
		case p.at('['):
			lb := p.advance()
			var dim *ast.Node
			if !p.at(']') {
				dim, err = p.parseExpr()
				if err != nil {
					return nil, err
				}
			}
			if _, err := p.expect(']', "']'"); err != nil {
				return nil, err
			}
			arr := ast.New(ast.ArrayDecl, lb.Line, lb.Col, chain)
			if dim != nil {
				arr.Children = append(arr.Children, dim)
			}
			chain = arr
		case p.at('('):
			lp := p.advance()
			params := ast.New(ast.ParamList, lp.Line, lp.Col)
			if !p.at(')') {
				for {
					ptag, ok := p.typeKeyword()
					if !ok {
						return nil, perr(p.cur(), "expected parameter type")
					}
					ptok := p.advance()
					pt := ast.New(ast.TypeSpec, ptok.Line, ptok.Col)
					pt.TypeTags = []types.Tag{ptag}
					pd, err := p.parseDeclarator(pt)
					if err != nil {
						return nil, err
					}
					params.Children = append(params.Children, ast.New(ast.Decl, pd.Line, pd.Col, pd))
					if p.at(',') {
						p.advance()
						continue
					}
					break
				}
			}
			if _, err := p.expect(')', "')'"); err != nil {
				return nil, err
			}
			fn := ast.New(ast.FuncDecl, lp.Line, lp.Col, chain, params)
			chain = fn
		default:
			goto done
		}
	}
done:
	for i := 0; i < ptrDepth; i++ {
		chain = ast.New(ast.PtrDecl, chain.Line, chain.Col, chain)
	}
	return chain, nil
}

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

func (p *parser) parseCompound() (*ast.Node, error) {
	lb, err := p.expect('{', "'{'")
	if err != nil {
		return nil, err
	}
	n := ast.New(ast.Compound, lb.Line, lb.Col)
	for !p.at('}') && !p.at(lexer.EOF) {
		item, err := p.parseBlockItem()
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, item)
	}
	if _, err := p.expect('}', "'}'"); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *parser) parseBlockItem() (*ast.Node, error) {
	if _, ok := p.typeKeyword(); ok {
		return p.parseLocalDecl()
	}
	return p.parseStatement()
}

func (p *parser) parseLocalDecl() (*ast.Node, error) {
	tok := p.cur()
	tag, _ := p.typeKeyword()
	typeNode := ast.New(ast.TypeSpec, tok.Line, tok.Col)
	typeNode.TypeTags = []types.Tag{tag}
	p.advance()

	declarator, err := p.parseDeclarator(typeNode)
	if err != nil {
		return nil, err
	}
	decl := ast.New(ast.Decl, tok.Line, tok.Col)
	d, err := p.finishInitDeclarator(declarator)
	if err != nil {
		return nil, err
	}
	decl.Children = append(decl.Children, d)
	for p.at(',') {
		p.advance()
		d2, err := p.parseDeclarator(typeNode)
		if err != nil {
			return nil, err
		}
		d2, err = p.finishInitDeclarator(d2)
		if err != nil {
			return nil, err
		}
		decl.Children = append(decl.Children, d2)
	}
	if _, err := p.expect(';', "';'"); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *parser) parseStatement() (*ast.Node, error) {
	tok := p.cur()
	switch tok.Type {
	case '{':
		return p.parseCompound()
	case lexer.KW_IF:
		return p.parseIf()
	case lexer.KW_WHILE:
		return p.parseWhile()
	case lexer.KW_FOR:
		return p.parseFor()
	case lexer.KW_BREAK:
		p.advance()
		if _, err := p.expect(';', "';'"); err != nil {
			return nil, err
		}
		return ast.New(ast.Break, tok.Line, tok.Col), nil
	case lexer.KW_RETURN:
		p.advance()
		n := ast.New(ast.Return, tok.Line, tok.Col)
		if !p.at(';') {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, e)
		}
		if _, err := p.expect(';', "';'"); err != nil {
			return nil, err
		}
		return n, nil
	case lexer.KW_ASSERT:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(';', "';'"); err != nil {
			return nil, err
		}
		return ast.New(ast.Assert, tok.Line, tok.Col, e), nil
	case lexer.KW_PRINT:
		p.advance()
		n := ast.New(ast.Print, tok.Line, tok.Col)
		if !p.at(';') {
			for {
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				n.Children = append(n.Children, e)
				if p.at(',') {
					p.advance()
					continue
				}
				break
			}
		}
		if _, err := p.expect(';', "';'"); err != nil {
			return nil, err
		}
		return n, nil
	case lexer.KW_READ:
		p.advance()
		n := ast.New(ast.Read, tok.Line, tok.Col)
		for {
			e, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, e)
			if p.at(',') {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(';', "';'"); err != nil {
			return nil, err
		}
		return n, nil
	case ';':
		p.advance()
		return ast.New(ast.EmptyStatement, tok.Line, tok.Col), nil
	default:
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(';', "';'"); err != nil {
			return nil, err
		}
		return e, nil
	}
}

func (p *parser) parseIf() (*ast.Node, error) {
	tok := p.advance()
	if _, err := p.expect('(', "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(')', "')'"); err != nil {
		return nil, err
	}
	thn, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	n := ast.New(ast.If, tok.Line, tok.Col, cond, thn)
	if p.at(lexer.KW_ELSE) {
		p.advance()
		els, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, els)
	}
	return n, nil
}

func (p *parser) parseWhile() (*ast.Node, error) {
	tok := p.advance()
	if _, err := p.expect('(', "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(')', "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return ast.New(ast.While, tok.Line, tok.Col, cond, body), nil
}

func (p *parser) parseFor() (*ast.Node, error) {
	tok := p.advance()
	if _, err := p.expect('(', "'('"); err != nil {
		return nil, err
	}

	var initN *ast.Node
	if !p.at(';') {
		if _, ok := p.typeKeyword(); ok {
			d, err := p.parseLocalDeclNoSemi()
			if err != nil {
				return nil, err
			}
			initN = ast.New(ast.DeclList, d.Line, d.Col, d)
		} else {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			initN = e
		}
	}
	if _, err := p.expect(';', "';'"); err != nil {
		return nil, err
	}

	var condN *ast.Node
	if !p.at(';') {
		var err error
		condN, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(';', "';'"); err != nil {
		return nil, err
	}

	var nextN *ast.Node
	if !p.at(')') {
		var err error
		nextN, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(')', "')'"); err != nil {
		return nil, err
	}

	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	n := ast.New(ast.For, tok.Line, tok.Col)
	n.Children = []*ast.Node{emptyIfNil(initN, tok), emptyIfNil(condN, tok), emptyIfNil(nextN, tok), body}
	return n, nil
}

func emptyIfNil(n *ast.Node, tok lexer.Token) *ast.Node {
	if n != nil {
		return n
	}
	return ast.New(ast.EmptyStatement, tok.Line, tok.Col)
}

// parseLocalDeclNoSemi parses a declaration without consuming the
// terminating ';' (the For-init grammar owns that semicolon itself).
func (p *parser) parseLocalDeclNoSemi() (*ast.Node, error) {
	tok := p.cur()
	tag, _ := p.typeKeyword()
	typeNode := ast.New(ast.TypeSpec, tok.Line, tok.Col)
	typeNode.TypeTags = []types.Tag{tag}
	p.advance()

	declarator, err := p.parseDeclarator(typeNode)
	if err != nil {
		return nil, err
	}
	decl := ast.New(ast.Decl, tok.Line, tok.Col)
	d, err := p.finishInitDeclarator(declarator)
	if err != nil {
		return nil, err
	}
	decl.Children = append(decl.Children, d)
	for p.at(',') {
		p.advance()
		d2, err := p.parseDeclarator(typeNode)
		if err != nil {
			return nil, err
		}
		d2, err = p.finishInitDeclarator(d2)
		if err != nil {
			return nil, err
		}
		decl.Children = append(decl.Children, d2)
	}
	return decl, nil
}

// ---------------------------------------------------------------------
// Expressions: precedence-climbing over spec.md §6.2's C precedence table.
// ---------------------------------------------------------------------

// assignTokens is the set of assignment operator spellings; assignOp
// below recognises the matching tokens and returns these spellings.
var assignTokens = map[string]bool{"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true}

func (p *parser) parseExpr() (*ast.Node, error) {
	return p.parseAssignment()
}

func (p *parser) parseAssignment() (*ast.Node, error) {
	lhs, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if op, ok := p.assignOp(); ok {
		tok := p.advance()
		rhs, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		n := ast.New(ast.Assignment, tok.Line, tok.Col, lhs, rhs)
		n.Op = op
		return n, nil
	}
	return lhs, nil
}

func (p *parser) assignOp() (string, bool) {
	switch p.cur().Type {
	case '=':
		return "=", true
	case lexer.OP_ADDEQ:
		return "+=", true
	case lexer.OP_SUBEQ:
		return "-=", true
	case lexer.OP_MULEQ:
		return "*=", true
	case lexer.OP_DIVEQ:
		return "/=", true
	case lexer.OP_MODEQ:
		return "%=", true
	}
	return "", false
}

func (p *parser) parseLogicalOr() (*ast.Node, error) {
	lhs, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.OP_OR) {
		tok := p.advance()
		rhs, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		n := ast.New(ast.BinaryOp, tok.Line, tok.Col, lhs, rhs)
		n.Op = "||"
		lhs = n
	}
	return lhs, nil
}

func (p *parser) parseLogicalAnd() (*ast.Node, error) {
	lhs, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.OP_AND) {
		tok := p.advance()
		rhs, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		n := ast.New(ast.BinaryOp, tok.Line, tok.Col, lhs, rhs)
		n.Op = "&&"
		lhs = n
	}
	return lhs, nil
}

func (p *parser) parseEquality() (*ast.Node, error) {
	lhs, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.OP_EQ) || p.at(lexer.OP_NE) {
		tok := p.advance()
		rhs, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		n := ast.New(ast.BinaryOp, tok.Line, tok.Col, lhs, rhs)
		if tok.Type == lexer.OP_EQ {
			n.Op = "=="
		} else {
			n.Op = "!="
		}
		lhs = n
	}
	return lhs, nil
}

func (p *parser) parseRelational() (*ast.Node, error) {
	lhs, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.at('<') || p.at('>') || p.at(lexer.OP_LE) || p.at(lexer.OP_GE) {
		tok := p.advance()
		rhs, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		n := ast.New(ast.BinaryOp, tok.Line, tok.Col, lhs, rhs)
		switch tok.Type {
		case '<':
			n.Op = "<"
		case '>':
			n.Op = ">"
		case lexer.OP_LE:
			n.Op = "<="
		case lexer.OP_GE:
			n.Op = ">="
		}
		lhs = n
	}
	return lhs, nil
}

func (p *parser) parseAdditive() (*ast.Node, error) {
	lhs, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at('+') || p.at('-') {
		tok := p.advance()
		rhs, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		n := ast.New(ast.BinaryOp, tok.Line, tok.Col, lhs, rhs)
		n.Op = string(rune(tok.Type))
		lhs = n
	}
	return lhs, nil
}

func (p *parser) parseMultiplicative() (*ast.Node, error) {
	lhs, err := p.parseCast()
	if err != nil {
		return nil, err
	}
	for p.at('*') || p.at('/') || p.at('%') {
		tok := p.advance()
		rhs, err := p.parseCast()
		if err != nil {
			return nil, err
		}
		n := ast.New(ast.BinaryOp, tok.Line, tok.Col, lhs, rhs)
		n.Op = string(rune(tok.Type))
		lhs = n
	}
	return lhs, nil
}

// parseCast handles "(type) unary" casts, falling back to unary.
func (p *parser) parseCast() (*ast.Node, error) {
	if p.at('(') {
		save := p.pos
		tok := p.advance()
		if tag, ok := p.typeKeyword(); ok {
			p.advance()
			if p.at(')') {
				p.advance()
				expr, err := p.parseCast()
				if err != nil {
					return nil, err
				}
				tnode := ast.New(ast.TypeSpec, tok.Line, tok.Col)
				tnode.TypeTags = []types.Tag{tag}
				return ast.New(ast.Cast, tok.Line, tok.Col, tnode, expr), nil
			}
		}
		p.pos = save
	}
	return p.parseUnary()
}

func (p *parser) parseUnary() (*ast.Node, error) {
	switch p.cur().Type {
	case '+', '-', '!', '*', '&':
		tok := p.advance()
		operand, err := p.parseCast()
		if err != nil {
			return nil, err
		}
		n := ast.New(ast.UnaryOp, tok.Line, tok.Col, operand)
		n.Op = string(rune(tok.Type))
		return n, nil
	case lexer.OP_INC, lexer.OP_DEC:
		tok := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		n := ast.New(ast.UnaryOp, tok.Line, tok.Col, operand)
		if tok.Type == lexer.OP_INC {
			n.Op = "++"
		} else {
			n.Op = "--"
		}
		return n, nil
	default:
		return p.parsePostfix()
	}
}

func (p *parser) parsePostfix() (*ast.Node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Type {
		case '[':
			lb := p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(']', "']'"); err != nil {
				return nil, err
			}
			ref := ast.New(ast.ArrayRef, lb.Line, lb.Col, n, idx)
			n = ref
		case '(':
			lp := p.advance()
			argList := ast.New(ast.ExprList, lp.Line, lp.Col)
			if !p.at(')') {
				for {
					a, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					argList.Children = append(argList.Children, a)
					if p.at(',') {
						p.advance()
						continue
					}
					break
				}
			}
			if _, err := p.expect(')', "')'"); err != nil {
				return nil, err
			}
			n = ast.New(ast.FuncCall, lp.Line, lp.Col, n, argList)
		case lexer.OP_INC, lexer.OP_DEC:
			tok := p.advance()
			un := ast.New(ast.UnaryOp, tok.Line, tok.Col, n)
			if tok.Type == lexer.OP_INC {
				un.Op = "p++"
			} else {
				un.Op = "p--"
			}
			n = un
		default:
			return n, nil
		}
	}
}

func (p *parser) parsePrimary() (*ast.Node, error) {
	tok := p.cur()
	switch tok.Type {
	case '(':
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(')', "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case lexer.IDENTIFIER:
		p.advance()
		n := ast.New(ast.ID, tok.Line, tok.Col)
		n.Name = tok.Val
		return n, nil
	case lexer.INT_CONST:
		p.advance()
		n := ast.New(ast.Constant, tok.Line, tok.Col)
		n.ConstTag = ast.IntConst
		fmt.Sscanf(tok.Val, "%d", &n.IntVal)
		return n, nil
	case lexer.FLOAT_CONST:
		p.advance()
		n := ast.New(ast.Constant, tok.Line, tok.Col)
		n.ConstTag = ast.FloatConst
		fmt.Sscanf(tok.Val, "%g", &n.FloatVal)
		return n, nil
	case lexer.CHAR_CONST:
		p.advance()
		n := ast.New(ast.Constant, tok.Line, tok.Col)
		n.ConstTag = ast.CharConst
		n.CharVal = decodeCharLiteral(tok.Val)
		return n, nil
	case lexer.STRING_CONST:
		p.advance()
		n := ast.New(ast.Constant, tok.Line, tok.Col)
		n.ConstTag = ast.StringConst
		n.StrVal = decodeStringLiteral(tok.Val)
		return n, nil
	default:
		return nil, perr(tok, "unexpected token %q", tok.Val)
	}
}

// decodeStringLiteral strips the surrounding quotes and resolves the
// handful of escapes uC source text may contain.
func decodeStringLiteral(raw string) string {
	if len(raw) >= 2 {
		raw = raw[1 : len(raw)-1]
	}
	return unescape(raw)
}

func decodeCharLiteral(raw string) byte {
	if len(raw) >= 2 {
		raw = raw[1 : len(raw)-1]
	}
	s := unescape(raw)
	if len(s) == 0 {
		return 0
	}
	return s[0]
}

func unescape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			case '0':
				out = append(out, 0)
			case '\\':
				out = append(out, '\\')
			case '"':
				out = append(out, '"')
			case '\'':
				out = append(out, '\'')
			default:
				out = append(out, s[i])
			}
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
