package pysrc

import (
	"fmt"
)

// Parser extracts function and class declarations from a token stream.
// Everything else — statement bodies, expressions, imports — is skipped
// with correct logical-line and block boundaries.
type Parser struct {
	l    *Lexer
	file string

	cur  Token
	peek Token
}

// Parse scans the given source and returns its declaration surface.
// The filename is used only in error messages.
func Parse(source, filename string) (*Module, error) {
	p := &Parser{l: NewLexer(source), file: filename}
	p.advance()
	p.advance()
	return p.parseModule()
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) errorf(tok Token, format string, args ...any) error {
	return fmt.Errorf("%s:%d:%d: %s", p.file, tok.Line, tok.Column, fmt.Sprintf(format, args...))
}

func (p *Parser) parseModule() (*Module, error) {
	mod := &Module{}
	for p.cur.Type != EOF {
		switch {
		case p.cur.Type == ILLEGAL:
			return nil, p.errorf(p.cur, "%s", p.cur.Literal)

		case p.cur.Type == NEWLINE || p.cur.Type == INDENT || p.cur.Type == DEDENT:
			p.advance()

		case p.isDecoratorStart() || p.isDefStart() || p.isClassStart():
			decs, err := p.parseDecorators()
			if err != nil {
				return nil, err
			}
			switch {
			case p.isDefStart():
				fn, err := p.parseDef(decs)
				if err != nil {
					return nil, err
				}
				mod.Functions = append(mod.Functions, fn)
			case p.isClassStart():
				cls, err := p.parseClass(decs)
				if err != nil {
					return nil, err
				}
				mod.Classes = append(mod.Classes, cls)
			default:
				// decorated statement we don't model (e.g. decorated
				// assignment is a syntax error anyway); skip it
				if err := p.skipStatement(); err != nil {
					return nil, err
				}
			}

		default:
			if err := p.skipStatement(); err != nil {
				return nil, err
			}
		}
	}
	return mod, nil
}

func (p *Parser) isDecoratorStart() bool {
	return p.cur.Type == OP && p.cur.Literal == "@"
}

func (p *Parser) isDefStart() bool {
	if p.cur.Type == NAME && p.cur.Literal == "def" {
		return true
	}
	return p.cur.Type == NAME && p.cur.Literal == "async" &&
		p.peek.Type == NAME && p.peek.Literal == "def"
}

func (p *Parser) isClassStart() bool {
	return p.cur.Type == NAME && p.cur.Literal == "class"
}

// parseDecorators consumes zero or more @-lines.
func (p *Parser) parseDecorators() ([]Decorator, error) {
	var decs []Decorator
	for p.isDecoratorStart() {
		p.advance()
		dec, err := p.parseDecorator()
		if err != nil {
			return nil, err
		}
		decs = append(decs, dec)
		for p.cur.Type == NEWLINE {
			p.advance()
		}
	}
	return decs, nil
}

func (p *Parser) parseDecorator() (Decorator, error) {
	if p.cur.Type != NAME {
		return Decorator{}, p.errorf(p.cur, "expected decorator name, got %q", p.cur.Literal)
	}
	full := p.cur.Literal
	last := p.cur.Literal
	p.advance()
	for p.cur.Type == OP && p.cur.Literal == "." {
		p.advance()
		if p.cur.Type != NAME {
			return Decorator{}, p.errorf(p.cur, "expected name after '.' in decorator")
		}
		full += "." + p.cur.Literal
		last = p.cur.Literal
		p.advance()
	}

	dec := Decorator{Name: last, Full: full}
	if p.cur.Type == OP && p.cur.Literal == "(" {
		dec.IsCall = true
		args, err := p.parseDecoratorArgs()
		if err != nil {
			return Decorator{}, err
		}
		dec.Args = args
	}
	return dec, nil
}

// parseDecoratorArgs consumes a balanced argument list, capturing string
// literal arguments (positional and keyword). Non-string arguments are
// recorded without a value so positional indices stay correct.
func (p *Parser) parseDecoratorArgs() ([]DecoratorArg, error) {
	p.advance() // consume '('
	var args []DecoratorArg
	for {
		if p.cur.Type == EOF || p.cur.Type == ILLEGAL {
			return nil, p.errorf(p.cur, "unterminated decorator argument list")
		}
		if p.cur.Type == OP && p.cur.Literal == ")" {
			p.advance()
			return args, nil
		}

		switch {
		case p.cur.Type == NAME && p.peek.Type == OP && p.peek.Literal == "=":
			kw := p.cur.Literal
			p.advance()
			p.advance()
			arg := DecoratorArg{Keyword: kw}
			if p.cur.Type == STRING {
				arg.Value = p.cur.Literal
				arg.IsStr = true
			}
			args = append(args, arg)
			if err := p.skipUntilArgEnd(); err != nil {
				return nil, err
			}
		case p.cur.Type == STRING:
			args = append(args, DecoratorArg{Value: p.cur.Literal, IsStr: true})
			if err := p.skipUntilArgEnd(); err != nil {
				return nil, err
			}
		default:
			args = append(args, DecoratorArg{})
			if err := p.skipUntilArgEnd(); err != nil {
				return nil, err
			}
		}

		if p.cur.Type == OP && p.cur.Literal == "," {
			p.advance()
		}
	}
}

// skipUntilArgEnd consumes tokens until a top-level ',' or the closing ')'.
// The terminator itself is left in place.
func (p *Parser) skipUntilArgEnd() error {
	depth := 0
	for {
		if p.cur.Type == EOF || p.cur.Type == ILLEGAL {
			return p.errorf(p.cur, "unterminated argument")
		}
		if p.cur.Type == OP {
			switch p.cur.Literal {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				if depth == 0 {
					return nil
				}
				depth--
			case ",":
				if depth == 0 {
					return nil
				}
			}
		}
		p.advance()
	}
}

func (p *Parser) parseDef(decs []Decorator) (*FuncDef, error) {
	line := p.cur.Line
	if p.cur.Literal == "async" {
		p.advance()
	}
	p.advance() // consume 'def'

	if p.cur.Type != NAME {
		return nil, p.errorf(p.cur, "expected function name after 'def'")
	}
	fn := &FuncDef{Name: p.cur.Literal, Decorators: decs, Line: line}
	p.advance()

	if !(p.cur.Type == OP && p.cur.Literal == "(") {
		return nil, p.errorf(p.cur, "expected '(' after function name %q", fn.Name)
	}
	p.advance()

	if err := p.parseParams(fn); err != nil {
		return nil, err
	}

	if p.cur.Type == OP && p.cur.Literal == "->" {
		p.advance()
		ret, err := p.parseTypeExpr()
		if err != nil {
			return nil, err
		}
		fn.Returns = ret
	}

	if !(p.cur.Type == OP && p.cur.Literal == ":") {
		return nil, p.errorf(p.cur, "expected ':' in definition of %q", fn.Name)
	}
	p.advance()

	doc, err := p.skipSuite(true)
	if err != nil {
		return nil, err
	}
	fn.Docstring = doc
	return fn, nil
}

func (p *Parser) parseParams(fn *FuncDef) error {
	for {
		switch {
		case p.cur.Type == EOF || p.cur.Type == ILLEGAL:
			return p.errorf(p.cur, "unterminated parameter list of %q", fn.Name)

		case p.cur.Type == OP && p.cur.Literal == ")":
			p.advance()
			return nil

		case p.cur.Type == OP && (p.cur.Literal == "*" || p.cur.Literal == "**"):
			fn.HasVarArgs = true
			p.advance()
			// bare '*' keyword-only marker carries no name
			if p.cur.Type == NAME {
				if err := p.skipUntilArgEnd(); err != nil {
					return err
				}
			}

		case p.cur.Type == OP && p.cur.Literal == "/":
			// positional-only marker
			p.advance()

		case p.cur.Type == NAME:
			param := Param{Name: p.cur.Literal}
			p.advance()
			if p.cur.Type == OP && p.cur.Literal == ":" {
				p.advance()
				ann, err := p.parseTypeExpr()
				if err != nil {
					return err
				}
				param.Annotation = ann
			}
			if p.cur.Type == OP && p.cur.Literal == "=" {
				p.advance()
				if err := p.skipUntilArgEnd(); err != nil {
					return err
				}
			}
			fn.Params = append(fn.Params, param)

		default:
			return p.errorf(p.cur, "unexpected token %q in parameter list of %q", p.cur.Literal, fn.Name)
		}

		if p.cur.Type == OP && p.cur.Literal == "," {
			p.advance()
		}
	}
}

func (p *Parser) parseClass(decs []Decorator) (*ClassDef, error) {
	line := p.cur.Line
	p.advance() // consume 'class'

	if p.cur.Type != NAME {
		return nil, p.errorf(p.cur, "expected class name after 'class'")
	}
	cls := &ClassDef{Name: p.cur.Literal, Decorators: decs, Line: line}
	p.advance()

	if p.cur.Type == OP && p.cur.Literal == "(" {
		if err := p.skipBalanced(); err != nil {
			return nil, err
		}
	}

	if !(p.cur.Type == OP && p.cur.Literal == ":") {
		return nil, p.errorf(p.cur, "expected ':' in class %q", cls.Name)
	}
	p.advance()

	if p.cur.Type != NEWLINE {
		// single-line class body holds nothing we model
		return cls, p.skipToLineEnd()
	}
	p.advance()
	if p.cur.Type != INDENT {
		// empty body (just a docstring or pass on the same line was handled above)
		return cls, nil
	}
	p.advance()

	for p.cur.Type != DEDENT && p.cur.Type != EOF {
		switch {
		case p.cur.Type == ILLEGAL:
			return nil, p.errorf(p.cur, "%s", p.cur.Literal)

		case p.cur.Type == NEWLINE:
			p.advance()

		case p.isDecoratorStart() || p.isDefStart():
			mdecs, err := p.parseDecorators()
			if err != nil {
				return nil, err
			}
			if p.isDefStart() {
				m, err := p.parseDef(mdecs)
				if err != nil {
					return nil, err
				}
				cls.Methods = append(cls.Methods, m)
			} else if p.isClassStart() {
				if _, err := p.parseClass(mdecs); err != nil {
					return nil, err
				}
			} else if err := p.skipStatement(); err != nil {
				return nil, err
			}

		case p.isClassStart():
			if _, err := p.parseClass(nil); err != nil {
				return nil, err
			}

		default:
			if err := p.skipStatement(); err != nil {
				return nil, err
			}
		}
	}
	if p.cur.Type == DEDENT {
		p.advance()
	}
	return cls, nil
}

// parseTypeExpr parses an annotation: dotted names, subscripts and
// PEP 604 unions. Anything else is rejected; the caller turns that into
// a scan diagnostic naming the symbol.
func (p *Parser) parseTypeExpr() (TypeExpr, error) {
	left, err := p.parseTypeAtom()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == OP && p.cur.Literal == "|" {
		p.advance()
		right, err := p.parseTypeAtom()
		if err != nil {
			return nil, err
		}
		left = &TypeUnion{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseTypeAtom() (TypeExpr, error) {
	if p.cur.Type != NAME {
		return nil, p.errorf(p.cur, "unsupported type annotation starting at %q", p.cur.Literal)
	}
	name := p.cur.Literal
	p.advance()
	for p.cur.Type == OP && p.cur.Literal == "." {
		p.advance()
		if p.cur.Type != NAME {
			return nil, p.errorf(p.cur, "expected name after '.' in type annotation")
		}
		name += "." + p.cur.Literal
		p.advance()
	}

	if p.cur.Type == OP && p.cur.Literal == "[" {
		p.advance()
		sub := &TypeSubscript{Base: name}
		for {
			if p.cur.Type == OP && p.cur.Literal == "]" {
				p.advance()
				break
			}
			arg, err := p.parseTypeExpr()
			if err != nil {
				return nil, err
			}
			sub.Args = append(sub.Args, arg)
			if p.cur.Type == OP && p.cur.Literal == "," {
				p.advance()
				continue
			}
			if !(p.cur.Type == OP && p.cur.Literal == "]") {
				return nil, p.errorf(p.cur, "expected ',' or ']' in type annotation")
			}
		}
		return sub, nil
	}

	return &TypeName{Name: name}, nil
}

// skipSuite consumes a statement suite (inline or indented block). When
// wantDoc is set, a leading string literal statement is returned as the
// docstring.
func (p *Parser) skipSuite(wantDoc bool) (string, error) {
	if p.cur.Type != NEWLINE {
		// inline suite: def f(): return 1
		return "", p.skipToLineEnd()
	}
	p.advance()
	if p.cur.Type != INDENT {
		// empty suite is a syntax error in Python, but nothing we must
		// report better than the interpreter would; tolerate it
		return "", nil
	}
	p.advance()

	doc := ""
	if wantDoc && p.cur.Type == STRING {
		doc = p.cur.Literal
		p.advance()
	}

	depth := 0
	for {
		switch p.cur.Type {
		case EOF:
			return doc, nil
		case ILLEGAL:
			return "", p.errorf(p.cur, "%s", p.cur.Literal)
		case INDENT:
			depth++
		case DEDENT:
			if depth == 0 {
				p.advance()
				return doc, nil
			}
			depth--
		}
		p.advance()
	}
}

// skipStatement consumes one statement including any suite it introduces.
func (p *Parser) skipStatement() error {
	if err := p.skipToLineEnd(); err != nil {
		return err
	}
	if p.cur.Type == INDENT {
		depth := 0
		for {
			switch p.cur.Type {
			case EOF:
				return nil
			case ILLEGAL:
				return p.errorf(p.cur, "%s", p.cur.Literal)
			case INDENT:
				depth++
			case DEDENT:
				depth--
				if depth == 0 {
					p.advance()
					return nil
				}
			}
			p.advance()
		}
	}
	return nil
}

func (p *Parser) skipToLineEnd() error {
	for {
		switch p.cur.Type {
		case EOF:
			return nil
		case ILLEGAL:
			return p.errorf(p.cur, "%s", p.cur.Literal)
		case NEWLINE:
			p.advance()
			return nil
		}
		p.advance()
	}
}

// skipBalanced consumes a bracketed group starting at the current token.
func (p *Parser) skipBalanced() error {
	open := p.cur.Literal
	var close string
	switch open {
	case "(":
		close = ")"
	case "[":
		close = "]"
	case "{":
		close = "}"
	default:
		return p.errorf(p.cur, "expected bracket, got %q", open)
	}
	p.advance()
	depth := 1
	for depth > 0 {
		switch {
		case p.cur.Type == EOF || p.cur.Type == ILLEGAL:
			return p.errorf(p.cur, "unterminated %q group", open)
		case p.cur.Type == OP && p.cur.Literal == open:
			depth++
		case p.cur.Type == OP && p.cur.Literal == close:
			depth--
		}
		p.advance()
	}
	return nil
}
