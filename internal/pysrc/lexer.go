package pysrc

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes Python source. It implements the pieces of the lexical
// grammar the declaration parser depends on: logical lines (implicit joining
// inside brackets, explicit backslash joining), INDENT/DEDENT tracking,
// comments, and string literals including triple-quoted and prefixed forms.
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
	line         int  // current line number
	column       int  // current column number

	bracketDepth int  // nesting of ( [ { for implicit line joining
	atLineStart  bool // next token begins a logical line
	indents      []int
	pending      []Token
	eofFinalized bool
}

func NewLexer(input string) *Lexer {
	l := &Lexer{
		input:       input,
		line:        1,
		column:      0,
		atLineStart: true,
		indents:     []int{0},
	}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}

	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		l.readPosition++
		l.column++
		return
	}

	r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += w
	l.column++
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) peekCharAt(offset int) rune {
	pos := l.readPosition
	for i := 0; i < offset; i++ {
		if pos >= len(l.input) {
			return 0
		}
		_, w := utf8.DecodeRuneInString(l.input[pos:])
		pos += w
	}
	if pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[pos:])
	return r
}

// NextToken returns the next token in the stream. After the input is
// exhausted it keeps returning EOF.
func (l *Lexer) NextToken() Token {
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok
	}

	if l.atLineStart && l.bracketDepth == 0 {
		if tok, ok := l.handleLineStart(); ok {
			return tok
		}
	}

	l.skipSpaces()

	switch {
	case l.ch == 0:
		return l.finalizeEOF()

	case l.ch == '#':
		l.skipComment()
		return l.NextToken()

	case l.ch == '\\' && (l.peekChar() == '\n' || l.peekChar() == '\r'):
		l.readChar() // backslash
		if l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '\n' {
			l.readChar()
		}
		return l.NextToken()

	case l.ch == '\n':
		tok := Token{Type: NEWLINE, Literal: "\n", Line: l.line, Column: l.column}
		if l.bracketDepth > 0 {
			l.readChar()
			return l.NextToken()
		}
		l.atLineStart = true
		l.readChar()
		return tok

	case l.ch == '\'' || l.ch == '"':
		return l.readString(false)

	case isIdentStart(l.ch):
		return l.readNameOrPrefixedString()

	case unicode.IsDigit(l.ch) || (l.ch == '.' && unicode.IsDigit(l.peekChar())):
		return l.readNumber()

	default:
		return l.readOperator()
	}
}

// handleLineStart measures indentation and queues INDENT/DEDENT tokens.
// Returns a token when one is ready; otherwise the caller continues with
// the regular scan.
func (l *Lexer) handleLineStart() (Token, bool) {
	for {
		width := 0
		for {
			if l.ch == ' ' {
				width++
			} else if l.ch == '\t' {
				width += 8 - width%8
			} else if l.ch == '\f' {
				// ignore form feeds in indentation
			} else {
				break
			}
			l.readChar()
		}

		if l.ch == '#' {
			l.skipComment()
		}
		if l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '\n' {
			// blank line, no tokens
			l.readChar()
			continue
		}
		if l.ch == 0 {
			// let the EOF path emit the closing dedents
			return l.finalizeEOF(), true
		}

		l.atLineStart = false
		top := l.indents[len(l.indents)-1]
		switch {
		case width > top:
			l.indents = append(l.indents, width)
			return Token{Type: INDENT, Line: l.line, Column: l.column}, true
		case width < top:
			for len(l.indents) > 1 && width < l.indents[len(l.indents)-1] {
				l.indents = l.indents[:len(l.indents)-1]
				l.pending = append(l.pending, Token{Type: DEDENT, Line: l.line, Column: l.column})
			}
			if width != l.indents[len(l.indents)-1] {
				l.pending = append(l.pending, Token{
					Type:    ILLEGAL,
					Literal: "inconsistent indentation",
					Line:    l.line,
					Column:  l.column,
				})
			}
			tok := l.pending[0]
			l.pending = l.pending[1:]
			return tok, true
		}
		return Token{}, false
	}
}

func (l *Lexer) finalizeEOF() Token {
	if !l.eofFinalized {
		l.eofFinalized = true
		// terminate the last logical line if the file lacks a trailing newline
		needNewline := !l.atLineStart
		for len(l.indents) > 1 {
			l.indents = l.indents[:len(l.indents)-1]
			l.pending = append(l.pending, Token{Type: DEDENT, Line: l.line, Column: l.column})
		}
		l.pending = append(l.pending, Token{Type: EOF, Line: l.line, Column: l.column})
		if needNewline {
			return Token{Type: NEWLINE, Literal: "\n", Line: l.line, Column: l.column}
		}
	}
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok
	}
	return Token{Type: EOF, Line: l.line, Column: l.column}
}

func (l *Lexer) skipSpaces() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\f' {
		l.readChar()
	}
}

func (l *Lexer) skipComment() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

func (l *Lexer) readNameOrPrefixedString() Token {
	line, col := l.line, l.column
	start := l.position
	for isIdentPart(l.ch) {
		l.readChar()
	}
	name := l.input[start:l.position]

	// string prefixes: r"", b'', rb""", f"..." etc.
	if (l.ch == '\'' || l.ch == '"') && isStringPrefix(name) {
		raw := strings.ContainsAny(name, "rR")
		tok := l.readString(raw)
		tok.Line, tok.Column = line, col
		return tok
	}

	return Token{Type: NAME, Literal: name, Line: line, Column: col}
}

func isStringPrefix(s string) bool {
	if len(s) == 0 || len(s) > 3 {
		return false
	}
	for _, r := range s {
		switch r {
		case 'r', 'R', 'b', 'B', 'u', 'U', 'f', 'F':
		default:
			return false
		}
	}
	return true
}

func (l *Lexer) readString(raw bool) Token {
	line, col := l.line, l.column
	quote := l.ch
	l.readChar()

	triple := false
	if l.ch == quote && l.peekChar() == quote {
		triple = true
		l.readChar()
		l.readChar()
	} else if l.ch == quote {
		// empty string
		l.readChar()
		return Token{Type: STRING, Literal: "", Line: line, Column: col}
	}

	var b strings.Builder
	for {
		if l.ch == 0 {
			return Token{Type: ILLEGAL, Literal: "unterminated string literal", Line: line, Column: col}
		}
		if !triple && l.ch == '\n' {
			return Token{Type: ILLEGAL, Literal: "unterminated string literal", Line: line, Column: col}
		}
		if l.ch == '\\' && !raw {
			l.readChar()
			switch l.ch {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			case '\\', '\'', '"':
				b.WriteRune(l.ch)
			case '\n':
				// escaped newline inside a string continues the literal
			default:
				b.WriteRune('\\')
				b.WriteRune(l.ch)
			}
			l.readChar()
			continue
		}
		if l.ch == quote {
			if !triple {
				l.readChar()
				break
			}
			if l.peekChar() == quote && l.peekCharAt(1) == quote {
				l.readChar()
				l.readChar()
				l.readChar()
				break
			}
		}
		b.WriteRune(l.ch)
		l.readChar()
	}

	return Token{Type: STRING, Literal: b.String(), Line: line, Column: col}
}

func (l *Lexer) readNumber() Token {
	line, col := l.line, l.column
	start := l.position
	for isIdentPart(l.ch) || l.ch == '.' ||
		((l.ch == '+' || l.ch == '-') && (prevRune(l.input, l.position) == 'e' || prevRune(l.input, l.position) == 'E')) {
		l.readChar()
	}
	return Token{Type: NUMBER, Literal: l.input[start:l.position], Line: line, Column: col}
}

// multiCharOps are matched greedily, longest first. Exact operator identity
// only matters for a handful of tokens (-> : , | = @ and brackets); the rest
// are lexed so the parser can skip over them faithfully.
var multiCharOps = []string{
	"**=", "//=", ">>=", "<<=", "...", "!=", ">=", "<=", "==", "->",
	":=", "+=", "-=", "*=", "/=", "%=", "@=", "&=", "|=", "^=",
	"**", "//", "<<", ">>",
}

func (l *Lexer) readOperator() Token {
	line, col := l.line, l.column

	rest := l.input[l.position:]
	for _, op := range multiCharOps {
		if strings.HasPrefix(rest, op) {
			for range op {
				l.readChar()
			}
			return Token{Type: OP, Literal: op, Line: line, Column: col}
		}
	}

	ch := l.ch
	switch ch {
	case '(', '[', '{':
		l.bracketDepth++
	case ')', ']', '}':
		if l.bracketDepth > 0 {
			l.bracketDepth--
		}
	}

	switch ch {
	case '(', ')', '[', ']', '{', '}', ',', ':', '.', ';', '@', '=', '+',
		'-', '*', '/', '%', '&', '|', '^', '~', '<', '>':
		l.readChar()
		return Token{Type: OP, Literal: string(ch), Line: line, Column: col}
	}

	l.readChar()
	return Token{
		Type:    ILLEGAL,
		Literal: fmt.Sprintf("unexpected character %q", ch),
		Line:    line,
		Column:  col,
	}
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}

func prevRune(s string, pos int) rune {
	if pos == 0 || pos > len(s) {
		return 0
	}
	r, _ := utf8.DecodeLastRuneInString(s[:pos])
	return r
}
