package pysrc

// TokenType classifies lexical tokens of a Python source file.
type TokenType int

const (
	EOF TokenType = iota
	ILLEGAL

	NEWLINE // end of a logical line
	INDENT  // indentation increased
	DEDENT  // indentation decreased

	NAME   // identifiers and keywords
	NUMBER // numeric literal, lexed but never interpreted
	STRING // string literal, prefix and quotes stripped
	OP     // operator or delimiter, literal text preserved
)

func (t TokenType) String() string {
	switch t {
	case EOF:
		return "EOF"
	case ILLEGAL:
		return "ILLEGAL"
	case NEWLINE:
		return "NEWLINE"
	case INDENT:
		return "INDENT"
	case DEDENT:
		return "DEDENT"
	case NAME:
		return "NAME"
	case NUMBER:
		return "NUMBER"
	case STRING:
		return "STRING"
	case OP:
		return "OP"
	}
	return "UNKNOWN"
}

// Token is a single lexical token with its source position.
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}
