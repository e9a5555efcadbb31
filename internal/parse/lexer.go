package parse

import (
	"strconv"
	"strings"
	"text/scanner"

	"github.com/cockroachdb/errors"
)

var ErrBadSyntax = errors.New("bad syntax")

type Lexer struct {
	keywords map[string]bool
	scanner  scanner.Scanner
	token    rune
	tokenVal string
}

func NewLexer(input string) *Lexer {
	keywords := map[string]bool{
		"select": true, "distinct": true, "from": true, "where": true, "and": true,
		"group": true, "by": true, "create": true, "table": true,
		"int": true, "real": true, "varchar": true,
		"count": true, "sum": true, "avg": true, "min": true, "max": true,
	}

	l := &Lexer{
		keywords: keywords,
	}

	l.scanner.Init(strings.NewReader(input))
	l.scanner.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings | scanner.ScanComments | scanner.SkipComments
	l.scanner.Whitespace = 1<<'\t' | 1<<'\n' | 1<<'\r' | 1<<' '
	l.scanner.Error = func(*scanner.Scanner, string) {}

	l.nextToken()
	return l
}

// nextToken advances to the next token and updates token/tokenVal.
// The scanner doesn't handle single-quoted strings, so we parse them manually.
// Identifiers keep their case: table files are named after them.
func (l *Lexer) nextToken() {
	l.token = l.scanner.Scan()
	l.tokenVal = l.scanner.TokenText()

	if l.token == '\'' {
		var sb strings.Builder
		for {
			ch := l.scanner.Next()
			if ch == scanner.EOF {
				break
			}
			if ch == '\'' {
				// Two consecutive quotes means an escaped quote
				if l.scanner.Peek() == '\'' {
					sb.WriteRune('\'')
					l.scanner.Next()
				} else {
					break
				}
			} else {
				sb.WriteRune(ch)
			}
		}
		l.tokenVal = sb.String()
	}
}

// AtEnd reports whether all input has been consumed.
func (l *Lexer) AtEnd() bool {
	return l.token == scanner.EOF
}

// MatchDelim checks if the current token is the specified delimiter.
func (l *Lexer) MatchDelim(d rune) bool {
	return l.token == d
}

// MatchIntConstant checks if the current token is an integer constant.
func (l *Lexer) MatchIntConstant() bool {
	return l.token == scanner.Int
}

// MatchRealConstant checks if the current token is a floating point constant.
func (l *Lexer) MatchRealConstant() bool {
	return l.token == scanner.Float
}

// MatchStringConstant checks if the current token is a string constant (single or double quoted).
func (l *Lexer) MatchStringConstant() bool {
	return l.token == '\'' || l.token == scanner.String
}

// MatchKeyword checks if the current token is the specified keyword (case-insensitive).
func (l *Lexer) MatchKeyword(w string) bool {
	return l.token == scanner.Ident && strings.EqualFold(l.tokenVal, w)
}

// MatchId checks if the current token is an identifier (not a keyword).
func (l *Lexer) MatchId() bool {
	return l.token == scanner.Ident && !l.keywords[strings.ToLower(l.tokenVal)]
}

// EatDelim consumes the current token if it matches the specified delimiter.
func (l *Lexer) EatDelim(d rune) error {
	if !l.MatchDelim(d) {
		return l.syntaxError("expected %q", d)
	}
	l.nextToken()
	return nil
}

// EatIntConstant consumes an integer constant and returns its value.
func (l *Lexer) EatIntConstant() (int, error) {
	if !l.MatchIntConstant() {
		return 0, l.syntaxError("expected an integer")
	}
	i, err := strconv.Atoi(l.tokenVal)
	if err != nil {
		return 0, l.syntaxError("integer %s out of range", l.tokenVal)
	}
	l.nextToken()
	return i, nil
}

// EatRealConstant consumes a floating point constant and returns its value.
func (l *Lexer) EatRealConstant() (float64, error) {
	if !l.MatchRealConstant() {
		return 0, l.syntaxError("expected a real number")
	}
	f, err := strconv.ParseFloat(l.tokenVal, 64)
	if err != nil {
		return 0, l.syntaxError("bad real %s", l.tokenVal)
	}
	l.nextToken()
	return f, nil
}

// EatStringConstant consumes a string constant and returns it unquoted.
func (l *Lexer) EatStringConstant() (string, error) {
	if !l.MatchStringConstant() {
		return "", l.syntaxError("expected a string")
	}

	s := l.tokenVal
	if l.token == scanner.String && len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	l.nextToken()
	return s, nil
}

// EatKeyword consumes the current token if it matches the specified keyword (case-insensitive).
func (l *Lexer) EatKeyword(w string) error {
	if !l.MatchKeyword(w) {
		return l.syntaxError("expected %s", strings.ToUpper(w))
	}
	l.nextToken()
	return nil
}

// EatId consumes an identifier and returns its name.
func (l *Lexer) EatId() (string, error) {
	if !l.MatchId() {
		return "", l.syntaxError("expected an identifier")
	}
	s := l.tokenVal
	l.nextToken()
	return s, nil
}

func (l *Lexer) syntaxError(format string, args ...any) error {
	near := l.tokenVal
	if l.AtEnd() {
		near = "end of input"
	}
	return errors.Wrapf(ErrBadSyntax, format+" near %q", append(args, near)...)
}
