// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package formula

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrParse is wrapped by every error returned by Parse
var ErrParse = errors.New("cannot parse formula")

const symbolChars = "~!@$%^&*_-+=<>.?/"

var reserved = map[string]bool{
	"true": true, "false": true, "and": true, "or": true, "not": true, "let": true, "forall": true,
	"exists": true, "distinct": true, "ite": true, "=>": true, "<=": true, ">=": true, "<": true, ">": true,
	"=": true, "+": true, "-": true, "*": true,
}

// symbol returns the SMT-LIB representation of a variable name: the name itself when it is a simple symbol, the
// name quoted between vertical bars otherwise.
func symbol(name string) string {
	if isSimpleSymbol(name) {
		return name
	}
	return "|" + name + "|"
}

func isSimpleSymbol(s string) bool {
	if s == "" || reserved[s] {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', strings.ContainsRune(symbolChars, r):
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// sexp is a parsed s-expression: either an atom (a symbol or a numeral) or a list
type sexp struct {
	atom   string
	quoted bool
	list   []sexp
	isList bool
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		case ';': // comment until end of line
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *lexer) parse() (sexp, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return sexp{}, fmt.Errorf("%w: unexpected end of input", ErrParse)
	}
	switch c := l.src[l.pos]; c {
	case '(':
		l.pos++
		res := sexp{isList: true}
		for {
			l.skipSpace()
			if l.pos >= len(l.src) {
				return sexp{}, fmt.Errorf("%w: unclosed parenthesis", ErrParse)
			}
			if l.src[l.pos] == ')' {
				l.pos++
				return res, nil
			}
			e, err := l.parse()
			if err != nil {
				return sexp{}, err
			}
			res.list = append(res.list, e)
		}
	case ')':
		return sexp{}, fmt.Errorf("%w: unexpected ')' at %d", ErrParse, l.pos)
	case '|':
		end := strings.IndexByte(l.src[l.pos+1:], '|')
		if end < 0 {
			return sexp{}, fmt.Errorf("%w: unterminated quoted symbol", ErrParse)
		}
		name := l.src[l.pos+1 : l.pos+1+end]
		l.pos += end + 2
		return sexp{atom: name, quoted: true}, nil
	default:
		start := l.pos
		for l.pos < len(l.src) && !strings.ContainsRune(" \t\n\r()|;", rune(l.src[l.pos])) {
			l.pos++
		}
		return sexp{atom: l.src[start:l.pos]}, nil
	}
}

// Parse reads a formula printed by String. Supported syntax: true, false, and, or, not, =>, the comparisons
// <= < >= > = distinct over linear terms built from numerals, symbols, +, - and multiplication by a numeral.
func Parse(src string) (Formula, error) {
	l := &lexer{src: src}
	e, err := l.parse()
	if err != nil {
		return nil, err
	}
	l.skipSpace()
	if l.pos != len(l.src) {
		return nil, fmt.Errorf("%w: trailing input at %d", ErrParse, l.pos)
	}
	return toFormula(e)
}

// MustParse is like Parse but panics on error. Used for constant formulas in tests and fixtures.
func MustParse(src string) Formula {
	f, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return f
}

func toFormula(e sexp) (Formula, error) {
	if !e.isList {
		switch {
		case !e.quoted && e.atom == "true":
			return True, nil
		case !e.quoted && e.atom == "false":
			return False, nil
		}
		return nil, fmt.Errorf("%w: %q is not a formula", ErrParse, e.atom)
	}
	if len(e.list) == 0 || e.list[0].isList {
		return nil, fmt.Errorf("%w: malformed application", ErrParse)
	}
	head, args := e.list[0].atom, e.list[1:]
	switch head {
	case "and", "or":
		fs := make([]Formula, len(args))
		for i, a := range args {
			f, err := toFormula(a)
			if err != nil {
				return nil, err
			}
			fs[i] = f
		}
		if head == "and" {
			return Conj(fs...), nil
		}
		return Disj(fs...), nil
	case "not":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: not expects one argument", ErrParse)
		}
		f, err := toFormula(args[0])
		if err != nil {
			return nil, err
		}
		return Negate(f), nil
	case "=>":
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: => expects two arguments", ErrParse)
		}
		a, err := toFormula(args[0])
		if err != nil {
			return nil, err
		}
		b, err := toFormula(args[1])
		if err != nil {
			return nil, err
		}
		return Implies(a, b), nil
	case "<=", "<", ">=", ">", "=", "distinct":
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: %s expects two arguments", ErrParse, head)
		}
		a, err := toTerm(args[0])
		if err != nil {
			return nil, err
		}
		b, err := toTerm(args[1])
		if err != nil {
			return nil, err
		}
		switch head {
		case "<=":
			return Le(a, b), nil
		case "<":
			return Lt(a, b), nil
		case ">=":
			return Ge(a, b), nil
		case ">":
			return Gt(a, b), nil
		case "=":
			return Eq(a, b), nil
		default:
			return Ne(a, b), nil
		}
	}
	return nil, fmt.Errorf("%w: unknown operator %q", ErrParse, head)
}

func toTerm(e sexp) (Term, error) {
	if !e.isList {
		if e.quoted {
			return Var(e.atom), nil
		}
		if c, err := strconv.ParseInt(e.atom, 10, 64); err == nil {
			if c < 0 {
				return Term{}, fmt.Errorf("%w: negative numeral %q", ErrParse, e.atom)
			}
			return Const(c), nil
		}
		if !isSimpleSymbol(e.atom) {
			return Term{}, fmt.Errorf("%w: invalid symbol %q", ErrParse, e.atom)
		}
		return Var(e.atom), nil
	}
	if len(e.list) == 0 || e.list[0].isList {
		return Term{}, fmt.Errorf("%w: malformed term", ErrParse)
	}
	head, args := e.list[0].atom, e.list[1:]
	terms := make([]Term, len(args))
	for i, a := range args {
		t, err := toTerm(a)
		if err != nil {
			return Term{}, err
		}
		terms[i] = t
	}
	switch head {
	case "+":
		res := Term{}
		for _, t := range terms {
			res = res.Add(t)
		}
		return res, nil
	case "-":
		if len(terms) == 0 {
			return Term{}, fmt.Errorf("%w: - expects arguments", ErrParse)
		}
		if len(terms) == 1 {
			return terms[0].Scale(-1), nil
		}
		res := terms[0]
		for _, t := range terms[1:] {
			res = res.Sub(t)
		}
		return res, nil
	case "*":
		if len(terms) != 2 {
			return Term{}, fmt.Errorf("%w: * expects two arguments", ErrParse)
		}
		switch {
		case terms[0].IsConst():
			return terms[1].Scale(terms[0].Const), nil
		case terms[1].IsConst():
			return terms[0].Scale(terms[1].Const), nil
		}
		return Term{}, fmt.Errorf("%w: non-linear multiplication", ErrParse)
	}
	return Term{}, fmt.Errorf("%w: unknown function %q", ErrParse, head)
}
