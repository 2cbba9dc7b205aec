package vars

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jacoelho/dq/internal/dq/number"
	"github.com/jacoelho/dq/internal/dq/value"
)

// operand is an evaluated term. Quoted string literals never take part in
// numeric addition, even when they look like numbers.
type operand struct {
	val    any
	quoted bool
}

// Evaluate computes a placeholder body over the environment. The grammar is
// deliberately small: identifiers, numbers, quoted strings, and `+` for
// addition or concatenation. Anything else fails with ErrExpression.
func Evaluate(input string, env *Environment) (any, error) {
	lex := newLexer(input)
	left, err := evalOperand(lex, env)
	if err != nil {
		return nil, err
	}
	for {
		tok, err := lex.next()
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokenEOF:
			return left.val, nil
		case tokenPlus:
			right, err := evalOperand(lex, env)
			if err != nil {
				return nil, err
			}
			left = add(left, right)
		default:
			return nil, fmt.Errorf("%w: unexpected token %q", ErrExpression, tok.value)
		}
	}
}

func evalOperand(lex *lexer, env *Environment) (operand, error) {
	tok, err := lex.next()
	if err != nil {
		return operand{}, err
	}
	switch tok.kind {
	case tokenIdent:
		v, ok := env.Get(tok.value)
		if !ok {
			return operand{}, fmt.Errorf("%w: unknown variable %q", ErrExpression, tok.value)
		}
		return operand{val: v}, nil
	case tokenNumber:
		f, err := strconv.ParseFloat(tok.value, 64)
		if err != nil {
			return operand{}, fmt.Errorf("%w: malformed number %q", ErrExpression, tok.value)
		}
		return operand{val: f}, nil
	case tokenString:
		return operand{val: tok.value, quoted: true}, nil
	default:
		return operand{}, fmt.Errorf("%w: expected operand, got %q", ErrExpression, tok.value)
	}
}

// add performs numeric addition when both operands coerce to numbers, and
// string concatenation otherwise.
func add(a, b operand) operand {
	if !a.quoted && !b.quoted {
		af, aok := numeric(a.val)
		bf, bok := numeric(b.val)
		if aok && bok {
			return operand{val: af + bf}
		}
	}
	return operand{val: value.Stringify(a.val) + value.Stringify(b.val)}
}

func numeric(v any) (float64, bool) {
	if f, ok := number.ToFloat64(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}
