// Copyright 2024 echo304. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package prepack

import (
	"errors"
	"math"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"
)

// The string front end: a scanner that partially evaluates a
// JavaScript-style expression. Known identifiers resolve to concrete
// values; free identifiers become abstract unknowns, so the result is
// either a concrete value or an abstract value carrying the residual
// expression.

// ErrStop is used to stop EvalForEach early.
var ErrStop = errors.New("stop")

type errEval struct {
	pos int
	err error
}

func (err *errEval) Error() string { return err.err.Error() }
func (err *errEval) Unwrap() error { return err.err }

func errSyntax(pos int) error {
	return &errEval{pos: pos, err: errors.New("SyntaxError")}
}

// CharPosOfErr returns the character position of where a syntax error
// occurred in Eval, or -1 if unknown.
func CharPosOfErr(err error) int {
	var e *errEval
	if errors.As(err, &e) {
		return e.pos
	}
	return -1
}

// Resolver supplies values for free identifiers in the source. A miss
// turns the identifier into an abstract unknown carried into the
// residual expression.
type Resolver interface {
	Resolve(name string) (Value, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) (Value, bool)

func (f ResolverFunc) Resolve(name string) (Value, bool) { return f(name) }

// MapResolver resolves identifiers from a fixed map.
type MapResolver map[string]Value

func (m MapResolver) Resolve(name string) (Value, bool) {
	v, ok := m[name]
	return v, ok
}

// newLoc converts a byte offset into a reported location.
func newLoc(pos int) *Location {
	return &Location{Line: 1, Col: pos + 1}
}

// Short-circuit operators, handled by the front end rather than the
// binary-operator core.
const (
	opAnd  Op = "&&"
	opOr   Op = "||"
	opCoal Op = "??"
)

// applyLogical applies a short-circuit operator. A concrete left
// operand decides immediately; an abstract one defers the whole
// operation to the residual.
func applyLogical(op Op, left, right Value) Value {
	if left.kind == abstractKind {
		return NewAbstract(TypeValue, TopValueDomain, []Value{left, right},
			func(args []Node) Node {
				return BinaryNode{Op: op, Left: args[0], Right: args[1]}
			})
	}
	switch op {
	case opAnd:
		if !toBoolean(left) {
			return left
		}
	case opOr:
		if toBoolean(left) {
			return left
		}
	case opCoal:
		if !isNullOrUndefined(left) {
			return left
		}
	}
	return right
}

// negate applies prefix minus; abstract operands defer to the residual.
func negate(v Value) Value {
	if v.kind == abstractKind {
		return NewAbstract(TypeNumber, TopValueDomain, []Value{v},
			func(args []Node) Node {
				return UnaryNode{Op: "-", Operand: args[0]}
			})
	}
	return Number(-toNumber(v))
}

// logicalNot coerces to boolean, inverting when neg is set.
func logicalNot(v Value, neg bool) Value {
	if v.kind == abstractKind {
		op := "!!"
		if neg {
			op = "!"
		}
		return NewAbstract(TypeBoolean, TopValueDomain, []Value{v},
			func(args []Node) Node {
				return UnaryNode{Op: op, Operand: args[0]}
			})
	}
	t := toBoolean(v)
	if neg {
		t = !t
	}
	return Bool(t)
}

// Operator precedence, loosest first. Each level splits its own
// operators at depth zero and recurses into the next level for the
// fragments.
const (
	_              = 1 << iota //
	stepComma                  // ','
	stepTerns                  // '?:'
	stepLogicalOr              // '||' '??'
	stepLogicalAnd             // '&&'
	stepBitOr                  // '|'
	stepBitXor                 // '^'
	stepBitAnd                 // '&'
	stepEquality               // '==' '!=' '===' '!=='
	stepComps                  // '<' '<=' '>' '>=' 'in' 'instanceof'
	stepShifts                 // '<<' '>>' '>>>'
	stepSums                   // '+' '-'
	stepFacts                  // '*' '/' '%'
	stepPow                    // '**'
)

var opSteps = [256]uint16{
	',': stepComma,
	'?': stepTerns | stepLogicalOr,   // '?:' '??'
	':': stepTerns,                   // '?:'
	'|': stepLogicalOr | stepBitOr,   // '||' '|'
	'&': stepLogicalAnd | stepBitAnd, // '&&' '&'
	'^': stepBitXor,
	'=': stepComps | stepEquality, // '==' '<=' '>='
	'!': stepEquality,             // '!' '!='
	'<': stepComps | stepShifts,   // '<' '<=' '<<'
	'>': stepComps | stepShifts,   // '>' '>=' '>>' '>>>'
	'i': stepComps,                // 'in' 'instanceof'
	'+': stepSums,
	'-': stepSums,
	'*': stepFacts | stepPow, // '*' '**'
	'/': stepFacts,
	'%': stepFacts,
}

// Eval partially evaluates a source expression.
func Eval(src string, ctx *Context) (Value, error) {
	return EvalForEach(src, nil, ctx)
}

// EvalForEach iterates over a series of comma delimited expressions.
// The last value in the series is returned. Returning ErrStop from
// iter stops the iteration early and returns the last known value.
func EvalForEach(src string, iter func(value Value) error, ctx *Context,
) (Value, error) {
	expr, pos := trim(src, 0)
	if len(expr) == 0 {
		return Undefined, nil
	}
	// Determine which precedence levels are (possibly) needed by
	// scanning every byte for candidate operator characters.
	var steps int
	for i := 0; i < len(expr); i++ {
		steps |= int(opSteps[expr[i]])
	}
	if iter != nil {
		steps |= stepComma
	}
	return evalExpr(expr, pos, steps, iter, ctx)
}

func evalExpr(expr string, pos, steps int, iter func(value Value) error,
	ctx *Context,
) (Value, error) {
	return evalAuto(stepComma, expr, pos, steps, iter, ctx)
}

func evalAuto(step int, expr string, pos, steps int,
	iter func(value Value) error, ctx *Context,
) (Value, error) {
	switch step {
	case stepComma:
		if steps&stepComma == stepComma {
			return evalComma(expr, pos, steps, iter, ctx)
		}
		fallthrough
	case stepTerns:
		if steps&stepTerns == stepTerns {
			return evalTerns(expr, pos, steps, ctx)
		}
		fallthrough
	case stepLogicalOr:
		if steps&stepLogicalOr == stepLogicalOr {
			return evalLogicalOr(expr, pos, steps, ctx)
		}
		fallthrough
	case stepLogicalAnd:
		if steps&stepLogicalAnd == stepLogicalAnd {
			return evalLogicalAnd(expr, pos, steps, ctx)
		}
		fallthrough
	case stepBitOr:
		if steps&stepBitOr == stepBitOr {
			return evalBitOr(expr, pos, steps, ctx)
		}
		fallthrough
	case stepBitXor:
		if steps&stepBitXor == stepBitXor {
			return evalBitXor(expr, pos, steps, ctx)
		}
		fallthrough
	case stepBitAnd:
		if steps&stepBitAnd == stepBitAnd {
			return evalBitAnd(expr, pos, steps, ctx)
		}
		fallthrough
	case stepEquality:
		if steps&stepEquality == stepEquality {
			return evalEquality(expr, pos, steps, ctx)
		}
		fallthrough
	case stepComps:
		if steps&stepComps == stepComps {
			return evalComps(expr, pos, steps, ctx)
		}
		fallthrough
	case stepShifts:
		if steps&stepShifts == stepShifts {
			return evalShifts(expr, pos, steps, ctx)
		}
		fallthrough
	case stepSums:
		if steps&stepSums == stepSums {
			return evalSums(expr, pos, steps, ctx)
		}
		fallthrough
	case stepFacts:
		if steps&stepFacts == stepFacts {
			return evalFacts(expr, pos, steps, ctx)
		}
		fallthrough
	case stepPow:
		if steps&stepPow == stepPow {
			return evalPow(expr, pos, steps, ctx)
		}
		fallthrough
	default:
		return evalAtom(expr, pos, steps, ctx)
	}
}

func evalComma(expr string, pos, steps int, iter func(value Value) error,
	ctx *Context,
) (Value, error) {
	var s int
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case ',':
			res, err := evalAuto(stepComma<<1, expr[s:i], pos+s, steps, nil, ctx)
			if err != nil {
				return Undefined, err
			}
			if iter != nil {
				if err := iter(res); err != nil {
					if err == ErrStop {
						return res, nil
					}
					return Undefined, err
				}
			}
			s = i + 1
		case '(', '[', '{', '"', '\'', '`':
			g, err := readGroup(expr[i:], pos+i)
			if err != nil {
				return Undefined, err
			}
			i = i + len(g) - 1
		}
	}
	res, err := evalAuto(stepComma<<1, expr[s:], pos+s, steps, nil, ctx)
	if err != nil {
		return Undefined, err
	}
	if iter != nil {
		if err := iter(res); err != nil {
			if err == ErrStop {
				return res, nil
			}
			return Undefined, err
		}
	}
	return res, nil
}

func evalTerns(expr string, pos, steps int, ctx *Context) (Value, error) {
	var cond string
	var s int
	var depth int
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '?':
			if i+1 < len(expr) && expr[i+1] == '?' {
				// '??' operator
				i++
				continue
			}
			if depth == 0 {
				cond = expr[:i]
				s = i + 1
			}
			depth++
		case ':':
			depth--
			if depth == 0 {
				res, err := evalExpr(cond, pos, steps, nil, ctx)
				if err != nil {
					return Undefined, err
				}
				left := expr[s:i]
				right := expr[i+1:]
				if res.kind == abstractKind {
					// Unknown condition: keep both partially
					// evaluated branches in the residual.
					tv, err := evalExpr(left, pos+s, steps, nil, ctx)
					if err != nil {
						return Undefined, err
					}
					fv, err := evalExpr(right, pos+i+1, steps, nil, ctx)
					if err != nil {
						return Undefined, err
					}
					return NewAbstract(TypeValue, TopValueDomain,
						[]Value{res, tv, fv},
						func(args []Node) Node {
							return CondNode{
								Cond: args[0], Then: args[1], Else: args[2],
							}
						}), nil
				}
				if toBoolean(res) {
					return evalExpr(left, pos+s, steps, nil, ctx)
				}
				return evalExpr(right, pos+i+1, steps, nil, ctx)
			}
		case '(', '[', '{', '"', '\'', '`':
			g, err := readGroup(expr[i:], pos+i)
			if err != nil {
				return Undefined, err
			}
			i = i + len(g) - 1
		}
	}
	if depth == 0 {
		return evalAuto(stepTerns<<1, expr, pos, steps, nil, ctx)
	}
	return Undefined, errSyntax(pos)
}

func logical(op Op, left Value, expr string, lpos, pos, steps, next int,
	ctx *Context,
) (Value, error) {
	expr, pos = trim(expr, pos)
	if len(expr) == 0 {
		return Undefined, errSyntax(pos)
	}
	right, err := evalAuto(next, expr, pos, steps, nil, ctx)
	if err != nil {
		return Undefined, err
	}
	if op == "" {
		return right, nil
	}
	return applyLogical(op, left, right), nil
}

func evalLogicalOr(expr string, pos, steps int, ctx *Context) (Value, error) {
	var err error
	var s int
	var left Value
	var op Op
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '?', '|':
			if i+1 >= len(expr) || expr[i+1] != expr[i] {
				// lone '?' (ternary, already split) or bitwise '|'
				continue
			}
			left, err = logical(op, left, expr[s:i], pos, pos+s, steps,
				stepLogicalOr<<1, ctx)
			if err != nil {
				return Undefined, err
			}
			if expr[i] == '|' {
				op = opOr
			} else {
				op = opCoal
			}
			i++
			s = i + 1
		case '(', '[', '{', '"', '\'', '`':
			g, err := readGroup(expr[i:], pos+i)
			if err != nil {
				return Undefined, err
			}
			i = i + len(g) - 1
		}
	}
	return logical(op, left, expr[s:], pos, pos+s, steps, stepLogicalOr<<1, ctx)
}

func evalLogicalAnd(expr string, pos, steps int, ctx *Context) (Value, error) {
	var err error
	var s int
	var left Value
	var op Op
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '&':
			if i+1 >= len(expr) || expr[i+1] != '&' {
				continue // bitwise '&'
			}
			left, err = logical(op, left, expr[s:i], pos, pos+s, steps,
				stepLogicalAnd<<1, ctx)
			if err != nil {
				return Undefined, err
			}
			op = opAnd
			i++
			s = i + 1
		case '(', '[', '{', '"', '\'', '`':
			g, err := readGroup(expr[i:], pos+i)
			if err != nil {
				return Undefined, err
			}
			i = i + len(g) - 1
		}
	}
	return logical(op, left, expr[s:], pos, pos+s, steps, stepLogicalAnd<<1, ctx)
}

// binary evaluates the right-hand fragment at the next precedence level
// and applies op through the operator core.
func binary(op Op, left Value, expr string, lpos, pos, steps, next int,
	ctx *Context,
) (Value, error) {
	expr, pos = trim(expr, pos)
	if len(expr) == 0 {
		return Undefined, errSyntax(pos)
	}
	right, err := evalAuto(next, expr, pos, steps, nil, ctx)
	if err != nil {
		return Undefined, err
	}
	if op == "" {
		return right, nil
	}
	return Evaluate(op, left, right, newLoc(lpos), newLoc(pos), ctx)
}

func evalBitOr(expr string, pos, steps int, ctx *Context) (Value, error) {
	var err error
	var s int
	var left Value
	var op Op
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '|':
			if i+1 < len(expr) && expr[i+1] == '|' {
				i++
				continue
			}
			left, err = binary(op, left, expr[s:i], pos, pos+s, steps,
				stepBitOr<<1, ctx)
			if err != nil {
				return Undefined, err
			}
			op = OpBitOr
			s = i + 1
		case '(', '[', '{', '"', '\'', '`':
			g, err := readGroup(expr[i:], pos+i)
			if err != nil {
				return Undefined, err
			}
			i = i + len(g) - 1
		}
	}
	return binary(op, left, expr[s:], pos, pos+s, steps, stepBitOr<<1, ctx)
}

func evalBitXor(expr string, pos, steps int, ctx *Context) (Value, error) {
	var err error
	var s int
	var left Value
	var op Op
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '^':
			left, err = binary(op, left, expr[s:i], pos, pos+s, steps,
				stepBitXor<<1, ctx)
			if err != nil {
				return Undefined, err
			}
			op = OpBitXor
			s = i + 1
		case '(', '[', '{', '"', '\'', '`':
			g, err := readGroup(expr[i:], pos+i)
			if err != nil {
				return Undefined, err
			}
			i = i + len(g) - 1
		}
	}
	return binary(op, left, expr[s:], pos, pos+s, steps, stepBitXor<<1, ctx)
}

func evalBitAnd(expr string, pos, steps int, ctx *Context) (Value, error) {
	var err error
	var s int
	var left Value
	var op Op
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '&':
			if i+1 < len(expr) && expr[i+1] == '&' {
				i++
				continue
			}
			left, err = binary(op, left, expr[s:i], pos, pos+s, steps,
				stepBitAnd<<1, ctx)
			if err != nil {
				return Undefined, err
			}
			op = OpBitAnd
			s = i + 1
		case '(', '[', '{', '"', '\'', '`':
			g, err := readGroup(expr[i:], pos+i)
			if err != nil {
				return Undefined, err
			}
			i = i + len(g) - 1
		}
	}
	return binary(op, left, expr[s:], pos, pos+s, steps, stepBitAnd<<1, ctx)
}

// equal handles one equality-level fragment, including leading '!'
// logical negations on the right-hand side.
func equal(left Value, op Op, expr string, lpos, pos, steps int, ctx *Context,
) (Value, error) {
	var neg bool
	var boolit bool
	expr, pos = trim(expr, pos)
	for {
		if len(expr) == 0 {
			return Undefined, errSyntax(pos)
		}
		if expr[0] != '!' {
			break
		}
		neg = !neg
		boolit = true
		expr, pos = trim(expr[1:], pos+1)
	}
	right, err := evalAuto(stepEquality<<1, expr, pos, steps, nil, ctx)
	if err != nil {
		return Undefined, err
	}
	if boolit {
		right = logicalNot(right, neg)
	}
	if op == "" {
		return right, nil
	}
	return Evaluate(op, left, right, newLoc(lpos), newLoc(pos), ctx)
}

func evalEquality(expr string, pos, steps int, ctx *Context) (Value, error) {
	var err error
	var s int
	var left Value
	var op Op
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '=', '!':
			opsz := 1
			if expr[i] == '=' {
				if i > 0 && (expr[i-1] == '>' || expr[i-1] == '<') {
					continue // tail of '<=' or '>='
				}
				if i == len(expr)-1 || expr[i+1] != '=' {
					return Undefined, errSyntax(pos + i)
				}
				opsz = 2
			} else {
				if i == len(expr)-1 || expr[i+1] != '=' {
					continue // unary '!'
				}
				opsz = 2
			}
			strict := false
			if i+2 < len(expr) && expr[i+2] == '=' {
				strict = true
				opsz = 3
			}
			var opch Op
			switch {
			case expr[i] == '=' && strict:
				opch = OpSeq
			case expr[i] == '=':
				opch = OpEq
			case strict:
				opch = OpSneq
			default:
				opch = OpNeq
			}
			left, err = equal(left, op, expr[s:i], pos, pos+s, steps, ctx)
			if err != nil {
				return Undefined, err
			}
			op = opch
			i = i + opsz - 1
			s = i + 1
		case '(', '[', '{', '"', '\'', '`':
			g, err := readGroup(expr[i:], pos+i)
			if err != nil {
				return Undefined, err
			}
			i = i + len(g) - 1
		}
	}
	return equal(left, op, expr[s:], pos, pos+s, steps, ctx)
}

// hasKeyword reports a word operator at offset i: preceded and followed
// by non-identifier characters.
func hasKeyword(expr string, i int, kw string) bool {
	if i > 0 {
		if _, ok := identChar(expr[i-1]); ok {
			return false
		}
	}
	if len(expr)-i < len(kw) || expr[i:i+len(kw)] != kw {
		return false
	}
	j := i + len(kw)
	if j < len(expr) {
		if _, ok := identChar(expr[j]); ok {
			return false
		}
	}
	return true
}

func evalComps(expr string, pos, steps int, ctx *Context) (Value, error) {
	var err error
	var s int
	var left Value
	var op Op
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '<', '>':
			if i+1 < len(expr) && expr[i+1] == expr[i] {
				// shift operator, split at a later level
				i++
				if expr[i] == '>' && i+1 < len(expr) && expr[i+1] == '>' {
					i++
				}
				continue
			}
			opch := Op(expr[i : i+1])
			opsz := 1
			if i+1 < len(expr) && expr[i+1] == '=' {
				opch += "="
				opsz = 2
			}
			left, err = binary(op, left, expr[s:i], pos, pos+s, steps,
				stepComps<<1, ctx)
			if err != nil {
				return Undefined, err
			}
			op = opch
			i = i + opsz - 1
			s = i + 1
		case 'i':
			var kw Op
			switch {
			case hasKeyword(expr, i, "instanceof"):
				kw = OpInstanceof
			case hasKeyword(expr, i, "in"):
				kw = OpIn
			default:
				continue
			}
			left, err = binary(op, left, expr[s:i], pos, pos+s, steps,
				stepComps<<1, ctx)
			if err != nil {
				return Undefined, err
			}
			op = kw
			i = i + len(kw) - 1
			s = i + 1
		case '(', '[', '{', '"', '\'', '`':
			g, err := readGroup(expr[i:], pos+i)
			if err != nil {
				return Undefined, err
			}
			i = i + len(g) - 1
		}
	}
	return binary(op, left, expr[s:], pos, pos+s, steps, stepComps<<1, ctx)
}

func evalShifts(expr string, pos, steps int, ctx *Context) (Value, error) {
	var err error
	var s int
	var left Value
	var op Op
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '<':
			if i+1 >= len(expr) || expr[i+1] != '<' {
				continue // relational, already split
			}
			left, err = binary(op, left, expr[s:i], pos, pos+s, steps,
				stepShifts<<1, ctx)
			if err != nil {
				return Undefined, err
			}
			op = OpShl
			i++
			s = i + 1
		case '>':
			if i+1 >= len(expr) || expr[i+1] != '>' {
				continue
			}
			opch, opsz := OpShr, 2
			if i+2 < len(expr) && expr[i+2] == '>' {
				opch, opsz = OpUshr, 3
			}
			left, err = binary(op, left, expr[s:i], pos, pos+s, steps,
				stepShifts<<1, ctx)
			if err != nil {
				return Undefined, err
			}
			op = opch
			i = i + opsz - 1
			s = i + 1
		case '(', '[', '{', '"', '\'', '`':
			g, err := readGroup(expr[i:], pos+i)
			if err != nil {
				return Undefined, err
			}
			i = i + len(g) - 1
		}
	}
	return binary(op, left, expr[s:], pos, pos+s, steps, stepShifts<<1, ctx)
}

func sum(left Value, op byte, expr string, neg bool, lpos, pos, steps int,
	ctx *Context,
) (Value, error) {
	expr, pos = trim(expr, pos)
	if len(expr) == 0 {
		return Undefined, errSyntax(pos)
	}
	right, err := evalAuto(stepSums<<1, expr, pos, steps, nil, ctx)
	if err != nil {
		return Undefined, err
	}
	if neg {
		right = negate(right)
	}
	switch op {
	case '+':
		return Evaluate(OpAdd, left, right, newLoc(lpos), newLoc(pos), ctx)
	case '-':
		return Evaluate(OpSub, left, right, newLoc(lpos), newLoc(pos), ctx)
	default:
		return right, nil
	}
}

func evalSums(expr string, pos, steps int, ctx *Context) (Value, error) {
	var err error
	var s int
	var left Value
	var op byte
	var fill bool
	var neg bool
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '-', '+':
			if !fill {
				if i > 0 && expr[i-1] == expr[i] {
					// '--' and '++' not allowed
					return Undefined, errSyntax(pos + i)
				}
				if expr[i] == '-' {
					neg = !neg
				}
				s = i + 1
				continue
			}
			if i > 0 && (expr[i-1] == 'e' || expr[i-1] == 'E') {
				// scientific notation
				continue
			}
			if neg {
				if s > 0 && s < len(expr) && expr[s-1] == '-' &&
					expr[s] >= '0' && expr[s] <= '9' {
					s--
					neg = false
				}
			}
			left, err = sum(left, op, expr[s:i], neg, pos, pos+s, steps, ctx)
			if err != nil {
				return Undefined, err
			}
			op = expr[i]
			s = i + 1
			fill = false
			neg = false
		case '(', '[', '{', '"', '\'', '`':
			g, err := readGroup(expr[i:], pos+i)
			if err != nil {
				return Undefined, err
			}
			i = i + len(g) - 1
			fill = true
		default:
			if !fill && !isspace(expr[i]) {
				fill = true
			}
		}
	}
	if neg {
		if s > 0 && s < len(expr) && expr[s-1] == '-' &&
			expr[s] >= '0' && expr[s] <= '9' {
			s--
			neg = false
		}
	}
	return sum(left, op, expr[s:], neg, pos, pos+s, steps, ctx)
}

func evalFacts(expr string, pos, steps int, ctx *Context) (Value, error) {
	var err error
	var s int
	var left Value
	var op Op
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '*':
			if i+1 < len(expr) && expr[i+1] == '*' {
				i++
				continue // exponentiation, split at the next level
			}
			fallthrough
		case '/', '%':
			opch := Op(expr[i : i+1])
			left, err = binary(op, left, expr[s:i], pos, pos+s, steps,
				stepFacts<<1, ctx)
			if err != nil {
				return Undefined, err
			}
			op = opch
			s = i + 1
		case '(', '[', '{', '"', '\'', '`':
			g, err := readGroup(expr[i:], pos+i)
			if err != nil {
				return Undefined, err
			}
			i = i + len(g) - 1
		}
	}
	return binary(op, left, expr[s:], pos, pos+s, steps, stepFacts<<1, ctx)
}

// evalPow splits at the first '**' so that exponentiation associates to
// the right.
func evalPow(expr string, pos, steps int, ctx *Context) (Value, error) {
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '*':
			if i+1 >= len(expr) || expr[i+1] != '*' {
				continue
			}
			left, err := evalAuto(stepPow<<1, expr[:i], pos, steps, nil, ctx)
			if err != nil {
				return Undefined, err
			}
			rexpr, rpos := trim(expr[i+2:], pos+i+2)
			if len(rexpr) == 0 {
				return Undefined, errSyntax(rpos)
			}
			right, err := evalPow(rexpr, rpos, steps, ctx)
			if err != nil {
				return Undefined, err
			}
			return Evaluate(OpPow, left, right, newLoc(pos), newLoc(rpos), ctx)
		case '(', '[', '{', '"', '\'', '`':
			g, err := readGroup(expr[i:], pos+i)
			if err != nil {
				return Undefined, err
			}
			i = i + len(g) - 1
		}
	}
	return evalAuto(stepPow<<1, expr, pos, steps, nil, ctx)
}

func evalAtom(expr string, pos, steps int, ctx *Context) (Value, error) {
	expr, pos = trim(expr, pos)
	if len(expr) == 0 {
		return Undefined, errSyntax(pos)
	}
	switch expr[0] {
	case '0':
		if len(expr) > 1 && (expr[1] == 'x' || expr[1] == 'X') {
			x, err := strconv.ParseUint(expr[2:], 16, 64)
			if err != nil {
				return Undefined, errSyntax(pos)
			}
			return Number(float64(x)), nil
		}
		fallthrough
	case '-', '.', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		x, err := strconv.ParseFloat(expr, 64)
		if err != nil {
			return Undefined, errSyntax(pos)
		}
		return Number(x), nil
	case '"', '\'', '`':
		s, raw, ok := parseString(expr)
		if !ok || len(raw) != len(expr) {
			return Undefined, errSyntax(pos)
		}
		return String(s), nil
	case '(':
		g, err := readGroup(expr, pos)
		if err != nil {
			return Undefined, err
		}
		if len(g) != len(expr) {
			return Undefined, errSyntax(pos + len(g))
		}
		return evalExpr(g[1:len(g)-1], pos+1, steps, nil, ctx)
	case '[', '{':
		return Undefined, errSyntax(pos)
	}
	ident, ok := readIdent(expr)
	if !ok || len(ident) != len(expr) {
		return Undefined, errSyntax(pos)
	}
	switch ident {
	case "new", "typeof", "void", "await", "in", "instanceof", "yield",
		"delete":
		return Undefined, errSyntax(pos)
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	case "NaN":
		return Number(math.NaN()), nil
	case "Infinity":
		return Number(math.Inf(+1)), nil
	case "undefined":
		return Undefined, nil
	case "null":
		return Null, nil
	}
	if ctx != nil && ctx.Resolver != nil {
		if v, ok := ctx.Resolver.Resolve(ident); ok {
			return v, nil
		}
	}
	// Free identifier: carried through as an abstract unknown.
	return AbstractIdent(ident, TypeValue), nil
}

func identChar(c byte) (byte, bool) {
	if c == '$' || c == '_' ||
		(c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') {
		return c, true
	}
	return 0, false
}

func readIdent(expr string) (ident string, ok bool) {
	// Only ascii identifiers
	if len(expr) == 0 {
		return "", false
	}
	if expr[0] >= '0' && expr[0] <= '9' {
		return "", false
	}
	var i int
	for i < len(expr) {
		if _, ok := identChar(expr[i]); !ok {
			break
		}
		i++
	}
	if i == 0 {
		return "", false
	}
	return expr[:i], true
}

func closech(open byte) byte {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	case '{':
		return '}'
	}
	return open
}

func readGroup(data string, pos int) (string, error) {
	g, ok := squash(data)
	if !ok {
		return "", errSyntax(pos)
	}
	if len(g) < 2 || g[len(g)-1] != closech(data[0]) {
		return "", errSyntax(pos)
	}
	return g, nil
}

func squash(data string) (string, bool) {
	// expects that the lead character is
	//   '[' or '{' or '(' or '"' or '\'' or '`'
	// squash the value, ignoring all nested arrays and objects.
	var i, depth int
	switch data[0] {
	case '"', '\'', '`':
	default:
		i, depth = 1, 1
	}
	for ; i < len(data); i++ {
		if data[i] < '"' || data[i] > '}' {
			continue
		}
		switch data[i] {
		case '"', '\'', '`':
			qch := data[i]
			i++
			s2 := i
			for ; i < len(data); i++ {
				if data[i] > '\\' {
					continue
				}
				if data[i] == qch {
					// look for an escaped slash
					if data[i-1] == '\\' {
						n := 0
						for j := i - 2; j > s2-1; j-- {
							if data[j] != '\\' {
								break
							}
							n++
						}
						if n%2 == 0 {
							continue
						}
					}
					break
				}
			}
			if depth == 0 {
				if i >= len(data) {
					return data, false
				}
				return data[:i+1], true
			}
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
			if depth == 0 {
				return data[:i+1], true
			}
		}
	}
	return data, false
}

// parseString parses a Javascript encoded string.
// Adapted from the GJSON project.
func parseString(data string) (out, raw string, ok bool) {
	var esc bool
	if len(data) < 2 {
		return "", "", false
	}
	qch := data[0]
	for i := 1; i < len(data); i++ {
		if data[i] < ' ' {
			break
		}
		if data[i] == '\\' {
			esc = true
			i++
			if i == len(data) {
				return "", "", false
			}
			switch data[i] {
			case 'u':
				if i+1 < len(data) && data[i+1] == '{' {
					i += 2
					var end bool
					for ; i < len(data); i++ {
						if data[i] == '}' {
							end = true
							break
						}
						if !ishex(data[i]) {
							return "", "", false
						}
					}
					if !end {
						return "", "", false
					}
				} else {
					for j := 0; j < 4; j++ {
						i++
						if i >= len(data) || !ishex(data[i]) {
							return "", "", false
						}
					}
				}
			case 'x':
				for j := 0; j < 2; j++ {
					i++
					if i >= len(data) || !ishex(data[i]) {
						return "", "", false
					}
				}
			}
		} else if data[i] == qch {
			s := data[1:i]
			if esc {
				s = unescapeString(s)
			}
			return s, data[:i+1], true
		}
	}
	return "", "", false
}

// runeit returns the rune from the \uXXXX or \xXX form
func runeit(data string, which byte) (r rune, n int) {
	var x uint64
	if which == 'x' {
		x, _ = strconv.ParseUint(data[:2], 16, 64)
		n = 2
	} else {
		var s, e int
		if data[0] == '{' {
			s = 1
			n = len(data)
			for i := 0; i < len(data); i++ {
				if data[i] == '}' {
					e = i
					n = i + 1
					break
				}
			}
		} else {
			e = 4
			n = 4
		}
		x, _ = strconv.ParseUint(data[s:e], 16, 64)
	}
	return rune(x), n
}

// unescapeString unescapes a Javascript string.
// Adapted from the GJSON project.
// The input data must be prevalidated for correctness, and must only be
// called from the parseString operation.
func unescapeString(data string) string {
	var str = make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		switch {
		default:
			str = append(str, data[i])
		case data[i] == '\\':
			i++
			switch data[i] {
			case '0':
				str = append(str, 0)
			case 'b':
				str = append(str, '\b')
			case 'f':
				str = append(str, '\f')
			case 'n':
				str = append(str, '\n')
			case 'r':
				str = append(str, '\r')
			case 't':
				str = append(str, '\t')
			case 'v':
				str = append(str, '\v')
			case 'u':
				i++
				r, n := runeit(data[i:], 'u')
				i += n
				if utf16.IsSurrogate(r) {
					// need another code
					if len(data[i:]) >= 6 && data[i] == '\\' &&
						data[i+1] == 'u' {
						// we expect it to be correct so just consume it
						i += 2
						r2, n := runeit(data[i:], 'u')
						i += n
						r = utf16.DecodeRune(r, r2)
					}
				}
				str = appendRune(str, r)
				i-- // backtrack index by one
			case 'x':
				i++
				r, n := runeit(data[i:], 'x')
				i += n
				str = appendRune(str, r)
				i-- // backtrack index by one
			default:
				str = append(str, data[i])
			}
		}
	}
	return string(str)
}

func appendRune(dst []byte, r rune) []byte {
	// provide enough space to encode the largest utf8 possible
	dst = append(dst, 0, 0, 0, 0, 0, 0, 0, 0)
	n := utf8.EncodeRune(dst[len(dst)-8:], r)
	return dst[:len(dst)-8+n]
}

var chars = [256]uint8{
	'\t': 1, '\n': 1, '\v': 1, '\f': 1, '\r': 1, ' ': 1, // space
	'0': 2, '1': 2, '2': 2, '3': 2, '4': 2, '5': 2, '6': 2, '7': 2, // hex
	'8': 2, '9': 2, 'a': 2, 'b': 2, 'c': 2, 'd': 2, 'e': 2, 'f': 2,
	'A': 2, 'B': 2, 'C': 2, 'D': 2, 'E': 2, 'F': 2,
}

func isspace(c byte) bool {
	return chars[c] == 1
}

func ishex(c byte) bool {
	return chars[c] == 2
}

// trim a simple ascii string along with doing position counting.
func trim(s string, pos int) (string, int) {
	for len(s) > 0 && isspace(s[0]) {
		s = s[1:]
		pos++
	}
	for len(s) > 0 && isspace(s[len(s)-1]) {
		s = s[:len(s)-1]
	}
	return s, pos
}
