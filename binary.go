// Copyright 2024 echo304. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package prepack partially evaluates JavaScript-style binary operator
// expressions ahead of time. Operands whose runtime value is known
// evaluate to concrete results with exact coercion semantics; unknown
// operands flow through as abstract values carrying a type bound and a
// residual expression for later code emission.
package prepack

import (
	"fmt"
	"math"
)

// Op is a binary operator symbol.
type Op string

const (
	OpAdd        Op = "+"
	OpSub        Op = "-"
	OpMul        Op = "*"
	OpDiv        Op = "/"
	OpMod        Op = "%"
	OpPow        Op = "**"
	OpLt         Op = "<"
	OpGt         Op = ">"
	OpLte        Op = "<="
	OpGte        Op = ">="
	OpEq         Op = "=="
	OpNeq        Op = "!="
	OpSeq        Op = "==="
	OpSneq       Op = "!=="
	OpShl        Op = "<<"
	OpShr        Op = ">>"
	OpUshr       Op = ">>>"
	OpBitAnd     Op = "&"
	OpBitOr      Op = "|"
	OpBitXor     Op = "^"
	OpIn         Op = "in"
	OpInstanceof Op = "instanceof"
)

func (op Op) String() string { return string(op) }

func errOperator(op Op) error {
	return fmt.Errorf("unsupported binary operator %q", op)
}

// Evaluate applies op to two already-evaluated operands. When both are
// concrete it executes the operator to completion; when either is
// abstract it returns a new abstract value whose type bound comes from
// InferPureResultType and whose residual re-applies op.
//
// Errors are either *FatalError (the diagnostic policy declined to
// recover; the compilation unit must abort) or *ThrowError (the
// evaluated program itself throws, e.g. "in" on a non-object).
func Evaluate(op Op, a, b Value, aloc, bloc *Location, ctx *Context) (Value, error) {
	switch op {
	case OpEq, OpNeq, OpSeq, OpSneq:
		// Equality between a proven object and a known null or
		// undefined never depends on coercion, so it must not raise
		// conversion-purity diagnostics.
		if (!a.mightNotBeObject() && isNullOrUndefined(b)) ||
			(!b.mightNotBeObject() && isNullOrUndefined(a)) {
			return Bool(op[0] != '='), nil
		}
	}
	if a.kind == abstractKind || b.kind == abstractKind {
		t, err := InferPureResultType(op, a, b, aloc, bloc, ctx)
		if err != nil {
			return Undefined, err
		}
		return NewAbstract(t, TopValueDomain, []Value{a, b},
			func(args []Node) Node {
				return BinaryNode{Op: op, Left: args[0], Right: args[1]}
			}), nil
	}
	return evalConcrete(op, a, b, aloc, bloc, ctx)
}

const msgUnknownConversion = "might be an object with an unknown " +
	"valueOf or toString or Symbol.toPrimitive method"

// InferPureResultType computes the type op would produce without
// executing it, escalating to the diagnostic policy when the coercions
// the operator performs cannot be proven side-effect free. The policy
// is consulted at most once per call; on Recover the documented
// conservative fallback type is returned.
func InferPureResultType(op Op, a, b Value, aloc, bloc *Location, ctx *Context) (TypeDomain, error) {
	switch op {
	case OpSeq, OpSneq:
		// Strict equality performs no coercion.
		return TypeBoolean, nil

	case OpEq, OpNeq, OpLt, OpGt, OpLte, OpGte:
		if !isToPrimitivePure(a) || !isToPrimitivePure(b) {
			loc := impureLoc(isToPrimitivePure(a), aloc, bloc)
			if err := escalate(ctx, CodeUnknownConversion, msgUnknownConversion, loc); err != nil {
				return TypeValue, err
			}
		}
		return TypeBoolean, nil

	case OpAdd:
		at, aok := toPrimitivePureResultType(a)
		bt, bok := toPrimitivePureResultType(b)
		if !isToPrimitivePure(a) || !aok || !isToPrimitivePure(b) || !bok {
			loc := impureLoc(isToPrimitivePure(a) && aok, aloc, bloc)
			if err := escalate(ctx, CodeUnknownConversion, msgUnknownConversion, loc); err != nil {
				return TypeValue, err
			}
			// Recovered: assume both operands are well behaved and
			// fall back to their statically known types.
			at, bt = fallbackType(a), fallbackType(b)
		}
		if at == TypeString || bt == TypeString {
			return TypeString, nil
		}
		return TypeNumber, nil

	case OpSub, OpMul, OpDiv, OpMod, OpPow, OpShl, OpShr, OpUshr,
		OpBitAnd, OpBitOr, OpBitXor:
		if !isToNumberPure(a) || !isToNumberPure(b) {
			loc := impureLoc(isToNumberPure(a), aloc, bloc)
			if err := escalate(ctx, CodeUnknownConversion, msgUnknownConversion, loc); err != nil {
				return TypeValue, err
			}
		}
		return TypeNumber, nil

	case OpIn, OpInstanceof:
		if b.mightNotBeObject() {
			msg := fmt.Sprintf("might not be an object, hence the %q "+
				"operator might throw a TypeError", op)
			if err := escalate(ctx, CodeNotAnObject, msg, bloc); err != nil {
				return TypeValue, err
			}
		} else if !b.provenSimple() {
			msg := fmt.Sprintf("might be an object that behaves badly "+
				"for the %q operator", op)
			if err := escalate(ctx, CodeBadObjectBehavior, msg, bloc); err != nil {
				return TypeValue, err
			}
		}
		return TypeBoolean, nil
	}
	return TypeValue, errOperator(op)
}

// impureLoc picks the diagnostic location: the unproven operand's,
// preferring the left when both fail.
func impureLoc(leftPure bool, aloc, bloc *Location) *Location {
	if !leftPure {
		return aloc
	}
	return bloc
}

// fallbackType is the recovered assumption for an operand that could
// not be proven conversion-pure: its statically known type, or the
// unconstrained type when even that is unknown.
func fallbackType(a Value) TypeDomain {
	if a.kind == abstractKind {
		return a.abs.Type
	}
	return a.Type()
}

// addFloats is the single signed-addition routine behind both "+" and
// "-" (subtraction negates its right operand), keeping the IEEE-754
// edge cases of the two operators consistent.
func addFloats(x, y float64) float64 {
	return x + y
}

// pow matches the exponentiation operator's number semantics, which
// depart from math.Pow for a NaN exponent and for a base of magnitude
// one with an infinite exponent.
func pow(x, y float64) float64 {
	if math.IsNaN(y) {
		return math.NaN()
	}
	if math.Abs(x) == 1 && math.IsInf(y, 0) {
		return math.NaN()
	}
	return math.Pow(x, y)
}

// evalConcrete executes op on two concrete operands.
func evalConcrete(op Op, a, b Value, aloc, bloc *Location, ctx *Context) (Value, error) {
	switch op {
	case OpAdd:
		pa, pb := toPrimitive(a, TypeValue), toPrimitive(b, TypeValue)
		if pa.kind == strKind || pb.kind == strKind {
			return String(toString(pa) + toString(pb)), nil
		}
		return Number(addFloats(toNumber(pa), toNumber(pb))), nil

	case OpSub, OpMul, OpDiv, OpMod:
		x, y := toNumber(a), toNumber(b)
		// NaN wins before any per-operator arithmetic. IEEE-754 would
		// propagate it anyway; the early return keeps the rule
		// independent of the numeric backend.
		if math.IsNaN(x) || math.IsNaN(y) {
			return Number(math.NaN()), nil
		}
		switch op {
		case OpSub:
			return Number(addFloats(x, -y)), nil
		case OpMul:
			return Number(x * y), nil
		case OpDiv:
			return Number(x / y), nil
		default:
			return Number(math.Mod(x, y)), nil
		}

	case OpPow:
		return Number(pow(toNumber(a), toNumber(b))), nil

	case OpLt:
		less, undef := relationalComparison(a, b, true)
		return Bool(!undef && less), nil
	case OpGt:
		less, undef := relationalComparison(b, a, false)
		return Bool(!undef && less), nil
	case OpLte:
		less, undef := relationalComparison(b, a, false)
		return Bool(!undef && !less), nil
	case OpGte:
		less, undef := relationalComparison(a, b, true)
		return Bool(!undef && !less), nil

	case OpUshr:
		return Number(float64(toUint32(a) >> (toUint32(b) % 32))), nil
	case OpShl:
		return Number(float64(toInt32(a) << (toUint32(b) % 32))), nil
	case OpShr:
		return Number(float64(toInt32(a) >> (toUint32(b) % 32))), nil
	case OpBitAnd:
		return Number(float64(toInt32(a) & toInt32(b))), nil
	case OpBitOr:
		return Number(float64(toInt32(a) | toInt32(b))), nil
	case OpBitXor:
		return Number(float64(toInt32(a) ^ toInt32(b))), nil

	case OpSeq:
		return Bool(strictEqualityComparison(a, b)), nil
	case OpSneq:
		return Bool(!strictEqualityComparison(a, b)), nil
	case OpEq:
		return Bool(looseEqualityComparison(a, b)), nil
	case OpNeq:
		return Bool(!looseEqualityComparison(a, b)), nil

	case OpIn:
		if b.kind != objKind {
			return Undefined, throwTypeError(bloc,
				"cannot use 'in' operator to search for %q in %s",
				toPropertyKey(a), toString(b))
		}
		return Bool(b.objVal.HasProperty(toPropertyKey(a))), nil

	case OpInstanceof:
		t, err := instanceofOperator(a, b, bloc)
		if err != nil {
			return Undefined, err
		}
		return Bool(t), nil
	}
	return Undefined, errOperator(op)
}
