// Copyright 2024 echo304. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package prepack

import "math"

// strictEqualityComparison: same kind and same value, no coercion.
// NaN is unequal to itself; +0 and -0 are equal; objects compare by
// identity.
func strictEqualityComparison(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case undefKind, nullKind:
		return true
	case boolKind:
		return a.boolVal == b.boolVal
	case numberKind:
		return a.numVal == b.numVal
	case strKind:
		return a.strVal == b.strVal
	case objKind:
		return a.objVal == b.objVal
	}
	return false
}

// looseEqualityComparison applies the coercing equality ladder: equal
// kinds compare strictly, null and undefined match each other, objects
// reduce to primitives, booleans reduce to numbers, and a string facing
// a number reduces to a number. Each pass strictly reduces a kind, so
// the loop terminates.
func looseEqualityComparison(a, b Value) bool {
	for {
		if a.kind == b.kind {
			return strictEqualityComparison(a, b)
		}
		an, bn := isNullOrUndefined(a), isNullOrUndefined(b)
		if an || bn {
			return an && bn
		}
		switch {
		case a.kind == objKind:
			a = toPrimitive(a, TypeValue)
		case b.kind == objKind:
			b = toPrimitive(b, TypeValue)
		case a.kind == boolKind:
			a = Number(toNumber(a))
		case b.kind == boolKind:
			b = Number(toNumber(b))
		case a.kind == strKind && b.kind == numberKind:
			a = Number(toNumber(a))
		case a.kind == numberKind && b.kind == strKind:
			b = Number(toNumber(b))
		default:
			return false
		}
	}
}

// relationalComparison implements the abstract relational comparison
// x < y. leftFirst selects which operand is reduced to a primitive
// first, preserving observable coercion order. The undefined result
// reports that the operands are incomparable (a NaN was involved).
func relationalComparison(x, y Value, leftFirst bool) (less, undefined bool) {
	var px, py Value
	if leftFirst {
		px = toPrimitive(x, TypeNumber)
		py = toPrimitive(y, TypeNumber)
	} else {
		py = toPrimitive(y, TypeNumber)
		px = toPrimitive(x, TypeNumber)
	}
	if px.kind == strKind && py.kind == strKind {
		return px.strVal < py.strVal, false
	}
	nx, ny := toNumber(px), toNumber(py)
	if math.IsNaN(nx) || math.IsNaN(ny) {
		return false, true
	}
	return nx < ny, false
}

// instanceofOperator validates that the right operand can perform an
// instance check and delegates to it. Misuse is a target-language
// TypeError, not a compiler diagnostic.
func instanceofOperator(left, right Value, loc *Location) (bool, error) {
	if right.kind != objKind {
		return false, throwTypeError(loc,
			"right-hand side of 'instanceof' is not an object")
	}
	inst, ok := right.objVal.(instancer)
	if !ok {
		return false, throwTypeError(loc,
			"right-hand side of 'instanceof' is not callable")
	}
	return inst.HasInstance(left), nil
}
