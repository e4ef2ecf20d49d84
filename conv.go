// Copyright 2024 echo304. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package prepack

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/conv"
)

// Coercion primitives. These are total over concrete values; callers
// must not pass abstract values (the purity analyzer decides, ahead of
// time, whether a coercion may be assumed at all).

// toPrimitive converts a concrete value to a primitive. Objects with a
// Primitive capability use it; plain objects fall back to their default
// string form.
func toPrimitive(a Value, hint TypeDomain) Value {
	if a.kind != objKind {
		return a
	}
	if p, ok := a.objVal.(primitiver); ok {
		if v := p.Primitive(hint); v.kind != objKind && v.kind != abstractKind {
			return v
		}
	}
	if s, ok := a.objVal.(stringer); ok {
		return String(s.String())
	}
	return String("[object Object]")
}

func toNumber(a Value) float64 {
	switch a.kind {
	case nullKind:
		return 0
	case boolKind:
		return conv.Ttof(a.boolVal)
	case numberKind:
		return a.numVal
	case strKind:
		return stringToNumber(a.strVal)
	case objKind:
		return toNumber(toPrimitive(a, TypeNumber))
	}
	return math.NaN()
}

func stringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(+1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		x, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return math.NaN()
		}
		return float64(x)
	}
	return conv.Atof(s)
}

func toString(a Value) string {
	switch a.kind {
	case nullKind:
		return "null"
	case boolKind:
		return conv.Ttoa(a.boolVal)
	case numberKind:
		return numberToString(a.numVal)
	case strKind:
		return a.strVal
	case objKind:
		return toString(toPrimitive(a, TypeString))
	}
	return "undefined"
}

func numberToString(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if f == 0 {
		// negative zero prints as "0"
		return "0"
	}
	if math.IsInf(f, 0) {
		if f < 0 {
			return "-Infinity"
		}
		return "Infinity"
	}
	if x := math.Abs(f); x >= 1e21 || x < 1e-6 {
		// exponential notation, exponent without leading zeros
		s := strconv.FormatFloat(f, 'e', -1, 64)
		e := strings.IndexByte(s, 'e')
		return s[:e+2] + strings.TrimLeft(s[e+2:], "0")
	}
	return conv.Ftoa(f)
}

func toBoolean(a Value) bool {
	switch a.kind {
	case boolKind:
		return a.boolVal
	case numberKind:
		return a.numVal != 0 && !math.IsNaN(a.numVal)
	case strKind:
		return a.strVal != ""
	case objKind:
		return true
	}
	return false
}

// toUint32 folds a number onto the unsigned 32-bit range: truncate,
// then take the value modulo 2^32. NaN and infinities fold to zero.
func toUint32(a Value) uint32 {
	f := math.Trunc(toNumber(a))
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Mod(f, 1<<32)
	if f < 0 {
		f += 1 << 32
	}
	return uint32(f)
}

func toInt32(a Value) int32 {
	return int32(toUint32(a))
}

// toPropertyKey converts a value to a property key. Symbols are outside
// the data model, so every key is a string.
func toPropertyKey(a Value) string {
	return toString(toPrimitive(a, TypeString))
}

// Purity predicates. A coercion is pure when it provably terminates,
// does not throw, and runs no unknown code.

func isToPrimitivePure(a Value) bool {
	switch a.kind {
	case abstractKind:
		return a.abs.Type.IsPrimitive()
	case objKind:
		return a.objVal.IsSimple()
	default:
		return true
	}
}

func isToNumberPure(a Value) bool {
	return isToPrimitivePure(a)
}

// toPrimitivePureResultType returns the statically known primitive type
// of toPrimitive(a), or ok=false when it cannot be known without
// executing the conversion.
func toPrimitivePureResultType(a Value) (t TypeDomain, ok bool) {
	switch a.kind {
	case objKind:
		if a.objVal.IsSimple() {
			// Default valueOf returns the object itself, so the
			// default conversion always lands on toString.
			return TypeString, true
		}
		return TypeValue, false
	case abstractKind:
		if a.abs.Type.IsPrimitive() {
			return a.abs.Type, true
		}
		return TypeValue, false
	default:
		return a.Type(), true
	}
}
