// Copyright 2024 echo304. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package prepack

type kind byte

const (
	undefKind    kind = iota // undefined
	nullKind                 // null
	boolKind                 // bool
	numberKind               // float64
	strKind                  // string
	objKind                  // object
	abstractKind             // unknown until run time
)

// TypeDomain is the statically proven upper bound on a value's runtime
// type. TypeValue is the unconstrained top.
type TypeDomain byte

const (
	TypeValue TypeDomain = iota
	TypeUndefined
	TypeNull
	TypeBoolean
	TypeNumber
	TypeString
	TypeObject
)

func (t TypeDomain) String() string {
	switch t {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "null"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeObject:
		return "object"
	default:
		return "value"
	}
}

// IsPrimitive reports whether every value in the domain is a primitive.
func (t TypeDomain) IsPrimitive() bool {
	switch t {
	case TypeUndefined, TypeNull, TypeBoolean, TypeNumber, TypeString:
		return true
	}
	return false
}

// ValueDomain bounds the possible runtime values of an abstract value.
// Only the unconstrained top domain is representable.
type ValueDomain struct{}

// Top reports whether the domain places no constraint on values.
func (ValueDomain) Top() bool { return true }

// TopValueDomain is the unconstrained value bound.
var TopValueDomain = ValueDomain{}

// ObjectValue is the capability surface an object operand must provide.
type ObjectValue interface {
	// HasProperty reports whether the object or anything on its
	// inheritance chain has a property named key.
	HasProperty(key string) bool
	// IsSimple reports that the object is free of proxy traps, exotic
	// behaviors, and custom instance checks, so that coercions and
	// in/instanceof cannot run unknown code.
	IsSimple() bool
}

// Optional object capabilities, checked by type assertion.
type primitiver interface {
	Primitive(hint TypeDomain) Value
}
type instancer interface {
	HasInstance(v Value) bool
}
type stringer interface{ String() string }

// Abstract is the payload of a value whose runtime identity is unknown
// at compile time.
type Abstract struct {
	Type   TypeDomain
	Values ValueDomain
	Args   []Value // operands this value was derived from
	Simple bool    // object domain proven free of exotic behavior
	Loc    *Location

	build BuildFunc
	node  Node // memoized residual
}

// Value is a concrete or abstract operand value. Concrete values are
// immutable and fully known at compile time.
type Value struct {
	kind    kind
	boolVal bool
	numVal  float64
	strVal  string
	objVal  ObjectValue
	abs     *Abstract
}

var (
	Undefined = Value{kind: undefKind}
	Null      = Value{kind: nullKind}
)

// String returns a string value.
func String(s string) Value { return Value{kind: strKind, strVal: s} }

// Number returns a number value.
func Number(x float64) Value { return Value{kind: numberKind, numVal: x} }

// Bool returns a boolean value.
func Bool(t bool) Value { return Value{kind: boolKind, boolVal: t} }

// Object returns an object value backed by o.
func Object(o ObjectValue) Value { return Value{kind: objKind, objVal: o} }

// NewAbstract returns a new abstract value bounded by t and d, derived
// from args, recomputable in residual code via build.
func NewAbstract(t TypeDomain, d ValueDomain, args []Value, build BuildFunc) Value {
	return Value{kind: abstractKind, abs: &Abstract{
		Type: t, Values: d, Args: args, build: build,
	}}
}

// AbstractIdent returns an abstract unknown that re-emits as a bare
// identifier.
func AbstractIdent(name string, t TypeDomain) Value {
	return NewAbstract(t, TopValueDomain, nil, func([]Node) Node {
		return IdentNode{Name: name}
	})
}

// AbstractObject returns an abstract value proven to be an object.
// simple additionally proves it free of exotic behavior.
func AbstractObject(name string, simple bool) Value {
	v := AbstractIdent(name, TypeObject)
	v.abs.Simple = simple
	return v
}

// IsAbstract reports whether the value is unknown at compile time.
func (a Value) IsAbstract() bool { return a.kind == abstractKind }

// Abstract returns the abstract payload, or nil for concrete values.
func (a Value) Abstract() *Abstract {
	return a.abs
}

// Type returns the statically known type bound of the value.
func (a Value) Type() TypeDomain {
	switch a.kind {
	case undefKind:
		return TypeUndefined
	case nullKind:
		return TypeNull
	case boolKind:
		return TypeBoolean
	case numberKind:
		return TypeNumber
	case strKind:
		return TypeString
	case objKind:
		return TypeObject
	default:
		return a.abs.Type
	}
}

// TypeOf returns the typeof-style name of a concrete value, or
// "abstract" for unknowns.
func (a Value) TypeOf() string {
	switch a.kind {
	case undefKind:
		return "undefined"
	case boolKind:
		return "boolean"
	case numberKind:
		return "number"
	case strKind:
		return "string"
	case abstractKind:
		return "abstract"
	default:
		return "object"
	}
}

// mightNotBeObject reports true unless the value is statically proven
// to be an object (and so cannot be null or undefined).
func (a Value) mightNotBeObject() bool {
	switch a.kind {
	case objKind:
		return false
	case abstractKind:
		return a.abs.Type != TypeObject
	default:
		return true
	}
}

// provenSimple reports the value is an object proven free of exotic
// trap and instance-check behavior.
func (a Value) provenSimple() bool {
	switch a.kind {
	case objKind:
		return a.objVal.IsSimple()
	case abstractKind:
		return a.abs.Type == TypeObject && a.abs.Simple
	default:
		return false
	}
}

func isNullOrUndefined(a Value) bool {
	return a.kind == undefKind || a.kind == nullKind
}

// String returns the source-level string form: the coerced string for
// concrete values, the residual expression for abstract ones.
func (a Value) String() string {
	if a.kind == abstractKind {
		return a.Residual().String()
	}
	return toString(a)
}

// Bool returns a boolean representation.
func (a Value) Bool() bool { return toBoolean(a) }

// Number returns a float64 representation.
func (a Value) Number() float64 { return toNumber(a) }

// Value returns the native Go representation, one of bool, float64,
// string, ObjectValue, *Abstract, or nil (undefined and null).
func (a Value) Value() interface{} {
	switch a.kind {
	case boolKind:
		return a.boolVal
	case numberKind:
		return a.numVal
	case strKind:
		return a.strVal
	case objKind:
		return a.objVal
	case abstractKind:
		return a.abs
	default:
		return nil
	}
}

// SimpleObject is a plain object: string-keyed properties plus an
// optional prototype. It has no exotic behavior.
type SimpleObject struct {
	Props map[string]Value
	Proto *SimpleObject
}

// NewSimpleObject returns a SimpleObject holding props.
func NewSimpleObject(props map[string]Value) *SimpleObject {
	if props == nil {
		props = make(map[string]Value)
	}
	return &SimpleObject{Props: props}
}

func (o *SimpleObject) HasProperty(key string) bool {
	for p := o; p != nil; p = p.Proto {
		if _, ok := p.Props[key]; ok {
			return true
		}
	}
	return false
}

func (o *SimpleObject) IsSimple() bool { return true }

// FunctionObject is a callable object whose Proto participates in
// instanceof checks as its "prototype" property.
type FunctionObject struct {
	Name  string
	Proto *SimpleObject
}

func (f *FunctionObject) HasProperty(key string) bool {
	switch key {
	case "prototype", "name", "length":
		return true
	}
	return false
}

func (f *FunctionObject) IsSimple() bool { return true }

func (f *FunctionObject) HasInstance(v Value) bool {
	if v.kind != objKind || f.Proto == nil {
		return false
	}
	o, ok := v.objVal.(*SimpleObject)
	if !ok {
		return false
	}
	for p := o.Proto; p != nil; p = p.Proto {
		if p == f.Proto {
			return true
		}
	}
	return false
}

func (f *FunctionObject) String() string {
	return "[Function " + f.Name + "]"
}

// ExoticObject wraps another object and withholds the proof that it is
// trap-free, defeating the purity and simplicity analyses.
type ExoticObject struct {
	Inner ObjectValue
}

func (o *ExoticObject) HasProperty(key string) bool {
	return o.Inner != nil && o.Inner.HasProperty(key)
}

func (o *ExoticObject) IsSimple() bool { return false }
