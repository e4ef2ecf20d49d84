// Copyright 2024 echo304. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package prepack

import (
	"errors"
	"testing"
)

// Expression followed by the expected result. Abstract results print as
// their residual expression; errors print as their message.
var testTable = []string{
	(``), (`undefined`),
	(` `), (`undefined`),
	(`()`), (`SyntaxError`),
	(`"\"`), (`SyntaxError`),
	(`1`), (`1`),
	(`-1`), (`-1`),
	(`- 1`), (`-1`),
	(` - -1`), (`1`),
	(`- - - -1`), (`1`),
	(`- - - -1 - 2`), (`-1`),
	(`+1`), (`1`),
	(` + +-1`), (`-1`),
	(`-+-+-+-1 - 2`), (`-1`),
	(`(`), (`SyntaxError`),
	(`(1`), (`SyntaxError`),
	(`(1)`), (`1`),
	(`( 1 )`), (`1`),
	(`--1`), (`SyntaxError`),
	(`1--`), (`SyntaxError`),
	(`1++`), (`SyntaxError`),
	(`++1`), (`SyntaxError`),
	(`-+1`), (`-1`),
	(`.1`), (`0.1`),
	(`.1e-1`), (`0.01`),
	(`1.0e1`), (`10`),
	(`1.0E+1`), (`10`),
	(`-1.0E-1`), (`-0.1`),
	(`0x1`), (`1`),
	(`0xZ`), (`SyntaxError`),
	(`0xFFFFFFFF`), (`4294967295`),
	(`0xFFFFFFFF+1`), (`4294967296`),
	(`"hello"`), (`hello`),
	(`"hel\nlo"`), ("hel\nlo"),
	("`hello world`"), ("hello world"),
	("'hello \"\" world'"), (`hello "" world`),
	(`"hello`), (`SyntaxError`),
	(`"\u{21}"`), ("!"),
	(`"\u{YY}"`), (`SyntaxError`),
	(`"hi"+1`), (`hi1`),
	(`"" + 1e21`), (`1e+21`),
	(`"" + 1e20`), (`100000000000000000000`),
	(`"" + 1e-7`), (`1e-7`),
	(`"1e+21" < "2"`), (`true`),
	(`"hi"-1`), (`NaN`),
	(`"a" + 1`), (`a1`),
	(`1 + "a"`), (`1a`),
	(`"2" + "4"`), (`24`),
	(`"2" * "4"`), (`8`),
	(`"10" % "3"`), (`1`),
	(`1+1-0.5`), (`1.5`),
	(`2*4`), (`8`),
	(`(2*4`), (`SyntaxError`),
	(`"2*4`), (`SyntaxError`),
	(`999 + 777 * (888 + (0.5 + 1.5)) * (0.5 + true)`), (`1038294`),
	(`999 + 777 * (888 / 0.456) / true`), (`1514104.2631578946`),
	(`999 + 777 * (888 / 0.456) / 0`), (`Infinity`),
	(`1 +`), (`SyntaxError`),
	(`/1`), (`SyntaxError`),
	(`10 % 3`), (`1`),
	(`-10 % 3`), (`-1`),
	(`0 / 0`), (`NaN`),
	(`1 / 0`), (`Infinity`),
	(`-1 / 0`), (`-Infinity`),
	(`NaN + 1`), (`NaN`),
	(`NaN * 1`), (`NaN`),
	(`Infinity`), (`Infinity`),
	(`-Infinity`), (`-Infinity`),
	(`Infinity - Infinity`), (`NaN`),
	(`2 ** 10`), (`1024`),
	(`2 ** 3 ** 2`), (`512`),
	(`2 ** (-1)`), (`0.5`),
	(`NaN ** 0`), (`1`),
	(`1 ** Infinity`), (`NaN`),
	(`1 << 3`), (`8`),
	(`1 << 32`), (`1`),
	(`1 << true`), (`2`),
	(`-8 >> 2`), (`-2`),
	(`-8 >>> 28`), (`15`),
	(`-1 >>> 0`), (`4294967295`),
	(`"4" >> 1`), (`2`),
	(`255 & 15`), (`15`),
	(`8 | 1`), (`9`),
	(`5 ^ 1`), (`4`),
	(`7 & 3 | 8`), (`11`),
	(`1 | 2 ^ 3 & 2`), (`1`),
	(`1 > 2`), (`false`),
	(`1 > 2 || 3 > 2`), (`true`),
	(`3 > 2 || (2 > 3 && 1 < 2)`), (`true`),
	(`(1 < 2 && 3 > 2) + 10`), (`11`),
	(`1 >= 2`), (`false`),
	(`"1" >= "2"`), (`false`),
	(`"2" >= "10"`), (`true`),
	(`"10" < "2"`), (`true`),
	(`2 <= 4`), (`true`),
	(`true < false`), (`false`),
	(`false < true`), (`true`),
	(`NaN < NaN`), (`false`),
	(`NaN >= NaN`), (`false`),
	(`1 == 2`), (`false`),
	(`1 = 2`), (`SyntaxError`),
	(`1 == `), (`SyntaxError`),
	(` == 1`), (`SyntaxError`),
	(`1 != 2`), (`true`),
	(`1 ! 2`), (`SyntaxError`),
	(`1 == "1"`), (`true`),
	(`1 === "1"`), (`false`),
	(`1 !== "1"`), (`true`),
	(`"1" === "1"`), (`true`),
	(`0 == false`), (`true`),
	(`"" == 0`), (`true`),
	(`null == undefined`), (`true`),
	(`null == 0`), (`false`),
	(`null == null`), (`true`),
	(`NaN == NaN`), (`false`),
	(`NaN === NaN`), (`false`),
	(`NaN != NaN`), (`true`),
	(`false == true`), (`false`),
	(`false + true`), (`1`),
	(`false - true`), (`-1`),
	(`false !== ! true`), (`false`),
	(`true == !!true`), (`true`),
	(`true == ! ! true == ! ( 1 == 2 ) `), (`true`),
	(`1 != 2 > 1 != 1`), (`true`),
	(`1 != 2 < 1 != 1`), (`false`),
	(`undefined`), (`undefined`),
	(`undefined + 10`), (`NaN`),
	(`null`), (`null`),
	(`null + 10`), (`10`),
	(`null + null`), (`0`),
	(`null + undefined`), (`NaN`),
	(`!undefined`), (`true`),
	(`!!undefined`), (`false`),
	(`null??1`), (`1`),
	(`null??0`), (`0`),
	(`undefined??1+1`), (`2`),
	(`false??1+1`), (`false`),
	(`(false??1)+1`), (`1`),
	(`(true??1)+1`), (`2`),
	(`true && false`), (`false`),
	(`true || false`), (`true`),
	(`0 || false`), (`false`),
	(`(1 || (2 > 5)) && (4 < 5 || 5 < 4)`), (`true`),
	(`(1) && `), (`SyntaxError`),
	(` && (1)`), (`SyntaxError`),
	(`true ? 1 : 2`), (`1`),
	(`false ? 1 : 2`), (`2`),
	(`false ? 1 : true ? 2 : 3`), (`2`),
	(`false ? 1 : false ? 2 : 3`), (`3`),
	(`5*2-10 ? 1 : (3*3-9 < 1 || 6+6-12 ? 8 : false) ? 2 : 3`), (`2`),
	(`(false ? 1 : 2`), (`SyntaxError`),
	(`true ? () : ()`), (`SyntaxError`),
	(`1e+10 > 0 ? "big" : "small"`), (`big`),
	(`1,2,3,4`), (`4`),
	(`1=,2,3,4`), (`SyntaxError`),
	(`1,2,3,(4+)`), (`SyntaxError`),
	(`6<7 , 2>5 , 5`), (`5`),
	(`0 + {1}`), (`SyntaxError`),
	(`0 + [1]`), (`SyntaxError`),
	(`new`), (`SyntaxError`),
	(`typeof 1`), (`SyntaxError`),
	(`in`), (`SyntaxError`),
	(`1 in`), (`SyntaxError`),
	(`instanceof`), (`SyntaxError`),
	// Unbound identifiers stay abstract; the result prints as the
	// residual expression that recomputes it.
	(`x`), (`x`),
	(`x + 1`), (`x + 1`),
	(`1 + 2 * x`), (`1 + (2 * x)`),
	(`x * 2 + 1`), (`(x * 2) + 1`),
	(`-x`), (`-x`),
	(`!x`), (`!x`),
	(`!!x`), (`!!x`),
	(`x == null`), (`x == null`),
	(`x === 1`), (`x === 1`),
	(`x < 10 ? "lo" : "hi"`), (`(x < 10) ? "lo" : "hi"`),
	(`x && true`), (`x && true`),
	(`false || x`), (`x`),
	(`true || x`), (`true`),
	(`true && x`), (`x`),
	(`null ?? x`), (`x`),
	(`x ?? 1`), (`x ?? 1`),
	(`x instanceof y`), (`x instanceof y`),
	(`"a" in x`), (`"a" in x`),
	(`x ** 2`), (`x ** 2`),
	(`x >>> 1`), (`x >>> 1`),
	(`1 + 2 + x`), (`3 + x`),
	(`x + 1 + 2`), (`(x + 1) + 2`),
}

func TestEvalTable(t *testing.T) {
	ctx := &Context{
		Handler: HandlerFunc(func(d Diagnostic) Outcome { return Recover }),
	}
	for i := 0; i < len(testTable)-1; i += 2 {
		expr, expect := testTable[i], testTable[i+1]
		val, err := Eval(expr, ctx)
		if err != nil {
			val = String(err.Error())
		}
		if val.String() != expect {
			t.Fatalf("%d: for '%s' expected '%s' got '%s'",
				i/2, expr, expect, val)
		}
	}
}

func testEnv() (MapResolver, *Context) {
	proto := NewSimpleObject(map[string]Value{"greet": String("hi")})
	box := NewSimpleObject(map[string]Value{"a": Number(1)})
	inst := &SimpleObject{Props: map[string]Value{}, Proto: proto}
	fn := &FunctionObject{Name: "Box", Proto: proto}
	env := MapResolver{
		"box":  Object(box),
		"inst": Object(inst),
		"Box":  Object(fn),
		"n":    Number(42),
		"s":    String("abc"),
	}
	ctx := &Context{
		Handler:  HandlerFunc(func(d Diagnostic) Outcome { return Recover }),
		Resolver: env,
	}
	return env, ctx
}

func TestEvalResolver(t *testing.T) {
	_, ctx := testEnv()
	eval := func(expr string) Value {
		r, err := Eval(expr, ctx)
		if err != nil {
			return String(err.Error())
		}
		return r
	}
	if eval(`n + 1`).Number() != 43 {
		t.Fatal()
	}
	if eval(`s + "!"`).String() != "abc!" {
		t.Fatal()
	}
	if eval(`"a" in box`).Bool() != true {
		t.Fatal()
	}
	if eval(`"b" in box`).Bool() != false {
		t.Fatal()
	}
	if eval(`"greet" in inst`).Bool() != true {
		t.Fatal()
	}
	if eval(`inst instanceof Box`).Bool() != true {
		t.Fatal()
	}
	if eval(`box instanceof Box`).Bool() != false {
		t.Fatal()
	}
	if eval(`Box + "!"`).String() != "[Function Box]!" {
		t.Fatal()
	}
	if eval(`int_x in box`).String() != "int_x in box" {
		t.Fatal()
	}
}

func TestEvalThrow(t *testing.T) {
	_, ctx := testEnv()
	_, err := Eval(`"a" in 5`, ctx)
	var throw *ThrowError
	if !errors.As(err, &throw) {
		t.Fatalf("expected ThrowError, got %v", err)
	}
	if throw.Value.String() !=
		`TypeError: cannot use 'in' operator to search for "a" in 5` {
		t.Fatalf("unexpected message: %s", throw.Value)
	}
	_, err = Eval(`inst instanceof box`, ctx)
	if !errors.As(err, &throw) {
		t.Fatalf("expected ThrowError, got %v", err)
	}
	_, err = Eval(`inst instanceof n`, ctx)
	if !errors.As(err, &throw) {
		t.Fatalf("expected ThrowError, got %v", err)
	}
}

func TestEvalFatal(t *testing.T) {
	// No handler: soundness doubts abort.
	_, err := Eval(`x + 1`, nil)
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if fatal.Diag.Code != CodeUnknownConversion {
		t.Fatalf("unexpected code %s", fatal.Diag.Code)
	}
	// Strict equality needs no purity proof and must not abort.
	v, err := Eval(`x === 1`, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsAbstract() || v.Type() != TypeBoolean {
		t.Fatalf("expected abstract boolean, got %v", v)
	}
}

func TestEvalAbstractTypes(t *testing.T) {
	_, ctx := testEnv()
	for _, tt := range []struct {
		expr string
		want TypeDomain
	}{
		{`x + 1`, TypeNumber},
		{`x + "a"`, TypeString},
		{`x * 2`, TypeNumber},
		{`x < 1`, TypeBoolean},
		{`x == 1`, TypeBoolean},
		{`x === 1`, TypeBoolean},
		{`x | 0`, TypeNumber},
		{`"k" in x`, TypeBoolean},
		{`x instanceof Box`, TypeBoolean},
		{`-x`, TypeNumber},
		{`!x`, TypeBoolean},
	} {
		v, err := Eval(tt.expr, ctx)
		if err != nil {
			t.Fatalf("%s: %v", tt.expr, err)
		}
		if !v.IsAbstract() {
			t.Fatalf("%s: expected abstract result", tt.expr)
		}
		if v.Type() != tt.want {
			t.Fatalf("%s: expected type %s, got %s", tt.expr, tt.want,
				v.Type())
		}
	}
}

func TestEvalForEach(t *testing.T) {
	var vals []float64
	res, err := EvalForEach(`1,2,3`, func(v Value) error {
		vals = append(vals, v.Number())
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Number() != 3 || len(vals) != 3 {
		t.Fatalf("expected 3 values ending in 3, got %v (%v)", vals, res)
	}
	vals = nil
	res, err = EvalForEach(`1,2,3`, func(v Value) error {
		vals = append(vals, v.Number())
		if len(vals) == 2 {
			return ErrStop
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Number() != 2 || len(vals) != 2 {
		t.Fatalf("expected early stop at 2, got %v (%v)", vals, res)
	}
}

func TestCharPosOfErr(t *testing.T) {
	_, err := Eval(`1 +`, nil)
	if pos := CharPosOfErr(err); pos != 3 {
		t.Fatalf("expected position 3, got %d", pos)
	}
	if pos := CharPosOfErr(errors.New("other")); pos != -1 {
		t.Fatalf("expected -1, got %d", pos)
	}
}
