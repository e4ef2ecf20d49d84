// Copyright 2024 echo304. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command prepack partially evaluates JavaScript-style expressions.
// With an argument it evaluates that expression and exits; without one
// it starts an interactive session. Identifiers without a binding stay
// abstract, so the printed result may be a residual expression.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/echo304/prepack"
	"github.com/peterh/liner"
)

const historyFile = ".prepack_history"

func main() {
	var strict bool
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "-strict" {
		strict = true
		args = args[1:]
	}
	env := prepack.MapResolver{}
	ctx := &prepack.Context{
		Handler:  handler(strict),
		Resolver: env,
	}
	if len(args) > 0 {
		os.Exit(evalAndPrint(strings.Join(args, " "), ctx))
	}
	os.Exit(repl(env, ctx))
}

// handler is the diagnostic policy: print soundness doubts as warnings
// and recover, or abort everything in strict mode.
func handler(strict bool) prepack.ErrorHandler {
	return prepack.HandlerFunc(func(d prepack.Diagnostic) prepack.Outcome {
		fmt.Fprintln(os.Stderr, "warning: "+d.String())
		if strict {
			return prepack.Abort
		}
		return prepack.Recover
	})
}

func evalAndPrint(src string, ctx *prepack.Context) int {
	v, err := prepack.Eval(src, ctx)
	if err != nil {
		if pos := prepack.CharPosOfErr(err); pos >= 0 {
			fmt.Fprintf(os.Stderr, "%s at position %d\n", err, pos)
		} else {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		return 1
	}
	if v.IsAbstract() {
		fmt.Printf("%s: %s\n", v.Type(), v.Residual())
	} else {
		fmt.Println(v)
	}
	return 0
}

func repl(env prepack.MapResolver, ctx *prepack.Context) int {
	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		line, err := ln.Prompt("> ")
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Println()
			return 0
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			return 1
		}
		code := strings.TrimSpace(line)
		if code == "" {
			continue
		}
		ln.AppendHistory(line)
		if strings.HasPrefix(code, ":") {
			if handleCommand(env, ctx, code) {
				return 0
			}
			continue
		}
		evalAndPrint(code, ctx)
	}
}

// handleCommand runs a ":" session command, reporting whether the
// session should end.
func handleCommand(env prepack.MapResolver, ctx *prepack.Context, code string) (exit bool) {
	fields := strings.Fields(code)
	switch fields[0] {
	case ":quit", ":q":
		return true
	case ":env":
		for name, v := range env {
			fmt.Printf("%s = %s\n", name, v)
		}
	case ":set":
		if len(fields) < 3 {
			fmt.Println("usage: :set <name> <expr>")
			break
		}
		v, err := prepack.Eval(strings.Join(fields[2:], " "), ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			break
		}
		env[fields[1]] = v
	case ":unset":
		if len(fields) < 2 {
			fmt.Println("usage: :unset <name>")
			break
		}
		delete(env, fields[1])
	default:
		fmt.Println("commands: :set <name> <expr>, :unset <name>, :env, :quit")
	}
	return false
}
