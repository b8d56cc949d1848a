// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package evaluator

import (
	"github.com/spf13/cast"

	"github.com/packetd/probed/errs"
	"github.com/packetd/probed/script"
	"github.com/packetd/probed/value"
)

// breakSignal is returned up the statement-execution stack to unwind out of
// the innermost enclosing FOR, mirroring how a decoder propagates a
// distinguished io.EOF to mean "stop, not an error".
type breakSignal struct{}

func (breakSignal) Error() string { return "break" }

// CodeEvaluator runs one CODE block's statements against an Environment.
type CodeEvaluator struct {
	env *value.Environment
}

func NewCodeEvaluator(env *value.Environment) *CodeEvaluator {
	return &CodeEvaluator{env: env}
}

// Run executes every statement in stmts in order.
func (e *CodeEvaluator) Run(stmts []script.Stmt) error {
	err := e.execStmts(stmts)
	if _, ok := err.(breakSignal); ok {
		// a BREAK with no enclosing FOR in this statement list is a no-op
		// at the top level, matching "body executes until BREAK" semantics
		// when the CODE block itself is the outermost scope.
		return nil
	}
	return err
}

func (e *CodeEvaluator) execStmts(stmts []script.Stmt) error {
	for _, s := range stmts {
		if err := e.execStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (e *CodeEvaluator) execStmt(s script.Stmt) error {
	switch st := s.(type) {
	case *script.DeclStmt:
		v, err := e.Eval(st.Expr)
		if err != nil {
			return err
		}
		if st.Type != "" {
			v, err = value.CoerceTo(v, declKind(st.Type))
			if err != nil {
				return err
			}
		}
		e.env.Set(st.Name, v)
		return nil

	case *script.ExprStmt:
		// only REPLACE(ident, a, b) reaches here as a bare statement; its
		// mutate-in-place form is handled directly so the CallExpr
		// evaluator path stays purely functional.
		call, ok := st.Expr.(*script.CallExpr)
		if !ok || call.Name != "REPLACE" {
			_, err := e.Eval(st.Expr)
			return err
		}
		return e.execReplaceStmt(call)

	case *script.ForStmt:
		return e.execFor(st)

	case *script.BreakStmt:
		return breakSignal{}

	case *script.IfStmt:
		return e.execIf(st)

	default:
		return errs.Parse("evaluator: unsupported statement type %T", s)
	}
}

func (e *CodeEvaluator) execReplaceStmt(call *script.CallExpr) error {
	if len(call.Args) != 3 {
		return errs.Parse("REPLACE expects 3 arguments")
	}
	ident, ok := call.Args[0].(*script.IdentExpr)
	if !ok {
		return errs.Parse("REPLACE statement form requires an identifier as its first argument")
	}
	v, ok := e.env.Get(ident.Name)
	if !ok {
		return errs.Parse("undefined variable %q", ident.Name)
	}
	a, err := e.evalString(call.Args[1])
	if err != nil {
		return err
	}
	b, err := e.evalString(call.Args[2])
	if err != nil {
		return err
	}
	e.env.Set(ident.Name, value.String(value.Replace(v.AsString(), a, b)))
	return nil
}

func (e *CodeEvaluator) execFor(st *script.ForStmt) error {
	seqVal, ok := e.env.Get(st.Seq)
	if !ok {
		return errs.Parse("undefined sequence %q", st.Seq)
	}
	seqVal, err := value.CoerceTo(seqVal, value.KindSequence)
	if err != nil {
		return err
	}

	for _, elem := range seqVal.Seq {
		e.env.Set(st.Var, elem)
		err := e.execStmts(st.Body)
		if _, ok := err.(breakSignal); ok {
			break
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *CodeEvaluator) execIf(st *script.IfStmt) error {
	for _, branch := range st.Branches {
		if branch.Cond == nil {
			return e.execStmts(branch.Body)
		}
		v, err := e.Eval(branch.Cond)
		if err != nil {
			return err
		}
		if truthy(v) {
			return e.execStmts(branch.Body)
		}
	}
	return nil
}

// truthy converts an evaluated condition to a boolean the way a loosely
// typed config value would be: CompareExpr results are already KindBool,
// but a bare identifier used as a condition (e.g. `IF found:`) may hold any
// textual representation of a boolean, so the conversion goes through
// cast rather than re-deriving boolean parsing rules by hand.
func truthy(v value.Value) bool {
	if v.Kind == value.KindBool {
		return v.B
	}
	b, err := cast.ToBoolE(v.AsString())
	if err != nil {
		return v.AsString() != ""
	}
	return b
}

func declKind(t string) value.Kind {
	switch t {
	case "STRING":
		return value.KindString
	case "INT":
		return value.KindInt
	case "BYTE":
		return value.KindBytes
	case "FLOAT":
		return value.KindFloat
	case "ARRAY":
		return value.KindSequence
	default:
		return value.KindString
	}
}

func (e *CodeEvaluator) evalString(expr script.Expr) (string, error) {
	v, err := e.Eval(expr)
	if err != nil {
		return "", err
	}
	return v.AsString(), nil
}

// Eval evaluates expr to a Value.
func (e *CodeEvaluator) Eval(expr script.Expr) (value.Value, error) {
	switch ex := expr.(type) {
	case *script.LitExpr:
		if ex.Kind == script.LitString {
			return value.String(ex.Str), nil
		}
		return value.Int(ex.Int), nil

	case *script.IdentExpr:
		v, ok := e.env.Get(ex.Name)
		if !ok {
			return value.Value{}, errs.Parse("undefined variable %q", ex.Name)
		}
		return v, nil

	case *script.IndexExpr:
		base, err := e.Eval(ex.Base)
		if err != nil {
			return value.Value{}, err
		}
		idxVal, err := e.Eval(ex.Index)
		if err != nil {
			return value.Value{}, err
		}
		idx, ok := idxVal.AsInt()
		if !ok {
			return value.Value{}, errs.Parse("index expression does not evaluate to an integer")
		}
		return value.Index(base, idx)

	case *script.PathExpr:
		base, err := e.Eval(ex.Base)
		if err != nil {
			return value.Value{}, err
		}
		return value.DottedPath(base, ex.Segs, true)

	case *script.CompareExpr:
		return e.evalCompare(ex)

	case *script.CallExpr:
		return e.evalCall(ex)

	default:
		return value.Value{}, errs.Parse("evaluator: unsupported expression type %T", expr)
	}
}

func (e *CodeEvaluator) evalCompare(ex *script.CompareExpr) (value.Value, error) {
	left, err := e.Eval(ex.Left)
	if err != nil {
		return value.Value{}, err
	}
	right, err := e.Eval(ex.Right)
	if err != nil {
		return value.Value{}, err
	}

	switch ex.Op {
	case "==":
		return value.Bool(value.Equal(left, right)), nil
	case "!=":
		return value.Bool(!value.Equal(left, right)), nil
	case "CONTAINS":
		return value.Bool(value.Contains(left, right)), nil
	case "<", "<=", ">", ">=":
		cmp, ok := value.Compare(left, right)
		if !ok {
			return value.Value{}, errs.Parse("cannot compare values with operator %s", ex.Op)
		}
		switch ex.Op {
		case "<":
			return value.Bool(cmp < 0), nil
		case "<=":
			return value.Bool(cmp <= 0), nil
		case ">":
			return value.Bool(cmp > 0), nil
		default:
			return value.Bool(cmp >= 0), nil
		}
	default:
		return value.Value{}, errs.Parse("unknown comparison operator %q", ex.Op)
	}
}

func (e *CodeEvaluator) evalCall(ex *script.CallExpr) (value.Value, error) {
	switch ex.Name {
	case "SPLIT":
		if len(ex.Args) != 2 {
			return value.Value{}, errs.Parse("SPLIT expects 2 arguments")
		}
		s, err := e.evalString(ex.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		d, err := e.evalString(ex.Args[1])
		if err != nil {
			return value.Value{}, err
		}
		return value.Sequence(value.Split(s, d)), nil

	case "REPLACE":
		if len(ex.Args) != 3 {
			return value.Value{}, errs.Parse("REPLACE expects 3 arguments")
		}
		s, err := e.evalString(ex.Args[0])
		if err != nil {
			return value.Value{}, err
		}
		a, err := e.evalString(ex.Args[1])
		if err != nil {
			return value.Value{}, err
		}
		b, err := e.evalString(ex.Args[2])
		if err != nil {
			return value.Value{}, err
		}
		return value.String(value.Replace(s, a, b)), nil

	default:
		return value.Value{}, errs.Parse("unknown call %q", ex.Name)
	}
}
