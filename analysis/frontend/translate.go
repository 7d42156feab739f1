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

package frontend

import (
	"errors"
	"fmt"
	"go/constant"
	"go/token"
	"go/types"

	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/analysis/config"
	"github.com/awslabs/ar-go-dss/analysis/formula"
	"golang.org/x/tools/go/ssa"
)

// ErrUnsupported is wrapped by the errors reporting a construct outside the supported subset of Go
var ErrUnsupported = errors.New("unsupported construct")

// AssertFunction is the name of the functions whose calls are checked. The function must take a single bool.
const AssertFunction = "assert"

// Load loads the packages designated by args and translates the program starting at main.main
func Load(args []string, log *config.LogGroup) (*cfa.CFA, error) {
	p, err := LoadProgram(nil, "", ssa.InstantiateGenerics, args)
	if err != nil {
		return nil, err
	}
	return Translate(p, "", log)
}

// LoadFile translates the main function of a single Go file
func LoadFile(filename string, log *config.LogGroup) (*cfa.CFA, error) {
	return Load([]string{filename}, log)
}

// Translate compiles the functions reachable from the entry function of the main package into a CFA. When entry is
// empty, the entry function is main. log may be nil.
func Translate(p LoadedProgram, entry string, log *config.LogGroup) (*cfa.CFA, error) {
	if entry == "" {
		entry = "main"
	}
	mainPkg := p.MainPackage()
	if mainPkg == nil {
		return nil, fmt.Errorf("no main package")
	}
	f := mainPkg.Func(entry)
	if f == nil {
		return nil, fmt.Errorf("no function %s in package %s", entry, mainPkg.Pkg.Path())
	}
	t := &translator{
		prog:       p.Program,
		main:       mainPkg,
		directives: p.Directives,
		builder:    cfa.NewBuilder(),
		funcs:      map[*ssa.Function]*cfa.Function{},
	}
	if t.havocs(f) {
		return nil, fmt.Errorf("%w: entry function %s has no translatable body", ErrUnsupported, entry)
	}
	if _, err := t.declare(f); err != nil {
		return nil, err
	}
	for len(t.queue) > 0 {
		next := t.queue[0]
		t.queue = t.queue[1:]
		if err := t.translate(next); err != nil {
			return nil, err
		}
	}
	c, err := t.builder.Build(t.name(f))
	if err != nil {
		return nil, err
	}
	log.Debugf("translated %d functions into %d locations", len(c.Functions), len(c.Nodes))
	return c, nil
}

type translator struct {
	prog       *ssa.Program
	main       *ssa.Package
	directives Directives
	builder    *cfa.Builder
	funcs      map[*ssa.Function]*cfa.Function
	queue      []*ssa.Function
}

func (t *translator) name(f *ssa.Function) string {
	return f.RelString(t.main.Pkg)
}

// havocs returns true when calls to f return arbitrary values
func (t *translator) havocs(f *ssa.Function) bool {
	return len(f.Blocks) == 0 || t.directives.On(DirectiveHavoc, t.prog.Fset.Position(f.Pos()))
}

func isAssert(f *ssa.Function) bool {
	params := f.Signature.Params()
	return f.Name() == AssertFunction && f.Signature.Results().Len() == 0 && params.Len() == 1 &&
		isBool(params.At(0).Type())
}

// declare adds the function to the CFA and schedules the translation of its body
func (t *translator) declare(f *ssa.Function) (*cfa.Function, error) {
	if cf, ok := t.funcs[f]; ok {
		return cf, nil
	}
	name := t.name(f)
	if len(f.FreeVars) > 0 {
		return nil, t.unsupported(f.Pos(), "closure %s", name)
	}
	var params []string
	for i, p := range f.Params {
		if !isInt(p.Type()) {
			return nil, t.unsupported(p.Pos(), "parameter %s of %s has type %s", p.Name(), name, p.Type())
		}
		params = append(params, paramVar(name, i, p))
	}
	result := ""
	switch results := f.Signature.Results(); {
	case results.Len() == 1 && isInt(results.At(0).Type()):
		result = name + "::ret"
	case results.Len() > 0:
		return nil, t.unsupported(f.Pos(), "result of %s has type %s", name, results)
	}
	cf := t.builder.Func(name, params, result)
	t.funcs[f] = cf
	t.queue = append(t.queue, f)
	return cf, nil
}

func (t *translator) translate(f *ssa.Function) error {
	if f.Recover != nil {
		return t.unsupported(f.Pos(), "recover block in %s", t.name(f))
	}
	ft := &funcTranslator{
		translator: t,
		f:          f,
		cf:         t.funcs[f],
		starts:     make(map[*ssa.BasicBlock]*cfa.Node, len(f.Blocks)),
		bools:      map[ssa.Value]formula.Formula{},
	}
	for _, blk := range f.Blocks {
		ft.starts[blk] = t.builder.Node(ft.cf)
	}
	t.builder.Blank(ft.cf.Entry, ft.starts[f.Blocks[0]])
	for _, blk := range f.DomPreorder() {
		if err := ft.block(blk); err != nil {
			return err
		}
	}
	return nil
}

func (t *translator) unsupported(pos token.Pos, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if p := t.prog.Fset.Position(pos); p.IsValid() {
		return fmt.Errorf("%s: %w: %s", p, ErrUnsupported, msg)
	}
	return fmt.Errorf("%w: %s", ErrUnsupported, msg)
}

func paramVar(function string, i int, p *ssa.Parameter) string {
	if p.Name() == "" || p.Name() == "_" {
		return fmt.Sprintf("%s::arg%d", function, i)
	}
	return function + "::" + p.Name()
}

// funcTranslator holds the state of the translation of one function body
type funcTranslator struct {
	*translator
	f  *ssa.Function
	cf *cfa.Function
	// starts maps each basic block to its first location
	starts map[*ssa.BasicBlock]*cfa.Node
	// bools maps the boolean values to the formula they stand for
	bools map[ssa.Value]formula.Formula
}

// unsupported reports at the position of the function when pos is unknown
func (ft *funcTranslator) unsupported(pos token.Pos, format string, args ...any) error {
	if !pos.IsValid() {
		pos = ft.f.Pos()
	}
	return ft.translator.unsupported(pos, format, args...)
}

func (ft *funcTranslator) variable(v ssa.Value) string {
	if p, ok := v.(*ssa.Parameter); ok {
		for i, q := range ft.f.Params {
			if p == q {
				return paramVar(ft.cf.Name, i, p)
			}
		}
	}
	return ft.cf.Name + "::" + v.Name()
}

func (ft *funcTranslator) term(v ssa.Value) (formula.Term, error) {
	if !isInt(v.Type()) {
		return formula.Term{}, ft.unsupported(v.Pos(), "value %s of type %s", v.Name(), v.Type())
	}
	switch x := v.(type) {
	case *ssa.Const:
		if x.Value == nil {
			return formula.Const(0), nil
		}
		c, exact := constant.Int64Val(constant.ToInt(x.Value))
		if !exact {
			return formula.Term{}, ft.unsupported(x.Pos(), "constant %s overflows int64", x.Value)
		}
		return formula.Const(c), nil
	case *ssa.Parameter, ssa.Instruction:
		return formula.Var(ft.variable(v)), nil
	}
	return formula.Term{}, ft.unsupported(v.Pos(), "value %s (%T)", v.Name(), v)
}

func (ft *funcTranslator) cond(v ssa.Value) (formula.Formula, error) {
	if c, ok := v.(*ssa.Const); ok && c.Value != nil && c.Value.Kind() == constant.Bool {
		if constant.BoolVal(c.Value) {
			return formula.True, nil
		}
		return formula.False, nil
	}
	if f, ok := ft.bools[v]; ok {
		return f, nil
	}
	return nil, ft.unsupported(v.Pos(), "boolean value %s", v.Name())
}

func (ft *funcTranslator) node() *cfa.Node {
	return ft.builder.Node(ft.cf)
}

func (ft *funcTranslator) block(blk *ssa.BasicBlock) error {
	cur := ft.starts[blk]
	for _, instr := range blk.Instrs {
		next, err := ft.instr(cur, instr)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return nil
}

// instr translates the instruction starting at cur, and returns the location following it. Terminators return a
// nil location.
func (ft *funcTranslator) instr(cur *cfa.Node, instr ssa.Instruction) (*cfa.Node, error) {
	switch i := instr.(type) {
	case *ssa.DebugRef:
		return cur, nil
	case *ssa.Phi:
		// assigned on the edges entering the block
		if !isInt(i.Type()) {
			return nil, ft.unsupported(i.Pos(), "phi %s of type %s", i.Name(), i.Type())
		}
		return cur, nil
	case *ssa.BinOp:
		return ft.binOp(cur, i)
	case *ssa.UnOp:
		return ft.unOp(cur, i)
	case *ssa.Convert:
		if !isInt(i.Type()) || !isInt(i.X.Type()) {
			return nil, ft.unsupported(i.Pos(), "conversion %s", i)
		}
		x, err := ft.term(i.X)
		if err != nil {
			return nil, err
		}
		return ft.assign(cur, i, x), nil
	case *ssa.MakeInterface:
		if onlyPanics(i) {
			return cur, nil
		}
		return nil, ft.unsupported(i.Pos(), "interface value %s", i)
	case *ssa.Call:
		return ft.call(cur, i)
	case *ssa.If:
		cond, err := ft.cond(i.Cond)
		if err != nil {
			return nil, err
		}
		then, els := ft.node(), ft.node()
		ft.builder.Branch(cur, cond, then, els)
		if err := ft.transfer(then, i.Block(), 0); err != nil {
			return nil, err
		}
		return nil, ft.transfer(els, i.Block(), 1)
	case *ssa.Jump:
		return nil, ft.transfer(cur, i.Block(), 0)
	case *ssa.Return:
		switch len(i.Results) {
		case 0:
			ft.builder.Blank(cur, ft.cf.Exit)
		case 1:
			v, err := ft.term(i.Results[0])
			if err != nil {
				return nil, err
			}
			ft.builder.Assign(cur, ft.cf.Exit, cfa.Bind(ft.cf.Result, v))
		default:
			return nil, ft.unsupported(i.Pos(), "multiple results in %s", ft.cf.Name)
		}
		return nil, nil
	case *ssa.Panic:
		target := ft.node()
		ft.builder.MarkTarget(target)
		ft.builder.Blank(cur, target)
		return nil, nil
	}
	return nil, ft.unsupported(instr.Pos(), "instruction %q (%T)", instr, instr)
}

func (ft *funcTranslator) assign(cur *cfa.Node, v ssa.Value, t formula.Term) *cfa.Node {
	next := ft.node()
	ft.builder.Assign(cur, next, cfa.Bind(ft.variable(v), t))
	return next
}

func (ft *funcTranslator) havoc(cur *cfa.Node, v ssa.Value) *cfa.Node {
	next := ft.node()
	ft.builder.Havoc(cur, next, ft.variable(v))
	return next
}

func (ft *funcTranslator) binOp(cur *cfa.Node, i *ssa.BinOp) (*cfa.Node, error) {
	if !isInt(i.X.Type()) {
		return nil, ft.unsupported(i.Pos(), "operation %s", i)
	}
	x, err := ft.term(i.X)
	if err != nil {
		return nil, err
	}
	y, err := ft.term(i.Y)
	if err != nil {
		return nil, err
	}
	switch i.Op {
	case token.EQL:
		ft.bools[i] = formula.Eq(x, y)
	case token.NEQ:
		ft.bools[i] = formula.Ne(x, y)
	case token.LSS:
		ft.bools[i] = formula.Lt(x, y)
	case token.LEQ:
		ft.bools[i] = formula.Le(x, y)
	case token.GTR:
		ft.bools[i] = formula.Gt(x, y)
	case token.GEQ:
		ft.bools[i] = formula.Ge(x, y)
	case token.ADD:
		return ft.assign(cur, i, x.Add(y)), nil
	case token.SUB:
		return ft.assign(cur, i, x.Sub(y)), nil
	case token.MUL:
		switch {
		case x.IsConst():
			return ft.assign(cur, i, y.Scale(x.Const)), nil
		case y.IsConst():
			return ft.assign(cur, i, x.Scale(y.Const)), nil
		}
		return ft.havoc(cur, i), nil
	default:
		return ft.havoc(cur, i), nil
	}
	return cur, nil
}

func (ft *funcTranslator) unOp(cur *cfa.Node, i *ssa.UnOp) (*cfa.Node, error) {
	switch {
	case i.Op == token.NOT:
		f, err := ft.cond(i.X)
		if err != nil {
			return nil, err
		}
		ft.bools[i] = formula.Negate(f)
		return cur, nil
	case i.Op == token.SUB && isInt(i.X.Type()):
		x, err := ft.term(i.X)
		if err != nil {
			return nil, err
		}
		return ft.assign(cur, i, x.Scale(-1)), nil
	case i.Op == token.XOR && isInt(i.X.Type()):
		return ft.havoc(cur, i), nil
	}
	return nil, ft.unsupported(i.Pos(), "operation %s", i)
}

func (ft *funcTranslator) call(cur *cfa.Node, i *ssa.Call) (*cfa.Node, error) {
	common := i.Common()
	if b, ok := common.Value.(*ssa.Builtin); ok {
		switch b.Name() {
		case "print", "println":
			return cur, nil
		}
		return nil, ft.unsupported(i.Pos(), "builtin %s", b.Name())
	}
	callee := common.StaticCallee()
	if callee == nil || common.IsInvoke() {
		return nil, ft.unsupported(i.Pos(), "dynamic call %s", common)
	}
	if isAssert(callee) {
		cond, err := ft.cond(common.Args[0])
		if err != nil {
			return nil, err
		}
		next, failed := ft.node(), ft.node()
		ft.builder.MarkTarget(failed)
		ft.builder.Branch(cur, cond, next, failed)
		return next, nil
	}
	if ft.havocs(callee) {
		results := callee.Signature.Results()
		switch {
		case results.Len() == 0:
			next := ft.node()
			ft.builder.Blank(cur, next)
			return next, nil
		case results.Len() == 1 && isInt(results.At(0).Type()):
			return ft.havoc(cur, i), nil
		case results.Len() == 1 && isBool(results.At(0).Type()):
			ft.bools[i] = formula.Ne(formula.Var(ft.variable(i)), formula.Const(0))
			return ft.havoc(cur, i), nil
		}
		return nil, ft.unsupported(i.Pos(), "result of %s has type %s", ft.name(callee), results)
	}
	cf, err := ft.declare(callee)
	if err != nil {
		return nil, err
	}
	args := make([]formula.Term, len(common.Args))
	for k, a := range common.Args {
		if args[k], err = ft.term(a); err != nil {
			return nil, err
		}
	}
	result := ""
	if cf.Result != "" {
		result = ft.variable(i)
	}
	return ft.builder.Call(cur, cf, args, result), nil
}

// transfer connects from to the successor of index succ of blk, assigning the phis of the successor
func (ft *funcTranslator) transfer(from *cfa.Node, blk *ssa.BasicBlock, succ int) error {
	to := blk.Succs[succ]
	k := predIndex(blk, succ)
	var bindings []cfa.Binding
	for _, instr := range to.Instrs {
		phi, ok := instr.(*ssa.Phi)
		if !ok {
			break
		}
		if !isInt(phi.Type()) {
			continue
		}
		v, err := ft.term(phi.Edges[k])
		if err != nil {
			return err
		}
		bindings = append(bindings, cfa.Bind(ft.variable(phi), v))
	}
	if len(bindings) == 0 {
		ft.builder.Blank(from, ft.starts[to])
	} else {
		ft.builder.Assign(from, ft.starts[to], bindings...)
	}
	return nil
}

// predIndex returns the index of blk in the predecessors of its successor of index succ. When blk jumps to the
// same block twice, the n-th occurrence in the successors matches the n-th occurrence in the predecessors.
func predIndex(blk *ssa.BasicBlock, succ int) int {
	to := blk.Succs[succ]
	nth := 0
	for _, s := range blk.Succs[:succ] {
		if s == to {
			nth++
		}
	}
	for k, p := range to.Preds {
		if p == blk {
			if nth == 0 {
				return k
			}
			nth--
		}
	}
	return -1
}

func onlyPanics(v ssa.Value) bool {
	refs := v.Referrers()
	if refs == nil || len(*refs) == 0 {
		return false
	}
	for _, r := range *refs {
		if _, ok := r.(*ssa.Panic); !ok {
			return false
		}
	}
	return true
}

func isInt(t types.Type) bool {
	b, ok := t.Underlying().(*types.Basic)
	return ok && b.Info()&types.IsInteger != 0
}

func isBool(t types.Type) bool {
	b, ok := t.Underlying().(*types.Basic)
	return ok && b.Info()&types.IsBoolean != 0
}
