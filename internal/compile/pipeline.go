package compile

import (
	"github.com/google/uuid"

	"github.com/itsmostafa/fiddle/internal/macro"
	"github.com/itsmostafa/fiddle/internal/scan"
)

// Outcome is the pipeline's answer for one fragment. Either Unit is
// non-nil or Diagnostics explains why compilation failed.
type Outcome struct {
	Unit        Unit
	Diagnostics []Diagnostic
	// HasResult reports whether execution will assign the result slot.
	HasResult bool
	// Source is the generated source of the attempt being reported,
	// for the show-generated-source toggle and for diagnostics.
	Source string
	// FuncName is set when the fragment defined a function.
	FuncName string
	// UnitName is the persisted unit name for function fragments.
	UnitName string
}

// Pipeline frames fragments and drives the compiler collaborator.
type Pipeline struct {
	comp      Compiler
	macros    *macro.Table
	refs      []string
	funcUnits map[string]string // function name -> persisted unit
}

// New returns a pipeline over the given compiler and macro table.
func New(comp Compiler, macros *macro.Table) *Pipeline {
	return &Pipeline{comp: comp, macros: macros, funcUnits: make(map[string]string)}
}

// AddReference records a persisted unit to hand to later compilations.
func (p *Pipeline) AddReference(name string) {
	for _, have := range p.refs {
		if have == name {
			return
		}
	}
	p.refs = append(p.refs, name)
}

// References returns the referenced unit names in registration order.
func (p *Pipeline) References() []string {
	return append([]string(nil), p.refs...)
}

func (p *Pipeline) removeReference(name string) {
	for i, have := range p.refs {
		if have == name {
			p.refs = append(p.refs[:i], p.refs[i+1:]...)
			return
		}
	}
}

// Compile classifies and compiles one ready fragment.
func (p *Pipeline) Compile(fragment string) *Outcome {
	if decl, ok := scan.MatchFuncDecl(fragment); ok {
		return p.compileFunction(decl, fragment)
	}
	return p.compileExprOrStmt(fragment)
}

// compileFunction compiles a function fragment as a named persisted
// unit and, on success, registers a macro routing bare calls through
// the unit's access path. A previous same-named macro and its stale
// unit reference are dropped first.
func (p *Pipeline) compileFunction(decl *scan.FuncDecl, fragment string) *Outcome {
	p.macros.Remove(decl.Name)

	framing := p.comp.Framing()
	unitName := "unit_" + uuid.New().String()[:8]
	src := framing.Function(unitName, decl, fragment)
	res := p.comp.Compile(src, Persisted, unitName, p.References())
	if !res.OK {
		return &Outcome{Diagnostics: res.Diagnostics, Source: src}
	}

	if stale, ok := p.funcUnits[decl.Name]; ok {
		p.removeReference(stale)
	}
	p.funcUnits[decl.Name] = unitName
	p.AddReference(unitName)
	p.macros.Define(decl.Name, framing.Invoke(unitName, decl), paramList(decl))
	return &Outcome{
		Unit:     res.Unit,
		Source:   src,
		FuncName: decl.Name,
		UnitName: unitName,
	}
}

// compileExprOrStmt assumes the fragment is a value-yielding expression
// and frames it to assign the result slot. When that fails only
// because the fragment plausibly yields no value, it retries the
// original fragment as a bare statement.
func (p *Pipeline) compileExprOrStmt(fragment string) *Outcome {
	framing := p.comp.Framing()
	refs := p.References()

	exprSrc := framing.Expression(fragment)
	expr := p.comp.Compile(exprSrc, Transient, "", refs)
	if expr.OK {
		return &Outcome{Unit: expr.Unit, HasResult: true, Source: exprSrc}
	}
	if !hasClass(expr.Diagnostics, VoidValue) {
		return &Outcome{Diagnostics: expr.Diagnostics, Source: exprSrc}
	}

	stmtSrc := framing.Statement(fragment)
	stmt := p.comp.Compile(stmtSrc, Transient, "", refs)
	if stmt.OK {
		return &Outcome{Unit: stmt.Unit, Source: stmtSrc}
	}

	// Both attempts failed. The statement diagnostics are usually the
	// informative ones, except when their only complaint is the
	// generic discarded-result class while the expression attempt hit
	// a genuine type mismatch.
	if onlyClass(stmt.Diagnostics, Discarded) && hasClass(expr.Diagnostics, Mismatch) {
		return &Outcome{Diagnostics: expr.Diagnostics, Source: exprSrc}
	}
	return &Outcome{Diagnostics: stmt.Diagnostics, Source: stmtSrc}
}

// paramList converts a declaration's parameters to macro formals; a
// parameterless function becomes an unparameterized macro so a bare
// mention of its name already calls it.
func paramList(decl *scan.FuncDecl) []string {
	if len(decl.Params) == 0 {
		return nil
	}
	return append([]string(nil), decl.Params...)
}
