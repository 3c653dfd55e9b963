// Package milp describes mixed-integer linear programs independently of the
// backend that solves them. Callers create variable handles, combine them
// into linear expressions and hand the model to a Solver.
package milp

import (
	"fmt"
	"math"
)

// Kind is the domain of a decision variable.
type Kind int

const (
	Continuous Kind = iota
	Integer
	Binary
)

// Sense is the relation of a linear constraint.
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	case Equal:
		return "=="
	default:
		return fmt.Sprintf("sense(%d)", int(s))
	}
}

// Var is an opaque handle to a variable of one Model.
type Var struct {
	id int
}

// Index returns the position of the variable in its model.
func (v Var) Index() int { return v.id }

// Variable describes a decision variable.
type Variable struct {
	Name  string
	Kind  Kind
	Lower float64
	Upper float64
}

// Term is a coefficient applied to a variable.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is a linear expression: a sum of terms plus a constant.
type Expr struct {
	Terms    []Term
	Constant float64
}

// NewExpr returns an empty expression.
func NewExpr() *Expr {
	return &Expr{}
}

// Sum returns the expression v1 + v2 + ... .
func Sum(vars ...Var) *Expr {
	e := &Expr{Terms: make([]Term, 0, len(vars))}
	for _, v := range vars {
		e.Terms = append(e.Terms, Term{Var: v, Coef: 1})
	}
	return e
}

// AddTerm adds coef*v.
func (e *Expr) AddTerm(v Var, coef float64) *Expr {
	e.Terms = append(e.Terms, Term{Var: v, Coef: coef})
	return e
}

// Add adds v with coefficient one.
func (e *Expr) Add(v Var) *Expr {
	return e.AddTerm(v, 1)
}

// AddExpr adds scale*other.
func (e *Expr) AddExpr(other *Expr, scale float64) *Expr {
	for _, t := range other.Terms {
		e.Terms = append(e.Terms, Term{Var: t.Var, Coef: t.Coef * scale})
	}
	e.Constant += other.Constant * scale
	return e
}

// AddConstant adds a constant.
func (e *Expr) AddConstant(c float64) *Expr {
	e.Constant += c
	return e
}

// Eval computes the expression for the given variable values.
func (e *Expr) Eval(values []float64) float64 {
	total := e.Constant
	for _, t := range e.Terms {
		total += t.Coef * values[t.Var.id]
	}
	return total
}

// Constraint is expr (sense) rhs, with the expression's constant folded into rhs.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Model is a minimisation MILP.
type Model struct {
	vars        []Variable
	constraints []Constraint
	objective   Expr
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{}
}

// NewVar adds a variable with the given domain and bounds.
func (m *Model) NewVar(name string, kind Kind, lower, upper float64) Var {
	if kind == Binary {
		lower, upper = math.Max(lower, 0), math.Min(upper, 1)
	}
	m.vars = append(m.vars, Variable{Name: name, Kind: kind, Lower: lower, Upper: upper})
	return Var{id: len(m.vars) - 1}
}

// NewIntVar adds an integer variable bounded by [lower, upper].
func (m *Model) NewIntVar(name string, lower, upper int) Var {
	return m.NewVar(name, Integer, float64(lower), float64(upper))
}

// NewBoolVar adds a 0/1 variable.
func (m *Model) NewBoolVar(name string) Var {
	return m.NewVar(name, Binary, 0, 1)
}

// AddConstraint adds expr (sense) rhs.
func (m *Model) AddConstraint(name string, expr *Expr, sense Sense, rhs float64) {
	terms := make([]Term, len(expr.Terms))
	copy(terms, expr.Terms)
	m.constraints = append(m.constraints, Constraint{
		Name:  name,
		Terms: terms,
		Sense: sense,
		RHS:   rhs - expr.Constant,
	})
}

// Minimize sets the objective.
func (m *Model) Minimize(expr *Expr) {
	m.objective = Expr{Terms: append([]Term(nil), expr.Terms...), Constant: expr.Constant}
}

// NumVars returns the number of variables.
func (m *Model) NumVars() int { return len(m.vars) }

// NumConstraints returns the number of constraints.
func (m *Model) NumConstraints() int { return len(m.constraints) }

// Variable returns the description of v.
func (m *Model) Variable(v Var) Variable { return m.vars[v.id] }

// Variables returns a copy of all variable descriptions.
func (m *Model) Variables() []Variable {
	return append([]Variable(nil), m.vars...)
}

// Constraints returns the model constraints.
func (m *Model) Constraints() []Constraint {
	return append([]Constraint(nil), m.constraints...)
}

// Objective evaluates the objective for the given values.
func (m *Model) Objective(values []float64) float64 {
	return m.objective.Eval(values)
}

// Violation returns the largest amount by which values break a bound or a
// constraint; zero means the point is feasible for the relaxation.
func (m *Model) Violation(values []float64) float64 {
	worst := 0.0
	for i, v := range m.vars {
		worst = math.Max(worst, v.Lower-values[i])
		worst = math.Max(worst, values[i]-v.Upper)
	}
	for _, c := range m.constraints {
		lhs := 0.0
		for _, t := range c.Terms {
			lhs += t.Coef * values[t.Var.id]
		}
		switch c.Sense {
		case LessEqual:
			worst = math.Max(worst, lhs-c.RHS)
		case GreaterEqual:
			worst = math.Max(worst, c.RHS-lhs)
		case Equal:
			worst = math.Max(worst, math.Abs(lhs-c.RHS))
		}
	}
	return worst
}
