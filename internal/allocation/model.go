package allocation

import (
	"fmt"

	"github.com/eugenenazirov/parade-allocator/internal/milp"
	"github.com/eugenenazirov/parade-allocator/internal/parade"
)

// Model is the MILP for the residual groups together with the handles needed
// to read a solution back.
type Model struct {
	Program    *milp.Model
	Groups     []parade.Group
	Candidates int

	// X[i][c] is the number of people of group i in candidate c, Y[i][c]
	// marks group i as present in c and Z[c] marks c as used.
	X [][]milp.Var
	Y [][]milp.Var
	Z []milp.Var
	// M holds the row-multiple auxiliaries of chunked groups, keyed by group index.
	M map[int][]milp.Var

	// totals[c] is the headcount expression of candidate c.
	totals []*milp.Expr
	params Params
}

// policyRule adds the constraints specific to one group policy.
type policyRule interface {
	apply(m *Model, i int) error
}

var policyRules = map[parade.Policy]policyRule{
	parade.PolicyFree:    freeRule{},
	parade.PolicyChunked: chunkedRule{},
}

// MaxContingents is the number of candidate contingents for total people.
func MaxContingents(total, capacity int) int {
	return total/capacity + 3
}

// BuildModel formulates the assignment of residual groups. target is the
// exact number of contingents to use, or negative when the count is free.
func BuildModel(residual []parade.Group, params Params, target int) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	total := 0
	for _, g := range residual {
		total += g.Size
	}
	candidates := MaxContingents(total, params.Capacity)
	if target > candidates {
		return nil, fmt.Errorf("%w: fixed contingent count %d exceeds the %d candidates available for %d people",
			parade.ErrConfiguration, target, candidates, total)
	}

	m := &Model{
		Program:    milp.NewModel(),
		Groups:     append([]parade.Group(nil), residual...),
		Candidates: candidates,
		X:          make([][]milp.Var, len(residual)),
		Y:          make([][]milp.Var, len(residual)),
		Z:          make([]milp.Var, candidates),
		M:          make(map[int][]milp.Var),
		totals:     make([]*milp.Expr, candidates),
		params:     params,
	}
	p := m.Program
	capacity := float64(params.Capacity)

	for c := 0; c < candidates; c++ {
		m.Z[c] = p.NewBoolVar(fmt.Sprintf("z_%d", c))
		m.totals[c] = milp.NewExpr()
	}
	for i, g := range residual {
		m.X[i] = make([]milp.Var, candidates)
		m.Y[i] = make([]milp.Var, candidates)
		for c := 0; c < candidates; c++ {
			m.X[i][c] = p.NewIntVar(fmt.Sprintf("x_%d_%d", i, c), 0, g.Size)
			m.Y[i][c] = p.NewBoolVar(fmt.Sprintf("y_%d_%d", i, c))
			m.totals[c].Add(m.X[i][c])
		}
	}

	for c := 0; c < candidates; c++ {
		p.AddConstraint(fmt.Sprintf("capacity_%d", c),
			milp.NewExpr().AddExpr(m.totals[c], 1).AddTerm(m.Z[c], -capacity), milp.LessEqual, 0)
		p.AddConstraint(fmt.Sprintf("nonempty_%d", c),
			milp.NewExpr().AddExpr(m.totals[c], 1).AddTerm(m.Z[c], -1), milp.GreaterEqual, 0)
		if params.StrictMinCapacity > 0 {
			p.AddConstraint(fmt.Sprintf("min_fill_%d", c),
				milp.NewExpr().AddExpr(m.totals[c], 1).AddTerm(m.Z[c], -float64(params.StrictMinCapacity)),
				milp.GreaterEqual, 0)
		}
		// Used candidates come first.
		if c+1 < candidates {
			p.AddConstraint(fmt.Sprintf("order_%d", c),
				milp.NewExpr().AddTerm(m.Z[c], 1).AddTerm(m.Z[c+1], -1), milp.GreaterEqual, 0)
		}
	}

	for i, g := range residual {
		p.AddConstraint(fmt.Sprintf("conserve_%s", g.Name), milp.Sum(m.X[i]...), milp.Equal, float64(g.Size))
		for c := 0; c < candidates; c++ {
			p.AddConstraint(fmt.Sprintf("link_%s_%d", g.Name, c),
				milp.NewExpr().AddTerm(m.X[i][c], 1).AddTerm(m.Y[i][c], -capacity), milp.LessEqual, 0)
		}
		rule, ok := policyRules[g.Policy()]
		if !ok {
			return nil, fmt.Errorf("%w: group %q has unsupported policy %s", parade.ErrConfiguration, g.Name, g.Policy())
		}
		if err := rule.apply(m, i); err != nil {
			return nil, err
		}
	}

	if target >= 0 {
		p.AddConstraint("fixed_count", milp.Sum(m.Z...), milp.Equal, float64(target))
	}

	objective := milp.NewExpr()
	for c := 0; c < candidates; c++ {
		// alpha * (capacity*z - total) + beta * sum_i y
		objective.AddTerm(m.Z[c], params.Alpha*capacity)
		objective.AddExpr(m.totals[c], -params.Alpha)
		for i := range residual {
			objective.AddTerm(m.Y[i][c], params.Beta)
		}
	}
	p.Minimize(objective)

	return m, nil
}

type freeRule struct{}

func (freeRule) apply(*Model, int) error { return nil }

// chunkedRule keeps the group in exactly one contingent whose headcount is a
// whole number of seat rows.
type chunkedRule struct{}

func (chunkedRule) apply(m *Model, i int) error {
	g := m.Groups[i]
	params := m.params
	if g.Size >= params.Capacity {
		return fmt.Errorf("%w: group %q of size %d must be chunked before modelling (capacity %d)",
			parade.ErrConfiguration, g.Name, g.Size, params.Capacity)
	}
	p := m.Program
	capacity := float64(params.Capacity)
	row := float64(params.RowSize)

	p.AddConstraint(fmt.Sprintf("single_%s", g.Name), milp.Sum(m.Y[i]...), milp.Equal, 1)

	aux := make([]milp.Var, m.Candidates)
	for c := 0; c < m.Candidates; c++ {
		aux[c] = p.NewIntVar(fmt.Sprintf("m_%d_%d", i, c), 0, params.Capacity/params.RowSize)
		// |total_c - row*m| <= capacity*(1-y)
		p.AddConstraint(fmt.Sprintf("rows_upper_%s_%d", g.Name, c),
			milp.NewExpr().AddExpr(m.totals[c], 1).AddTerm(aux[c], -row).AddTerm(m.Y[i][c], capacity),
			milp.LessEqual, capacity)
		p.AddConstraint(fmt.Sprintf("rows_lower_%s_%d", g.Name, c),
			milp.NewExpr().AddExpr(m.totals[c], 1).AddTerm(aux[c], -row).AddTerm(m.Y[i][c], -capacity),
			milp.GreaterEqual, -capacity)
	}
	m.M[i] = aux
	return nil
}
