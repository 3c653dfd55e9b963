package parade

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupPolicy(t *testing.T) {
	assert.Equal(t, PolicyFree, Group{Name: "A", Size: 10}.Policy())
	assert.Equal(t, PolicyChunked, Group{Name: "B", Size: 10, AvoidSplit: true}.Policy())
	assert.Equal(t, PolicyFree, Group{Name: "C", Size: 0, AvoidSplit: true}.Policy())
	assert.Equal(t, "chunked", PolicyChunked.String())
}

func TestContingentDerivedValues(t *testing.T) {
	c := NewContingent(Assignment{Group: "IDTI", Count: 21}, Assignment{Group: "SI", Count: 64})

	assert.Equal(t, 85, c.Total())
	assert.Equal(t, 2, c.GroupCount())
	assert.Equal(t, 64, c.Count("SI"))
	assert.Equal(t, 0, c.Count("X"))
	assert.Equal(t, []string{"IDTI", "SI"}, c.Labels())
	assert.Equal(t, "21 IDTI, 64 SI", c.Composition())
	assert.Equal(t, "IDTI:21, SI:64", c.AssignmentString())
}

func TestAllocationTotals(t *testing.T) {
	alloc := &Allocation{Contingents: []Contingent{
		NewContingent(Assignment{Group: "A", Count: 90}),
		NewContingent(Assignment{Group: "A", Count: 37}, Assignment{Group: "B", Count: 13}),
	}}

	assert.Equal(t, 140, alloc.TotalPeople())
	assert.Equal(t, map[string]int{"A": 127, "B": 13}, alloc.GroupTotals())
}
