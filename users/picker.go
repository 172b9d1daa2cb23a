package users

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// Picker selects behaviors by relative weight. It holds no per-draw state,
// so consecutive picks are independent.
type Picker struct {
	behaviors  []Behavior
	cumulative []int
	total      int
}

// NewPicker drops zero-weight behaviors and fails if nothing remains.
func NewPicker(behaviors []Behavior) (*Picker, error) {
	p := &Picker{}
	for _, b := range behaviors {
		if b.Weight < 0 {
			return nil, fmt.Errorf("users: behavior %q has negative weight %d", b.Name, b.Weight)
		}
		if b.Weight == 0 {
			continue
		}
		p.total += b.Weight
		p.behaviors = append(p.behaviors, b)
		p.cumulative = append(p.cumulative, p.total)
	}
	if p.total == 0 {
		return nil, fmt.Errorf("users: no behavior with a positive weight")
	}
	return p, nil
}

// Pick draws one behavior using r.
func (p *Picker) Pick(r *rand.Rand) Behavior {
	n := r.IntN(p.total)
	i := sort.SearchInts(p.cumulative, n+1)
	return p.behaviors[i]
}

// Behaviors returns the selectable behaviors in menu order.
func (p *Picker) Behaviors() []Behavior {
	return p.behaviors
}
