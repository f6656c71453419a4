package selector

import (
	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
)

// EntitySelector selects the live entities of a class.
type EntitySelector struct {
	phaseState
	class *domain.Class
	order SelectionOrder
}

func NewEntitySelector(class *domain.Class, order SelectionOrder) *EntitySelector {
	return &EntitySelector{class: class, order: order}
}

func (s *EntitySelector) CacheType() CacheType { return JustInTime }
func (s *EntitySelector) IsCountable() bool    { return true }
func (s *EntitySelector) IsNeverEnding() bool  { return s.order == Random }

func (s *EntitySelector) Size() int64 {
	return int64(len(s.solution().ObjectsOf(s.class)))
}

func (s *EntitySelector) Iterator() Iterator[domain.ID] {
	items := s.solution().ObjectsOf(s.class)
	if s.order == Random {
		return randomIterator(items, s.random())
	}
	return SliceIterator(items)
}

// ValueSelector selects the value range of a variable. For a list variable
// the value range is its element class.
type ValueSelector struct {
	phaseState
	variable *domain.Variable
	order    SelectionOrder
}

func NewValueSelector(v *domain.Variable, order SelectionOrder) *ValueSelector {
	return &ValueSelector{variable: v, order: order}
}

func (s *ValueSelector) CacheType() CacheType { return JustInTime }
func (s *ValueSelector) IsCountable() bool    { return true }
func (s *ValueSelector) IsNeverEnding() bool  { return s.order == Random }

func (s *ValueSelector) Size() int64 {
	return int64(len(s.solution().ValueRange(s.variable)))
}

func (s *ValueSelector) Iterator() Iterator[domain.ID] {
	items := s.solution().ValueRange(s.variable)
	if s.order == Random {
		return randomIterator(items, s.random())
	}
	return SliceIterator(items)
}

// SizeBounds limits the size of pillars, sub-chains and sub-lists. A zero
// Max means unbounded.
type SizeBounds struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Validate rejects a minimum below one and a maximum below the minimum.
func (b SizeBounds) Validate(component string) error {
	if b.Min < 1 {
		return optimization.ConfigError(ErrIllegalSize, component, "Validate",
			"minimum size %d must be at least 1", b.Min)
	}
	if b.Max != 0 && b.Max < b.Min {
		return optimization.ConfigError(ErrIllegalSize, component, "Validate",
			"maximum size %d is below minimum size %d", b.Max, b.Min)
	}
	return nil
}

func (b SizeBounds) upper(n int) int {
	if b.Max == 0 || b.Max > n {
		return n
	}
	return b.Max
}

// PillarSelector selects pillars: groups of entities sharing the same value
// of a basic variable. In random order with sub-pillars enabled it selects a
// random subset of a pillar whose size lies within the bounds.
type PillarSelector struct {
	phaseState
	variable   *domain.Variable
	order      SelectionOrder
	subPillars bool
	bounds     SizeBounds
}

// NewPillarSelector validates the sub-pillar bounds. Bounds are ignored when
// sub-pillars are disabled.
func NewPillarSelector(v *domain.Variable, order SelectionOrder, subPillars bool, bounds SizeBounds) (*PillarSelector, error) {
	if subPillars {
		if err := bounds.Validate("PillarSelector"); err != nil {
			return nil, err
		}
	}
	return &PillarSelector{variable: v, order: order, subPillars: subPillars, bounds: bounds}, nil
}

func (s *PillarSelector) CacheType() CacheType { return JustInTime }
func (s *PillarSelector) IsCountable() bool    { return true }
func (s *PillarSelector) IsNeverEnding() bool  { return s.order == Random }
func (s *PillarSelector) Size() int64          { return int64(len(s.pillars())) }

// pillars groups entities by value in order of first appearance. Pillars
// smaller than the minimum sub-pillar size are dropped.
func (s *PillarSelector) pillars() [][]domain.ID {
	sol := s.solution()
	index := make(map[domain.ID]int)
	var out [][]domain.ID
	for _, e := range sol.ObjectsOf(s.variable.Class) {
		value := sol.Ref(e, s.variable)
		if value == domain.None {
			continue
		}
		i, ok := index[value]
		if !ok {
			i = len(out)
			index[value] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], e)
	}
	if !s.subPillars {
		return out
	}
	kept := out[:0]
	for _, p := range out {
		if len(p) >= s.bounds.Min {
			kept = append(kept, p)
		}
	}
	return kept
}

func (s *PillarSelector) Iterator() Iterator[[]domain.ID] {
	pillars := s.pillars()
	if s.order != Random {
		return SliceIterator(pillars)
	}
	rng := s.random()
	return IteratorFunc[[]domain.ID](func() ([]domain.ID, bool) {
		if len(pillars) == 0 {
			return nil, false
		}
		p := pillars[rng.Intn(len(pillars))]
		if !s.subPillars {
			return p, true
		}
		hi := s.bounds.upper(len(p))
		size := s.bounds.Min + rng.Intn(hi-s.bounds.Min+1)
		if size == len(p) {
			return p, true
		}
		picked := rng.Perm(len(p))[:size]
		sub := make([]domain.ID, 0, size)
		for i := range p {
			for _, j := range picked {
				if i == j {
					sub = append(sub, p[i])
					break
				}
			}
		}
		return sub, true
	})
}

// SubChainSelector selects runs of consecutive entities of the chains of a
// chained variable, in chain order.
type SubChainSelector struct {
	phaseState
	variable *domain.Variable
	order    SelectionOrder
	bounds   SizeBounds
}

func NewSubChainSelector(v *domain.Variable, order SelectionOrder, bounds SizeBounds) (*SubChainSelector, error) {
	if err := bounds.Validate("SubChainSelector"); err != nil {
		return nil, err
	}
	return &SubChainSelector{variable: v, order: order, bounds: bounds}, nil
}

func (s *SubChainSelector) CacheType() CacheType { return JustInTime }
func (s *SubChainSelector) IsCountable() bool    { return true }
func (s *SubChainSelector) IsNeverEnding() bool  { return s.order == Random }
func (s *SubChainSelector) Size() int64          { return int64(len(s.subChains())) }

// MaxCacheType is StepCache: a sub-chain stops being contiguous as soon as
// a step relinks its chain.
func (s *SubChainSelector) MaxCacheType() CacheType { return StepCache }

func (s *SubChainSelector) subChains() [][]domain.ID {
	sol := s.solution()
	sd := s.director()
	var out [][]domain.ID
	for _, anchor := range sol.ValueRange(s.variable) {
		if !sol.IsAnchor(s.variable, anchor) {
			continue
		}
		chain := sd.ChainFrom(s.variable, anchor)
		for from := range chain {
			for n := s.bounds.Min; from+n <= len(chain) && n <= s.bounds.upper(len(chain)); n++ {
				out = append(out, chain[from:from+n:from+n])
			}
		}
	}
	return out
}

func (s *SubChainSelector) Iterator() Iterator[[]domain.ID] {
	items := s.subChains()
	if s.order == Random {
		return randomIterator(items, s.random())
	}
	return SliceIterator(items)
}
