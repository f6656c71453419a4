package selector

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/director"
	"github.com/copyleftdev/tundr-planner/internal/optimization/scope"
)

// validateCache checks that a child can be cached at the requested scope.
func validateCache[T any](component string, child Selector[T], cacheType CacheType) error {
	if !cacheType.IsCached() {
		return optimization.ConfigError(ErrIllegalCacheType, component, "New",
			"cache type %s does not cache", cacheType)
	}
	if cacheType < child.CacheType() {
		return optimization.ConfigError(ErrIllegalCacheType, component, "New",
			"cache type %s is finer than the child's cache type %s", cacheType, child.CacheType())
	}
	if child.IsNeverEnding() {
		return optimization.ConfigError(ErrIllegalCacheType, component, "New",
			"a never-ending child cannot be cached")
	}
	if limit := maxCacheType(child); cacheType > limit {
		return optimization.ConfigError(ErrIllegalCacheType, component, "New",
			"cache type %s outlives the child's items, which stay valid up to %s", cacheType, limit)
	}
	return nil
}

// CachingSelector materializes its child's items once per cache scope and
// serves them until the scope ends.
type CachingSelector[T any] struct {
	lifecycle
	child     Selector[T]
	cacheType CacheType
	order     SelectionOrder
	items     []T
	cached    bool
	// onRefresh post-processes freshly cached items.
	onRefresh func(items []T) error
}

// NewCachingSelector caches child at cacheType. In random order the cached
// items are drawn uniformly forever.
func NewCachingSelector[T any](child Selector[T], cacheType CacheType, order SelectionOrder) (*CachingSelector[T], error) {
	if err := validateCache("CachingSelector", child, cacheType); err != nil {
		return nil, err
	}
	return newCaching(child, cacheType, order), nil
}

func newCaching[T any](child Selector[T], cacheType CacheType, order SelectionOrder) *CachingSelector[T] {
	s := &CachingSelector[T]{child: child, cacheType: cacheType, order: order}
	s.children = scope.Listeners{child}
	return s
}

func (s *CachingSelector[T]) refresh() error {
	s.items = Collect(s.child.Iterator(), -1)
	s.cached = true
	if s.onRefresh != nil {
		return s.onRefresh(s.items)
	}
	return nil
}

func (s *CachingSelector[T]) dispose() {
	s.items = nil
	s.cached = false
}

// PhaseStarted builds solver and phase caches. A solver cache is built at
// the first phase because leaf selectors need a working solution.
func (s *CachingSelector[T]) PhaseStarted(p *scope.Phase) error {
	if err := s.lifecycle.PhaseStarted(p); err != nil {
		return err
	}
	if s.cacheType == PhaseCache || (s.cacheType == SolverCache && !s.cached) {
		return s.refresh()
	}
	return nil
}

func (s *CachingSelector[T]) StepStarted(st *scope.Step) error {
	if err := s.lifecycle.StepStarted(st); err != nil {
		return err
	}
	if s.cacheType == StepCache {
		return s.refresh()
	}
	return nil
}

func (s *CachingSelector[T]) StepEnded(st *scope.Step) {
	if s.cacheType == StepCache {
		s.dispose()
	}
	s.lifecycle.StepEnded(st)
}

func (s *CachingSelector[T]) PhaseEnded(p *scope.Phase) {
	if s.cacheType == PhaseCache {
		s.dispose()
	}
	s.lifecycle.PhaseEnded(p)
}

func (s *CachingSelector[T]) SolvingEnded(sv *scope.Solver) {
	if s.cacheType == SolverCache {
		s.dispose()
	}
	s.lifecycle.SolvingEnded(sv)
}

func (s *CachingSelector[T]) CacheType() CacheType { return s.cacheType }
func (s *CachingSelector[T]) IsCountable() bool    { return true }
func (s *CachingSelector[T]) IsNeverEnding() bool  { return s.order == Random }
func (s *CachingSelector[T]) Size() int64          { return int64(len(s.items)) }

func (s *CachingSelector[T]) MaxCacheType() CacheType { return maxCacheType(s.child) }

func (s *CachingSelector[T]) Iterator() Iterator[T] {
	if s.order == Random {
		return randomIterator(s.items, s.random())
	}
	return SliceIterator(s.items)
}

// ShufflingSelector caches its child and permutes the cached items once per
// refresh. Every iterator within one cache scope sees the same order.
type ShufflingSelector[T any] struct {
	CachingSelector[T]
}

func NewShufflingSelector[T any](child Selector[T], cacheType CacheType) (*ShufflingSelector[T], error) {
	if err := validateCache("ShufflingSelector", child, cacheType); err != nil {
		return nil, err
	}
	s := &ShufflingSelector[T]{CachingSelector: *newCaching(child, cacheType, Original)}
	s.onRefresh = func(items []T) error {
		rng := s.random()
		rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		return nil
	}
	return s, nil
}

// WeightFunc assigns a selection weight to an item. Weights must be finite
// and non-negative; items weighing zero are never selected.
type WeightFunc[T any] func(sd *director.ScoreDirector, item T) float64

// ProbabilityWeightedSelector caches its child and draws items forever with
// probability proportional to their weight.
type ProbabilityWeightedSelector[T any] struct {
	CachingSelector[T]
	weight     WeightFunc[T]
	selectable []T
	cumulative []float64
}

func NewProbabilityWeightedSelector[T any](child Selector[T], cacheType CacheType, weight WeightFunc[T]) (*ProbabilityWeightedSelector[T], error) {
	if err := validateCache("ProbabilityWeightedSelector", child, cacheType); err != nil {
		return nil, err
	}
	s := &ProbabilityWeightedSelector[T]{CachingSelector: *newCaching(child, cacheType, Random), weight: weight}
	s.onRefresh = s.index
	return s, nil
}

// index builds the cumulative weight table over the items with a positive
// weight.
func (s *ProbabilityWeightedSelector[T]) index(items []T) error {
	sd := s.director()
	s.selectable = s.selectable[:0]
	weights := make([]float64, 0, len(items))
	for _, item := range items {
		w := s.weight(sd, item)
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return optimization.ConfigError(ErrIllegalWeight, "ProbabilityWeightedSelector", "index",
				"weight %v of %v must be finite and non-negative", w, item)
		}
		if w == 0 {
			continue
		}
		s.selectable = append(s.selectable, item)
		weights = append(weights, w)
	}
	s.cumulative = floats.CumSum(make([]float64, len(weights)), weights)
	for i := 1; i < len(s.cumulative); i++ {
		if s.cumulative[i] <= s.cumulative[i-1] {
			return optimization.ConfigError(ErrIllegalWeight, "ProbabilityWeightedSelector", "index",
				"weight of %v is too small to change the cumulative weight %v", s.selectable[i], s.cumulative[i-1])
		}
	}
	return nil
}

func (s *ProbabilityWeightedSelector[T]) dispose() {
	s.selectable = nil
	s.cumulative = nil
}

func (s *ProbabilityWeightedSelector[T]) StepEnded(st *scope.Step) {
	if s.cacheType == StepCache {
		s.dispose()
	}
	s.CachingSelector.StepEnded(st)
}

func (s *ProbabilityWeightedSelector[T]) PhaseEnded(p *scope.Phase) {
	if s.cacheType == PhaseCache {
		s.dispose()
	}
	s.CachingSelector.PhaseEnded(p)
}

func (s *ProbabilityWeightedSelector[T]) SolvingEnded(sv *scope.Solver) {
	if s.cacheType == SolverCache {
		s.dispose()
	}
	s.CachingSelector.SolvingEnded(sv)
}

func (s *ProbabilityWeightedSelector[T]) Size() int64 { return int64(len(s.selectable)) }

func (s *ProbabilityWeightedSelector[T]) Iterator() Iterator[T] {
	rng := s.random()
	items, cumulative := s.selectable, s.cumulative
	return IteratorFunc[T](func() (T, bool) {
		if len(items) == 0 {
			var zero T
			return zero, false
		}
		r := rng.Float64() * cumulative[len(cumulative)-1]
		i := sort.Search(len(cumulative), func(i int) bool { return cumulative[i] > r })
		if i == len(items) {
			i--
		}
		return items[i], true
	})
}

// Filter accepts or rejects an item against the working solution.
type Filter[T any] func(sd *director.ScoreDirector, item T) bool

// FilteringSelector hides the child's items rejected by a filter. Rejected
// items are invisible to callers: they are neither returned nor counted.
type FilteringSelector[T any] struct {
	lifecycle
	child  Selector[T]
	filter Filter[T]
}

func NewFilteringSelector[T any](child Selector[T], filter Filter[T]) *FilteringSelector[T] {
	s := &FilteringSelector[T]{child: child, filter: filter}
	s.children = scope.Listeners{child}
	return s
}

func (s *FilteringSelector[T]) CacheType() CacheType { return s.child.CacheType() }
func (s *FilteringSelector[T]) IsCountable() bool    { return s.child.IsCountable() }
func (s *FilteringSelector[T]) IsNeverEnding() bool  { return s.child.IsNeverEnding() }

func (s *FilteringSelector[T]) MaxCacheType() CacheType { return maxCacheType(s.child) }

// Size is an upper bound: the child's size before filtering.
func (s *FilteringSelector[T]) Size() int64 { return s.child.Size() }

// bailOutSize is how many consecutive rejections a never-ending iterator
// tolerates before it reports that it ran out.
func (s *FilteringSelector[T]) bailOutSize() int64 {
	if s.child.IsCountable() {
		return 10 * s.child.Size()
	}
	return 1000
}

func (s *FilteringSelector[T]) Iterator() Iterator[T] {
	it := s.child.Iterator()
	sd := s.director()
	bailOut := int64(-1)
	if s.child.IsNeverEnding() {
		bailOut = s.bailOutSize()
	}
	return IteratorFunc[T](func() (T, bool) {
		for rejected := int64(0); bailOut < 0 || rejected <= bailOut; rejected++ {
			item, ok := it.Next()
			if !ok {
				break
			}
			if s.filter(sd, item) {
				return item, true
			}
		}
		var zero T
		return zero, false
	})
}
