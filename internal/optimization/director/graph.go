package director

import (
	"sort"
	"strings"

	"github.com/copyleftdev/tundr-planner/internal/optimization"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
)

type notificationKind int

const (
	variableChanged notificationKind = iota
	listChanged
	elementUnassigned
)

// notification is one queued call of a listener's after callback.
type notification struct {
	kind     notificationKind
	obj      domain.ID
	from, to int
}

// updater maintains one shadow variable.
type updater interface {
	before(sd *ScoreDirector, n notification)
	after(sd *ScoreDirector, n notification)
}

// node is one shadow variable in the listener graph together with its queue
// of pending after callbacks. Variable notifications are deduplicated per
// object until the next flush; list notifications are kept in order.
type node struct {
	shadow  *domain.Variable
	order   int
	impl    updater
	pending []notification
	queued  map[domain.ID]struct{}
}

func (n *node) enqueue(sd *ScoreDirector, notif notification) {
	if notif.kind == variableChanged {
		if _, ok := n.queued[notif.obj]; ok {
			return
		}
		n.queued[notif.obj] = struct{}{}
	}
	n.pending = append(n.pending, notif)
	n.impl.before(sd, notif)
}

// enqueueAfter queues an after callback without a matching before callback,
// for objects that had no previous state to retract.
func (n *node) enqueueAfter(notif notification) {
	if notif.kind == variableChanged {
		if _, ok := n.queued[notif.obj]; ok {
			return
		}
		n.queued[notif.obj] = struct{}{}
	}
	n.pending = append(n.pending, notif)
}

func (n *node) drain() []notification {
	batch := n.pending
	n.pending = nil
	if len(n.queued) > 0 {
		n.queued = make(map[domain.ID]struct{})
	}
	return batch
}

// buildGraph orders the shadow variables so every variable comes after all of
// its sources. It is Kahn's algorithm with ties broken by declaration order.
func buildGraph(model *domain.Model, custom map[*domain.Variable]VariableListener) ([]*node, map[*domain.Variable][]*node, error) {
	shadows := model.ShadowVariables()
	indegree := make(map[*domain.Variable]int, len(shadows))
	dependents := make(map[*domain.Variable][]*domain.Variable)
	for _, s := range shadows {
		indegree[s] = 0
	}
	for _, s := range shadows {
		for _, src := range s.Sources {
			if src.IsGenuine() {
				continue
			}
			if _, ok := indegree[src]; !ok {
				return nil, nil, optimization.NewErrorf("shadow %s has unknown source %s", s, src).
					WithComponent("director").WithOperation("New")
			}
			indegree[s]++
			dependents[src] = append(dependents[src], s)
		}
	}

	var ready []*domain.Variable
	for _, s := range shadows {
		if indegree[s] == 0 {
			ready = append(ready, s)
		}
	}

	ordered := make([]*domain.Variable, 0, len(shadows))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].Ordinal() < ready[j].Ordinal() })
		s := ready[0]
		ready = ready[1:]
		ordered = append(ordered, s)
		for _, d := range dependents[s] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(ordered) != len(shadows) {
		var stuck []string
		for _, s := range shadows {
			if indegree[s] > 0 {
				stuck = append(stuck, s.String())
			}
		}
		return nil, nil, optimization.ConfigError(ErrCyclicShadowSources, "director", "New",
			"shadow variables %s depend on each other", strings.Join(stuck, ", "))
	}

	nodes := make([]*node, len(ordered))
	consumers := make(map[*domain.Variable][]*node)
	for i, s := range ordered {
		impl, err := newUpdater(s, custom)
		if err != nil {
			return nil, nil, err
		}
		n := &node{shadow: s, order: i, impl: impl, queued: make(map[domain.ID]struct{})}
		nodes[i] = n
		for _, src := range s.Sources {
			consumers[src] = append(consumers[src], n)
		}
	}
	return nodes, consumers, nil
}

func newUpdater(s *domain.Variable, custom map[*domain.Variable]VariableListener) (updater, error) {
	src := s.Sources[0]
	switch s.Kind {
	case domain.InverseRelation:
		if src.Kind == domain.Basic {
			return &inverseCollectionUpdater{shadow: s, source: src}, nil
		}
		return &inverseSingletonUpdater{shadow: s, source: src}, nil
	case domain.Anchor:
		return &anchorUpdater{shadow: s, source: src}, nil
	case domain.ListIndex:
		return &listIndexUpdater{shadow: s, source: src}, nil
	case domain.ListOwner:
		return &listOwnerUpdater{shadow: s, source: src}, nil
	case domain.PreviousElement:
		return &listNeighbourUpdater{shadow: s, source: src, offset: -1}, nil
	case domain.NextElement:
		return &listNeighbourUpdater{shadow: s, source: src, offset: 1}, nil
	case domain.Custom:
		l, ok := custom[s]
		if !ok {
			return nil, optimization.NewErrorf("custom shadow %s has no listener", s).
				WithComponent("director").WithOperation("New")
		}
		return &customUpdater{listener: l}, nil
	}
	return nil, optimization.NewErrorf("variable %s of kind %s is not a shadow", s, s.Kind).
		WithComponent("director").WithOperation("New")
}
