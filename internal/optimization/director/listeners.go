package director

import (
	"sort"

	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
)

// inverseCollectionUpdater keeps, on each value, the sorted IDs of the
// entities whose basic variable points at it.
type inverseCollectionUpdater struct {
	shadow, source *domain.Variable
}

func (u *inverseCollectionUpdater) before(sd *ScoreDirector, n notification) {
	value := sd.sol.Ref(n.obj, u.source)
	if !u.applies(sd, value) {
		return
	}
	seq := sd.sol.Seq(value, u.shadow)
	i := sort.Search(len(seq), func(i int) bool { return seq[i] >= n.obj })
	if i == len(seq) || seq[i] != n.obj {
		return
	}
	out := make([]domain.ID, 0, len(seq)-1)
	out = append(out, seq[:i]...)
	out = append(out, seq[i+1:]...)
	sd.setShadowSeq(value, u.shadow, out)
}

func (u *inverseCollectionUpdater) after(sd *ScoreDirector, n notification) {
	if !sd.sol.Contains(n.obj) {
		return
	}
	value := sd.sol.Ref(n.obj, u.source)
	if !u.applies(sd, value) {
		return
	}
	seq := sd.sol.Seq(value, u.shadow)
	i := sort.Search(len(seq), func(i int) bool { return seq[i] >= n.obj })
	if i < len(seq) && seq[i] == n.obj {
		return
	}
	out := make([]domain.ID, 0, len(seq)+1)
	out = append(out, seq[:i]...)
	out = append(out, n.obj)
	out = append(out, seq[i:]...)
	sd.setShadowSeq(value, u.shadow, out)
}

func (u *inverseCollectionUpdater) applies(sd *ScoreDirector, value domain.ID) bool {
	o := sd.sol.Object(value)
	return o != nil && o.Class == u.shadow.Class
}

// inverseSingletonUpdater keeps, on each chain value, the entity directly
// after it.
type inverseSingletonUpdater struct {
	shadow, source *domain.Variable
}

func (u *inverseSingletonUpdater) before(sd *ScoreDirector, n notification) {
	value := sd.sol.Ref(n.obj, u.source)
	if !u.applies(sd, value) || sd.sol.Ref(value, u.shadow) != n.obj {
		return
	}
	sd.setShadowRef(value, u.shadow, domain.None)
}

func (u *inverseSingletonUpdater) after(sd *ScoreDirector, n notification) {
	if !sd.sol.Contains(n.obj) {
		return
	}
	value := sd.sol.Ref(n.obj, u.source)
	if !u.applies(sd, value) {
		return
	}
	sd.setShadowRef(value, u.shadow, n.obj)
}

func (u *inverseSingletonUpdater) applies(sd *ScoreDirector, value domain.ID) bool {
	o := sd.sol.Object(value)
	return o != nil && o.Class == u.shadow.Class
}

// anchorUpdater sets an entity's anchor and pushes it down the chain until it
// reaches an entity that already has it.
type anchorUpdater struct {
	shadow, source *domain.Variable
}

func (u *anchorUpdater) before(*ScoreDirector, notification) {}

func (u *anchorUpdater) after(sd *ScoreDirector, n notification) {
	if !sd.sol.Contains(n.obj) {
		return
	}
	anchor := walkToAnchor(sd.sol, u.source, sd.sol.Ref(n.obj, u.source))
	sd.setShadowRef(n.obj, u.shadow, anchor)
	for e := sd.NextInChain(u.source, n.obj); e != domain.None; e = sd.NextInChain(u.source, e) {
		if !sd.setShadowRef(e, u.shadow, anchor) {
			break
		}
	}
}

// listIndexUpdater recomputes element indexes from the start of the changed
// range, continuing past its end only while indexes keep changing.
type listIndexUpdater struct {
	shadow, source *domain.Variable
}

func (u *listIndexUpdater) before(*ScoreDirector, notification) {}

func (u *listIndexUpdater) after(sd *ScoreDirector, n notification) {
	switch n.kind {
	case elementUnassigned:
		if _, _, ok := sd.ElementLocation(u.source, n.obj); !ok && sd.sol.Contains(n.obj) {
			sd.setShadowNum(n.obj, u.shadow, -1)
		}
	case listChanged:
		if !sd.sol.Contains(n.obj) {
			return
		}
		seq := sd.sol.Seq(n.obj, u.source)
		for i := n.from; i < len(seq); i++ {
			if !sd.setShadowNum(seq[i], u.shadow, int64(i)) && i >= n.to {
				break
			}
		}
	}
}

// listOwnerUpdater sets the owning entity of every element in the changed range.
type listOwnerUpdater struct {
	shadow, source *domain.Variable
}

func (u *listOwnerUpdater) before(*ScoreDirector, notification) {}

func (u *listOwnerUpdater) after(sd *ScoreDirector, n notification) {
	switch n.kind {
	case elementUnassigned:
		if _, _, ok := sd.ElementLocation(u.source, n.obj); !ok && sd.sol.Contains(n.obj) {
			sd.setShadowRef(n.obj, u.shadow, domain.None)
		}
	case listChanged:
		if !sd.sol.Contains(n.obj) {
			return
		}
		seq := sd.sol.Seq(n.obj, u.source)
		for i := n.from; i < len(seq); i++ {
			if !sd.setShadowRef(seq[i], u.shadow, n.obj) && i >= n.to {
				break
			}
		}
	}
}

// listNeighbourUpdater maintains the previous (offset -1) or next (offset 1)
// element shadow. The element just before the changed range is revisited
// because its next element may have changed.
type listNeighbourUpdater struct {
	shadow, source *domain.Variable
	offset         int
}

func (u *listNeighbourUpdater) before(*ScoreDirector, notification) {}

func (u *listNeighbourUpdater) after(sd *ScoreDirector, n notification) {
	switch n.kind {
	case elementUnassigned:
		if _, _, ok := sd.ElementLocation(u.source, n.obj); !ok && sd.sol.Contains(n.obj) {
			sd.setShadowRef(n.obj, u.shadow, domain.None)
		}
	case listChanged:
		if !sd.sol.Contains(n.obj) {
			return
		}
		seq := sd.sol.Seq(n.obj, u.source)
		start := n.from - 1
		if start < 0 {
			start = 0
		}
		for i := start; i < len(seq); i++ {
			changed := sd.setShadowRef(seq[i], u.shadow, neighbour(seq, i+u.offset))
			if !changed && i >= n.to && i >= n.from {
				break
			}
		}
	}
}

func neighbour(seq []domain.ID, i int) domain.ID {
	if i < 0 || i >= len(seq) {
		return domain.None
	}
	return seq[i]
}

// customUpdater forwards to a user supplied VariableListener.
type customUpdater struct {
	listener VariableListener
}

func (u *customUpdater) before(sd *ScoreDirector, n notification) {
	if sd.sol.Contains(n.obj) {
		u.listener.BeforeVariableChanged(sd, n.obj)
	}
}

func (u *customUpdater) after(sd *ScoreDirector, n notification) {
	if sd.sol.Contains(n.obj) {
		u.listener.AfterVariableChanged(sd, n.obj)
	}
}
