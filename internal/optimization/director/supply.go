package director

import (
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
)

// chainSupply tracks, for a chained variable, which entities currently point
// at each value. Moves relink several entities one at a time, so a value may
// briefly have two trailing entities; the supply records all of them.
type chainSupply struct {
	trailing map[domain.ID][]domain.ID
}

func newChainSupply() *chainSupply {
	return &chainSupply{trailing: make(map[domain.ID][]domain.ID)}
}

func (c *chainSupply) rebuild(sol *domain.Solution, v *domain.Variable) {
	c.trailing = make(map[domain.ID][]domain.ID)
	for _, id := range sol.ObjectsOf(v.Class) {
		c.link(id, sol.Ref(id, v))
	}
}

func (c *chainSupply) link(entity, value domain.ID) {
	if value == domain.None {
		return
	}
	c.trailing[value] = append(c.trailing[value], entity)
}

func (c *chainSupply) unlink(entity, value domain.ID) {
	list := c.trailing[value]
	for i, e := range list {
		if e == entity {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(c.trailing, value)
		return
	}
	c.trailing[value] = list
}

func (c *chainSupply) next(value domain.ID) domain.ID {
	if list := c.trailing[value]; len(list) > 0 {
		return list[0]
	}
	return domain.None
}

// NextInChain returns the entity whose chained variable points at value, or
// None when value is the tail of its chain.
func (sd *ScoreDirector) NextInChain(v *domain.Variable, value domain.ID) domain.ID {
	return sd.chains[v].next(value)
}

// ChainFrom returns the entities that follow start in its chain, in order.
// Start itself is not included.
func (sd *ScoreDirector) ChainFrom(v *domain.Variable, start domain.ID) []domain.ID {
	var out []domain.ID
	for e := sd.NextInChain(v, start); e != domain.None; e = sd.NextInChain(v, e) {
		out = append(out, e)
		if len(out) > sd.sol.Len() {
			break
		}
	}
	return out
}

// AnchorOf walks back from an entity to the anchor of its chain. It returns
// None for an entity that is not connected to any anchor.
func (sd *ScoreDirector) AnchorOf(v *domain.Variable, entity domain.ID) domain.ID {
	return walkToAnchor(sd.sol, v, entity)
}

func walkToAnchor(sol *domain.Solution, v *domain.Variable, entity domain.ID) domain.ID {
	cur := entity
	for steps := 0; steps <= sol.Len(); steps++ {
		if cur == domain.None {
			return domain.None
		}
		if sol.IsAnchor(v, cur) {
			return cur
		}
		cur = sol.Ref(cur, v)
	}
	return domain.None
}

type location struct {
	entity domain.ID
	index  int
}

// listSupply tracks where every element of a list variable currently sits.
type listSupply struct {
	where map[domain.ID]location
}

func newListSupply() *listSupply {
	return &listSupply{where: make(map[domain.ID]location)}
}

func (l *listSupply) rebuild(sol *domain.Solution, v *domain.Variable) {
	l.where = make(map[domain.ID]location)
	for _, id := range sol.ObjectsOf(v.Class) {
		l.index(sol, id, v, 0)
	}
}

// forget drops the elements in [from, to) of an entity's list.
func (l *listSupply) forget(sol *domain.Solution, entity domain.ID, v *domain.Variable, from, to int) {
	seq := sol.Seq(entity, v)
	for i := from; i < to && i < len(seq); i++ {
		if loc, ok := l.where[seq[i]]; ok && loc.entity == entity {
			delete(l.where, seq[i])
		}
	}
}

// index records the positions of an entity's elements from index from on.
func (l *listSupply) index(sol *domain.Solution, entity domain.ID, v *domain.Variable, from int) {
	seq := sol.Seq(entity, v)
	if from < 0 {
		from = 0
	}
	for i := from; i < len(seq); i++ {
		l.where[seq[i]] = location{entity: entity, index: i}
	}
}

func (l *listSupply) locate(element domain.ID) (domain.ID, int, bool) {
	loc, ok := l.where[element]
	if !ok {
		return domain.None, -1, false
	}
	return loc.entity, loc.index, true
}

// ElementLocation returns the entity and index holding element in list
// variable v, or ok false if it is unassigned.
func (sd *ScoreDirector) ElementLocation(v *domain.Variable, element domain.ID) (entity domain.ID, index int, ok bool) {
	return sd.lists[v].locate(element)
}

// UnassignedElements returns the elements of v's element class that sit in no
// list, in arena order.
func (sd *ScoreDirector) UnassignedElements(v *domain.Variable) []domain.ID {
	var out []domain.ID
	for _, e := range sd.sol.ObjectsOf(v.ElementClass()) {
		if _, _, ok := sd.lists[v].locate(e); !ok {
			out = append(out, e)
		}
	}
	return out
}

// ListInsert inserts elements at index of an entity's list. It must be
// bracketed by Before/AfterListVariableChanged.
func (sd *ScoreDirector) ListInsert(entity domain.ID, v *domain.Variable, index int, elements ...domain.ID) {
	seq := sd.sol.Seq(entity, v)
	out := make([]domain.ID, 0, len(seq)+len(elements))
	out = append(out, seq[:index]...)
	out = append(out, elements...)
	out = append(out, seq[index:]...)
	sd.sol.SetSeq(entity, v, out)
}

// ListRemove removes count elements starting at index and returns them. It
// must be bracketed by Before/AfterListVariableChanged.
func (sd *ScoreDirector) ListRemove(entity domain.ID, v *domain.Variable, index, count int) []domain.ID {
	seq := sd.sol.Seq(entity, v)
	removed := append([]domain.ID(nil), seq[index:index+count]...)
	out := make([]domain.ID, 0, len(seq)-count)
	out = append(out, seq[:index]...)
	out = append(out, seq[index+count:]...)
	sd.sol.SetSeq(entity, v, out)
	return removed
}

// ListSet replaces the element at index. It must be bracketed by
// Before/AfterListVariableChanged.
func (sd *ScoreDirector) ListSet(entity domain.ID, v *domain.Variable, index int, element domain.ID) {
	seq := sd.sol.Seq(entity, v)
	out := append([]domain.ID(nil), seq...)
	out[index] = element
	sd.sol.SetSeq(entity, v, out)
}
