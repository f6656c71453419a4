package domain

import (
	"fmt"

	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
)

// ID addresses an object inside a Solution's arena.
type ID int

// None is the ID of "no object": an unassigned reference.
const None ID = -1

// Object is one record in the arena. Its variable values live in slots laid
// out by its Class.
type Object struct {
	ID    ID
	Class *Class
	Name  string

	refs []ID
	nums []int64
	seqs [][]ID
}

// Solution is a problem instance: problem facts and planning entities, plus
// the score last calculated for it. Objects are never moved inside the arena;
// removed objects leave a hole so IDs stay stable.
type Solution struct {
	Model *Model
	Score score.Score

	objects []*Object
	names   map[string]ID
}

// NewSolution returns an empty solution for the model.
func NewSolution(m *Model) *Solution {
	return &Solution{Model: m, names: make(map[string]ID)}
}

// Add appends a new object of the class and returns its ID. References start
// unassigned, list index shadows start at -1, and lists start empty.
func (s *Solution) Add(c *Class, name string) ID {
	id := ID(len(s.objects))
	o := &Object{
		ID:    id,
		Class: c,
		Name:  name,
		refs:  make([]ID, c.slots[refStorage]),
		nums:  make([]int64, c.slots[numStorage]),
		seqs:  make([][]ID, c.slots[seqStorage]),
	}
	for i := range o.refs {
		o.refs[i] = None
	}
	for _, v := range c.variables {
		if v.Kind == ListIndex {
			o.nums[v.slot] = -1
		}
	}
	s.objects = append(s.objects, o)
	if name != "" {
		s.names[name] = id
	}
	return id
}

// Remove drops an object from the arena. Its ID is never reused.
func (s *Solution) Remove(id ID) {
	o := s.Object(id)
	if o == nil {
		return
	}
	if o.Name != "" {
		delete(s.names, o.Name)
	}
	s.objects[id] = nil
}

// Object returns the object with the given ID, or nil if there is none.
func (s *Solution) Object(id ID) *Object {
	if id < 0 || int(id) >= len(s.objects) {
		return nil
	}
	return s.objects[id]
}

// Contains reports whether id addresses a live object.
func (s *Solution) Contains(id ID) bool {
	return s.Object(id) != nil
}

// Lookup returns the ID of the named object, or None.
func (s *Solution) Lookup(name string) ID {
	if id, ok := s.names[name]; ok {
		return id
	}
	return None
}

// MustLookup returns the ID of the named object and panics if it is missing.
func (s *Solution) MustLookup(name string) ID {
	id := s.Lookup(name)
	if id == None {
		panic(fmt.Sprintf("domain: no object named %q", name))
	}
	return id
}

// Name returns the object's name, falling back to "#id". None prints as "-".
func (s *Solution) Name(id ID) string {
	if id == None {
		return "-"
	}
	if o := s.Object(id); o != nil && o.Name != "" {
		return o.Name
	}
	return fmt.Sprintf("#%d", int(id))
}

// Len returns the arena size, including holes left by removed objects.
func (s *Solution) Len() int {
	return len(s.objects)
}

// ObjectsOf returns the IDs of the live objects of a class in arena order.
func (s *Solution) ObjectsOf(c *Class) []ID {
	var out []ID
	for _, o := range s.objects {
		if o != nil && o.Class == c {
			out = append(out, o.ID)
		}
	}
	return out
}

// Entities returns the IDs of all live planning entities in arena order.
func (s *Solution) Entities() []ID {
	var out []ID
	for _, o := range s.objects {
		if o != nil && o.Class.IsEntity() {
			out = append(out, o.ID)
		}
	}
	return out
}

// IsAnchor reports whether value is a chain root for the chained variable,
// that is a live object not of the variable's own class.
func (s *Solution) IsAnchor(v *Variable, value ID) bool {
	o := s.Object(value)
	return o != nil && o.Class != v.Class
}

// ValueRange returns the values a basic or chained variable may take, or the
// elements a list variable may hold. Nullable basic variables include None.
func (s *Solution) ValueRange(v *Variable) []ID {
	var out []ID
	for _, c := range v.ValueClasses {
		out = append(out, s.ObjectsOf(c)...)
	}
	if v.Nullable {
		out = append(out, None)
	}
	return out
}

// EntityCount returns the number of live planning entities.
func (s *Solution) EntityCount() int {
	return len(s.Entities())
}

// ValueCount returns the number of distinct values over the value ranges of
// all genuine variables.
func (s *Solution) ValueCount() int {
	seen := make(map[ID]struct{})
	for _, v := range s.Model.GenuineVariables() {
		for _, id := range s.ValueRange(v) {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}

// Ref returns a reference variable's value.
func (s *Solution) Ref(id ID, v *Variable) ID {
	return s.slotOwner(id, v, refStorage).refs[v.slot]
}

// SetRef writes a reference variable. Callers outside the score director must
// not use it on a working solution.
func (s *Solution) SetRef(id ID, v *Variable, value ID) {
	s.slotOwner(id, v, refStorage).refs[v.slot] = value
}

// Num returns a numeric variable's value.
func (s *Solution) Num(id ID, v *Variable) int64 {
	return s.slotOwner(id, v, numStorage).nums[v.slot]
}

// SetNum writes a numeric variable.
func (s *Solution) SetNum(id ID, v *Variable, value int64) {
	s.slotOwner(id, v, numStorage).nums[v.slot] = value
}

// Seq returns a sequence variable's backing slice. Callers must not modify it.
func (s *Solution) Seq(id ID, v *Variable) []ID {
	return s.slotOwner(id, v, seqStorage).seqs[v.slot]
}

// SetSeq replaces a sequence variable's backing slice.
func (s *Solution) SetSeq(id ID, v *Variable, seq []ID) {
	s.slotOwner(id, v, seqStorage).seqs[v.slot] = seq
}

func (s *Solution) slotOwner(id ID, v *Variable, st storage) *Object {
	o := s.Object(id)
	if o == nil {
		panic(fmt.Sprintf("domain: no object %d for variable %s", int(id), v))
	}
	if o.Class != v.Class || v.store != st {
		panic(fmt.Sprintf("domain: variable %s does not apply to %s of class %s", v, s.Name(id), o.Class.Name))
	}
	return o
}

// Clone returns a deep copy: mutating either solution afterwards never
// affects the other.
func (s *Solution) Clone() *Solution {
	c := &Solution{
		Model:   s.Model,
		Score:   s.Score,
		objects: make([]*Object, len(s.objects)),
		names:   make(map[string]ID, len(s.names)),
	}
	for k, v := range s.names {
		c.names[k] = v
	}
	for i, o := range s.objects {
		if o == nil {
			continue
		}
		co := &Object{
			ID:    o.ID,
			Class: o.Class,
			Name:  o.Name,
			refs:  append([]ID(nil), o.refs...),
			nums:  append([]int64(nil), o.nums...),
			seqs:  make([][]ID, len(o.seqs)),
		}
		for j, seq := range o.seqs {
			co.seqs[j] = append([]ID(nil), seq...)
		}
		c.objects[i] = co
	}
	return c
}
