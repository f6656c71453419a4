// Package domain describes planning problems as an arena of objects.
//
// A Model declares classes and their variables. A Solution holds the objects
// of one problem instance, addressed by ID, and stores every variable value
// in flat per-object slots so moves can capture "before" values cheaply.
package domain

import (
	"fmt"

	"github.com/copyleftdev/tundr-planner/internal/optimization"
)

// VariableKind identifies what a variable holds and who writes it.
type VariableKind int

const (
	// Basic is a genuine reference to a value from a value range.
	Basic VariableKind = iota
	// Chained is a genuine reference to an anchor or to another entity of the
	// same chain, forming singly linked chains that end at an anchor.
	Chained
	// List is a genuine ordered sequence of elements owned by an entity.
	List
	// InverseRelation points back from a value to the entities referencing
	// it. It is a collection for basic sources and a single reference for
	// chained sources.
	InverseRelation
	// Anchor holds the anchor at the root of an entity's chain.
	Anchor
	// ListIndex holds an element's position in its owner's list, or -1.
	ListIndex
	// ListOwner holds the entity whose list contains the element.
	ListOwner
	// PreviousElement holds the element before this one in the same list.
	PreviousElement
	// NextElement holds the element after this one in the same list.
	NextElement
	// Custom is a shadow variable computed by a user supplied listener.
	Custom
)

var kindNames = map[VariableKind]string{
	Basic:           "basic",
	Chained:         "chained",
	List:            "list",
	InverseRelation: "inverse_relation",
	Anchor:          "anchor",
	ListIndex:       "list_index",
	ListOwner:       "list_owner",
	PreviousElement: "previous_element",
	NextElement:     "next_element",
	Custom:          "custom",
}

// String implements fmt.Stringer.
func (k VariableKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsGenuine reports whether the solver assigns this kind of variable.
func (k VariableKind) IsGenuine() bool {
	return k == Basic || k == Chained || k == List
}

type storage int

const (
	refStorage storage = iota
	numStorage
	seqStorage
)

// Variable describes one variable declared on a class.
type Variable struct {
	// Name is unique within the declaring class.
	Name string
	// Class declares the variable.
	Class *Class
	// Kind tells what the variable holds.
	Kind VariableKind
	// Nullable allows a basic variable to stay unassigned.
	Nullable bool
	// ValueClasses lists the classes whose objects form the value range of a
	// basic or chained variable, or the element class of a list variable.
	ValueClasses []*Class
	// Sources lists the variables a shadow variable is derived from.
	Sources []*Variable

	ordinal int
	slot    int
	store   storage
}

// Ordinal returns the variable's position among all variables of the model.
func (v *Variable) Ordinal() int { return v.ordinal }

// IsGenuine reports whether the solver assigns the variable.
func (v *Variable) IsGenuine() bool { return v.Kind.IsGenuine() }

// IsCollection reports whether the variable stores a sequence of IDs.
func (v *Variable) IsCollection() bool { return v.store == seqStorage }

// IsNumeric reports whether the variable stores an integer.
func (v *Variable) IsNumeric() bool { return v.store == numStorage }

// ElementClass returns the element class of a list variable.
func (v *Variable) ElementClass() *Class {
	if v.Kind != List || len(v.ValueClasses) == 0 {
		return nil
	}
	return v.ValueClasses[0]
}

// String returns "Class.name".
func (v *Variable) String() string {
	return v.Class.Name + "." + v.Name
}

// Class describes a kind of object: a planning entity when it declares
// genuine variables, otherwise a problem fact or value.
type Class struct {
	Name string

	model     *Model
	index     int
	variables []*Variable
	byName    map[string]*Variable
	slots     [3]int
}

// Model is the set of classes and variables of a planning problem.
type Model struct {
	classes   []*Class
	byName    map[string]*Class
	variables []*Variable
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{byName: make(map[string]*Class)}
}

// AddClass declares a class. Declaring the same name twice returns the
// existing class.
func (m *Model) AddClass(name string) *Class {
	if c, ok := m.byName[name]; ok {
		return c
	}
	c := &Class{Name: name, model: m, index: len(m.classes), byName: make(map[string]*Variable)}
	m.classes = append(m.classes, c)
	m.byName[name] = c
	return c
}

// Class returns the class with the given name, or nil.
func (m *Model) Class(name string) *Class {
	return m.byName[name]
}

// Classes returns every declared class in declaration order.
func (m *Model) Classes() []*Class {
	return m.classes
}

// Variables returns every declared variable in declaration order.
func (m *Model) Variables() []*Variable {
	return m.variables
}

// GenuineVariables returns the variables assigned by the solver.
func (m *Model) GenuineVariables() []*Variable {
	var out []*Variable
	for _, v := range m.variables {
		if v.IsGenuine() {
			out = append(out, v)
		}
	}
	return out
}

// ShadowVariables returns the derived variables.
func (m *Model) ShadowVariables() []*Variable {
	var out []*Variable
	for _, v := range m.variables {
		if !v.IsGenuine() {
			out = append(out, v)
		}
	}
	return out
}

// Validate checks that every variable is declared consistently. Cycles
// between shadow sources are detected when a score director is built.
func (m *Model) Validate() error {
	for _, v := range m.variables {
		if err := v.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (v *Variable) validate() error {
	fail := func(format string, args ...interface{}) error {
		return optimization.NewErrorf("variable %s: "+format, append([]interface{}{v}, args...)...).
			WithComponent("domain").WithOperation("Validate")
	}
	switch v.Kind {
	case Basic, Chained:
		if len(v.ValueClasses) == 0 {
			return fail("has no value range")
		}
		if v.Kind == Chained && !containsClass(v.ValueClasses, v.Class) {
			return fail("chained value range must include its own class %s", v.Class.Name)
		}
	case List:
		if len(v.ValueClasses) != 1 {
			return fail("needs exactly one element class")
		}
	case InverseRelation:
		if len(v.Sources) != 1 || (v.Sources[0].Kind != Basic && v.Sources[0].Kind != Chained) {
			return fail("needs one basic or chained source")
		}
		if !containsClass(v.Sources[0].ValueClasses, v.Class) {
			return fail("class %s is not in the value range of %s", v.Class.Name, v.Sources[0])
		}
	case Anchor:
		if len(v.Sources) != 1 || v.Sources[0].Kind != Chained || v.Sources[0].Class != v.Class {
			return fail("needs one chained source declared on the same class")
		}
	case ListIndex, ListOwner, PreviousElement, NextElement:
		if len(v.Sources) != 1 || v.Sources[0].Kind != List {
			return fail("needs one list source")
		}
		ec := v.Sources[0].ElementClass()
		if ec == nil {
			return fail("source %s has no element class", v.Sources[0])
		}
		if ec != v.Class {
			return fail("must be declared on the element class %s", ec.Name)
		}
	case Custom:
		if len(v.Sources) == 0 {
			return fail("needs at least one source")
		}
	}
	return nil
}

// IsEntity reports whether the class declares genuine variables.
func (c *Class) IsEntity() bool {
	for _, v := range c.variables {
		if v.IsGenuine() {
			return true
		}
	}
	return false
}

// Variable returns the variable with the given name, or nil.
func (c *Class) Variable(name string) *Variable {
	return c.byName[name]
}

// Variables returns the class's variables in declaration order.
func (c *Class) Variables() []*Variable {
	return c.variables
}

// GenuineVariables returns the class's genuine variables.
func (c *Class) GenuineVariables() []*Variable {
	var out []*Variable
	for _, v := range c.variables {
		if v.IsGenuine() {
			out = append(out, v)
		}
	}
	return out
}

// AddBasic declares a basic genuine variable whose values come from the
// given classes.
func (c *Class) AddBasic(name string, nullable bool, values ...*Class) *Variable {
	v := c.add(name, Basic, refStorage)
	v.Nullable = nullable
	v.ValueClasses = values
	return v
}

// AddChained declares a chained genuine variable. The value classes are the
// anchor classes plus the declaring class itself.
func (c *Class) AddChained(name string, values ...*Class) *Variable {
	v := c.add(name, Chained, refStorage)
	v.ValueClasses = values
	return v
}

// AddList declares a list genuine variable holding elements of the class.
func (c *Class) AddList(name string, elements *Class) *Variable {
	v := c.add(name, List, seqStorage)
	v.ValueClasses = []*Class{elements}
	return v
}

// AddInverseRelation declares the inverse of a basic or chained variable on
// one of its value classes.
func (c *Class) AddInverseRelation(name string, source *Variable) *Variable {
	st := refStorage
	if source.Kind == Basic {
		st = seqStorage
	}
	v := c.add(name, InverseRelation, st)
	v.Sources = []*Variable{source}
	return v
}

// AddAnchor declares the anchor shadow of a chained variable.
func (c *Class) AddAnchor(name string, source *Variable) *Variable {
	v := c.add(name, Anchor, refStorage)
	v.Sources = []*Variable{source}
	return v
}

// AddIndex declares the index shadow of a list variable on its element class.
func (c *Class) AddIndex(name string, source *Variable) *Variable {
	v := c.add(name, ListIndex, numStorage)
	v.Sources = []*Variable{source}
	return v
}

// AddListOwner declares the owner shadow of a list variable on its element class.
func (c *Class) AddListOwner(name string, source *Variable) *Variable {
	v := c.add(name, ListOwner, refStorage)
	v.Sources = []*Variable{source}
	return v
}

// AddPreviousElement declares the previous element shadow of a list variable.
func (c *Class) AddPreviousElement(name string, source *Variable) *Variable {
	v := c.add(name, PreviousElement, refStorage)
	v.Sources = []*Variable{source}
	return v
}

// AddNextElement declares the next element shadow of a list variable.
func (c *Class) AddNextElement(name string, source *Variable) *Variable {
	v := c.add(name, NextElement, refStorage)
	v.Sources = []*Variable{source}
	return v
}

// AddCustom declares an integer shadow variable computed by a custom
// listener from the given sources.
func (c *Class) AddCustom(name string, sources ...*Variable) *Variable {
	v := c.add(name, Custom, numStorage)
	v.Sources = sources
	return v
}

func (c *Class) add(name string, kind VariableKind, st storage) *Variable {
	if existing, ok := c.byName[name]; ok {
		panic(fmt.Sprintf("domain: variable %s.%s declared twice", c.Name, existing.Name))
	}
	v := &Variable{
		Name:    name,
		Class:   c,
		Kind:    kind,
		ordinal: len(c.model.variables),
		slot:    c.slots[st],
		store:   st,
	}
	c.slots[st]++
	c.variables = append(c.variables, v)
	c.byName[name] = v
	c.model.variables = append(c.model.variables, v)
	return v
}

func containsClass(classes []*Class, c *Class) bool {
	for _, x := range classes {
		if x == c {
			return true
		}
	}
	return false
}
