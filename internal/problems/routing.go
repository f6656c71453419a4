package problems

import (
	"fmt"
	"math/rand"

	"github.com/copyleftdev/tundr-planner/internal/optimization/director"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
)

// Routing chains customers behind depots. Every customer points at the depot
// or customer visited just before it.
type Routing struct {
	Model    *domain.Model
	Depot    *domain.Class
	Customer *domain.Class
	// Previous is the genuine chained variable Customer.previous.
	Previous *domain.Variable
	// Vehicle is the anchor shadow Customer.vehicle.
	Vehicle *domain.Variable
	// Next and First are the singleton inverse shadows of Previous on
	// customers and depots.
	Next  *domain.Variable
	First *domain.Variable

	Position map[domain.ID]int64
	Solution *domain.Solution
}

func newRoutingModel() *Routing {
	m := domain.NewModel()
	depot := m.AddClass("Depot")
	customer := m.AddClass("Customer")
	previous := customer.AddChained("previous", depot, customer)
	r := &Routing{
		Model:    m,
		Depot:    depot,
		Customer: customer,
		Previous: previous,
		Vehicle:  customer.AddAnchor("vehicle", previous),
		Next:     customer.AddInverseRelation("next", previous),
		First:    depot.AddInverseRelation("first", previous),
		Position: make(map[domain.ID]int64),
	}
	r.Solution = domain.NewSolution(m)
	return r
}

// NewRouting generates depots and customers on a line. Customers start
// chained round robin behind the depots.
func NewRouting(depots, customers int, seed int64) *Routing {
	rng := rand.New(rand.NewSource(seed))
	r := newRoutingModel()
	tails := make([]domain.ID, 0, depots)
	for i := 0; i < depots; i++ {
		id := r.Solution.Add(r.Depot, fmt.Sprintf("d%d", i))
		r.Position[id] = int64(rng.Intn(1000))
		tails = append(tails, id)
	}
	for i := 0; i < customers; i++ {
		id := r.Solution.Add(r.Customer, fmt.Sprintf("u%d", i))
		r.Position[id] = int64(rng.Intn(1000))
		if len(tails) > 0 {
			k := i % len(tails)
			r.Solution.SetRef(id, r.Previous, tails[k])
			tails[k] = id
		}
	}
	return r
}

// NewRoutingChains builds the given chains verbatim: the first name of each
// chain is a depot, the rest are customers in visiting order. Positions are
// spread deterministically.
func NewRoutingChains(chains ...[]string) *Routing {
	r := newRoutingModel()
	n := int64(0)
	for _, chain := range chains {
		if len(chain) == 0 {
			continue
		}
		prev := r.Solution.Add(r.Depot, chain[0])
		r.Position[prev] = n * 37 % 101
		n++
		for _, name := range chain[1:] {
			id := r.Solution.Add(r.Customer, name)
			r.Position[id] = n * 37 % 101
			n++
			r.Solution.SetRef(id, r.Previous, prev)
			prev = id
		}
	}
	return r
}

// Chain returns the names along a depot's chain, depot first. It walks the
// genuine variable only.
func (r *Routing) Chain(sol *domain.Solution, depot string) []string {
	next := make(map[domain.ID]domain.ID)
	for _, c := range sol.ObjectsOf(r.Customer) {
		if p := sol.Ref(c, r.Previous); p != domain.None {
			next[p] = c
		}
	}
	cur := sol.MustLookup(depot)
	out := []string{sol.Name(cur)}
	for {
		c, ok := next[cur]
		if !ok || len(out) > sol.Len() {
			return out
		}
		out = append(out, sol.Name(c))
		cur = c
	}
}

// Calculator returns an easy calculator scoring minus the total distance
// travelled between consecutive stops.
func (r *Routing) Calculator() director.IncrementalScoreCalculator {
	return director.Easy(director.EasyScoreCalculatorFunc(r.Evaluate))
}

// Evaluate scores a solution from scratch.
func (r *Routing) Evaluate(sol *domain.Solution) score.Score {
	var total int64
	for _, c := range sol.ObjectsOf(r.Customer) {
		if p := sol.Ref(c, r.Previous); p != domain.None {
			total += abs(r.Position[c] - r.Position[p])
		}
	}
	return score.Simple(-total)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
