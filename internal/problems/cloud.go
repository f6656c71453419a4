// Package problems generates small deterministic planning problems. They
// exercise every kind of planning variable and are used by tests and by the
// planner smoke binary.
package problems

import (
	"fmt"
	"math/rand"

	"github.com/copyleftdev/tundr-planner/internal/optimization/director"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
)

// CloudBalance assigns processes to computers. Each computer has a CPU
// capacity and a fixed cost paid when at least one process runs on it.
type CloudBalance struct {
	Model    *domain.Model
	Computer *domain.Class
	Process  *domain.Class
	// Assigned is the genuine basic variable Process.computer.
	Assigned *domain.Variable
	// Processes is the inverse collection shadow Computer.processes.
	Processes *domain.Variable

	Capacity map[domain.ID]int64
	Cost     map[domain.ID]int64
	Required map[domain.ID]int64

	Solution *domain.Solution
}

// NewCloudBalance builds a problem with the given sizes. Processes start
// assigned round robin, which is usually infeasible.
func NewCloudBalance(computers, processes int, seed int64) *CloudBalance {
	rng := rand.New(rand.NewSource(seed))
	m := domain.NewModel()
	computer := m.AddClass("Computer")
	process := m.AddClass("Process")
	assigned := process.AddBasic("computer", false, computer)
	inverse := computer.AddInverseRelation("processes", assigned)

	cb := &CloudBalance{
		Model:     m,
		Computer:  computer,
		Process:   process,
		Assigned:  assigned,
		Processes: inverse,
		Capacity:  make(map[domain.ID]int64),
		Cost:      make(map[domain.ID]int64),
		Required:  make(map[domain.ID]int64),
		Solution:  domain.NewSolution(m),
	}
	var ids []domain.ID
	for i := 0; i < computers; i++ {
		id := cb.Solution.Add(computer, fmt.Sprintf("c%d", i))
		cb.Capacity[id] = int64(8 + rng.Intn(17))
		cb.Cost[id] = int64(100 + rng.Intn(400))
		ids = append(ids, id)
	}
	for i := 0; i < processes; i++ {
		id := cb.Solution.Add(process, fmt.Sprintf("p%d", i))
		cb.Required[id] = int64(1 + rng.Intn(6))
		if len(ids) > 0 {
			cb.Solution.SetRef(id, assigned, ids[i%len(ids)])
		}
	}
	return cb
}

// Calculator returns an incremental calculator for the problem. The hard
// score is minus the CPU overload summed over computers; the soft score is
// minus the cost of every computer in use.
func (cb *CloudBalance) Calculator() director.IncrementalScoreCalculator {
	return &cloudCalculator{cb: cb}
}

type cloudCalculator struct {
	director.NoopCalculatorEvents
	cb    *CloudBalance
	sol   *domain.Solution
	usage map[domain.ID]int64
	count map[domain.ID]int
	hard  int64
	soft  int64
}

func (c *cloudCalculator) ResetWorkingSolution(sol *domain.Solution) {
	c.sol = sol
	c.usage = make(map[domain.ID]int64)
	c.count = make(map[domain.ID]int)
	c.hard, c.soft = 0, 0
	for _, p := range sol.ObjectsOf(c.cb.Process) {
		c.insert(p)
	}
}

func (c *cloudCalculator) BeforeVariableChanged(obj domain.ID, v *domain.Variable) {
	if v == c.cb.Assigned {
		c.retract(obj)
	}
}

func (c *cloudCalculator) AfterVariableChanged(obj domain.ID, v *domain.Variable) {
	if v == c.cb.Assigned {
		c.insert(obj)
	}
}

func (c *cloudCalculator) BeforeEntityRemoved(obj domain.ID) {
	if c.sol.Object(obj).Class == c.cb.Process {
		c.retract(obj)
	}
}

func (c *cloudCalculator) AfterEntityAdded(obj domain.ID) {
	if c.sol.Object(obj).Class == c.cb.Process {
		c.insert(obj)
	}
}

func (c *cloudCalculator) insert(p domain.ID) {
	comp := c.sol.Ref(p, c.cb.Assigned)
	if comp == domain.None {
		return
	}
	c.account(comp, -1)
	c.usage[comp] += c.cb.Required[p]
	c.count[comp]++
	c.account(comp, 1)
}

func (c *cloudCalculator) retract(p domain.ID) {
	comp := c.sol.Ref(p, c.cb.Assigned)
	if comp == domain.None {
		return
	}
	c.account(comp, -1)
	c.usage[comp] -= c.cb.Required[p]
	c.count[comp]--
	c.account(comp, 1)
}

// account adds (sign 1) or removes (sign -1) a computer's contribution.
func (c *cloudCalculator) account(comp domain.ID, sign int64) {
	if over := c.usage[comp] - c.cb.Capacity[comp]; over > 0 {
		c.hard -= sign * over
	}
	if c.count[comp] > 0 {
		c.soft -= sign * c.cb.Cost[comp]
	}
}

func (c *cloudCalculator) CalculateScore() score.Score {
	return score.HardSoft(c.hard, c.soft)
}

// Evaluate scores a solution from scratch.
func (cb *CloudBalance) Evaluate(sol *domain.Solution) score.Score {
	usage := make(map[domain.ID]int64)
	used := make(map[domain.ID]bool)
	for _, p := range sol.ObjectsOf(cb.Process) {
		if comp := sol.Ref(p, cb.Assigned); comp != domain.None {
			usage[comp] += cb.Required[p]
			used[comp] = true
		}
	}
	var hard, soft int64
	for _, comp := range sol.ObjectsOf(cb.Computer) {
		if over := usage[comp] - cb.Capacity[comp]; over > 0 {
			hard -= over
		}
		if used[comp] {
			soft -= cb.Cost[comp]
		}
	}
	return score.HardSoft(hard, soft)
}
