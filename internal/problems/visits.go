package problems

import (
	"fmt"
	"math/rand"

	"github.com/copyleftdev/tundr-planner/internal/optimization/director"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
	"github.com/copyleftdev/tundr-planner/internal/optimization/score"
)

// VisitScheduling distributes visits over the ordered lists of vehicles.
// Every visit has a deadline; its arrival time is a custom shadow variable
// computed from its position in the list.
type VisitScheduling struct {
	Model   *domain.Model
	Vehicle *domain.Class
	Visit   *domain.Class
	// Visits is the genuine list variable Vehicle.visits.
	Visits *domain.Variable

	Index    *domain.Variable
	Owner    *domain.Variable
	Previous *domain.Variable
	Next     *domain.Variable
	Arrival  *domain.Variable

	Position map[domain.ID]int64
	Deadline map[domain.ID]int64
	Solution *domain.Solution
}

func newVisitModel() *VisitScheduling {
	m := domain.NewModel()
	vehicle := m.AddClass("Vehicle")
	visit := m.AddClass("Visit")
	visits := vehicle.AddList("visits", visit)
	vs := &VisitScheduling{
		Model:    m,
		Vehicle:  vehicle,
		Visit:    visit,
		Visits:   visits,
		Index:    visit.AddIndex("index", visits),
		Owner:    visit.AddListOwner("vehicle", visits),
		Previous: visit.AddPreviousElement("previous", visits),
		Next:     visit.AddNextElement("next", visits),
		Arrival:  visit.AddCustom("arrival", visits),
		Position: make(map[domain.ID]int64),
		Deadline: make(map[domain.ID]int64),
	}
	vs.Solution = domain.NewSolution(m)
	return vs
}

// NewVisitScheduling generates a problem where every other visit starts
// assigned round robin and the rest start unassigned.
func NewVisitScheduling(vehicles, visits int, seed int64) *VisitScheduling {
	rng := rand.New(rand.NewSource(seed))
	vs := newVisitModel()
	var fleet []domain.ID
	for i := 0; i < vehicles; i++ {
		id := vs.Solution.Add(vs.Vehicle, fmt.Sprintf("v%d", i))
		vs.Position[id] = int64(rng.Intn(500))
		fleet = append(fleet, id)
	}
	for i := 0; i < visits; i++ {
		id := vs.Solution.Add(vs.Visit, fmt.Sprintf("s%d", i))
		vs.Position[id] = int64(rng.Intn(500))
		vs.Deadline[id] = int64(200 + rng.Intn(800))
		if i%2 == 0 && len(fleet) > 0 {
			owner := fleet[(i/2)%len(fleet)]
			vs.Solution.SetSeq(owner, vs.Visits, append(vs.Solution.Seq(owner, vs.Visits), id))
		}
	}
	return vs
}

// NewVisitLists builds the given lists verbatim: the first name of each list
// is a vehicle, the rest are its visits in order. Extra names in unassigned
// become visits outside every list. Deadlines are generous.
func NewVisitLists(unassigned []string, lists ...[]string) *VisitScheduling {
	vs := newVisitModel()
	n := int64(0)
	for _, list := range lists {
		if len(list) == 0 {
			continue
		}
		owner := vs.Solution.Add(vs.Vehicle, list[0])
		vs.Position[owner] = n * 13 % 50
		n++
		var seq []domain.ID
		for _, name := range list[1:] {
			id := vs.Solution.Add(vs.Visit, name)
			vs.Position[id] = n * 13 % 50
			vs.Deadline[id] = 1000
			n++
			seq = append(seq, id)
		}
		vs.Solution.SetSeq(owner, vs.Visits, seq)
	}
	for _, name := range unassigned {
		id := vs.Solution.Add(vs.Visit, name)
		vs.Position[id] = n * 13 % 50
		vs.Deadline[id] = 1000
		n++
	}
	return vs
}

// Names returns the visit names of a vehicle's list.
func (vs *VisitScheduling) Names(sol *domain.Solution, vehicle string) []string {
	var out []string
	for _, id := range sol.Seq(sol.MustLookup(vehicle), vs.Visits) {
		out = append(out, sol.Name(id))
	}
	return out
}

// ArrivalListener returns the listener maintaining the arrival shadow. It
// must be registered with director.WithCustomListener(vs.Arrival, ...).
func (vs *VisitScheduling) ArrivalListener() director.VariableListener {
	return &arrivalListener{vs: vs, touched: make(map[domain.ID][]domain.ID)}
}

type arrivalListener struct {
	vs      *VisitScheduling
	touched map[domain.ID][]domain.ID
}

func (l *arrivalListener) BeforeVariableChanged(sd *director.ScoreDirector, vehicle domain.ID) {
	seq := sd.WorkingSolution().Seq(vehicle, l.vs.Visits)
	l.touched[vehicle] = append([]domain.ID(nil), seq...)
}

func (l *arrivalListener) AfterVariableChanged(sd *director.ScoreDirector, vehicle domain.ID) {
	sol := sd.WorkingSolution()
	at := l.vs.Position[vehicle]
	clock := int64(0)
	for _, visit := range sol.Seq(vehicle, l.vs.Visits) {
		clock += abs(l.vs.Position[visit] - at)
		at = l.vs.Position[visit]
		if sol.Num(visit, l.vs.Arrival) != clock {
			sd.ChangeNum(visit, l.vs.Arrival, clock)
		}
	}
	for _, visit := range l.touched[vehicle] {
		if _, _, ok := sd.ElementLocation(l.vs.Visits, visit); !ok && sol.Contains(visit) && sol.Num(visit, l.vs.Arrival) != 0 {
			sd.ChangeNum(visit, l.vs.Arrival, 0)
		}
	}
	delete(l.touched, vehicle)
}

// Calculator returns an easy calculator. Each unassigned visit costs one hard
// point; travel distance and lateness against deadlines cost soft points.
func (vs *VisitScheduling) Calculator() director.IncrementalScoreCalculator {
	return director.Easy(director.EasyScoreCalculatorFunc(func(sol *domain.Solution) score.Score {
		var hard, soft int64
		for _, visit := range sol.ObjectsOf(vs.Visit) {
			if sol.Ref(visit, vs.Owner) == domain.None {
				hard--
				continue
			}
			if late := sol.Num(visit, vs.Arrival) - vs.Deadline[visit]; late > 0 {
				soft -= late
			}
		}
		for _, vehicle := range sol.ObjectsOf(vs.Vehicle) {
			soft -= vs.distance(sol, vehicle)
		}
		return score.HardSoft(hard, soft)
	}))
}

// Evaluate scores a solution from scratch, using genuine variables only.
func (vs *VisitScheduling) Evaluate(sol *domain.Solution) score.Score {
	var hard, soft int64
	assigned := make(map[domain.ID]bool)
	for _, vehicle := range sol.ObjectsOf(vs.Vehicle) {
		at := vs.Position[vehicle]
		clock := int64(0)
		for _, visit := range sol.Seq(vehicle, vs.Visits) {
			assigned[visit] = true
			clock += abs(vs.Position[visit] - at)
			at = vs.Position[visit]
			if late := clock - vs.Deadline[visit]; late > 0 {
				soft -= late
			}
		}
		soft -= vs.distance(sol, vehicle)
	}
	for _, visit := range sol.ObjectsOf(vs.Visit) {
		if !assigned[visit] {
			hard--
		}
	}
	return score.HardSoft(hard, soft)
}

func (vs *VisitScheduling) distance(sol *domain.Solution, vehicle domain.ID) int64 {
	at := vs.Position[vehicle]
	var total int64
	for _, visit := range sol.Seq(vehicle, vs.Visits) {
		total += abs(vs.Position[visit] - at)
		at = vs.Position[visit]
	}
	return total
}
