package director

import (
	"fmt"
	"sort"
	"strings"

	perrors "github.com/copyleftdev/tundr-planner/internal/errors"
	"github.com/copyleftdev/tundr-planner/internal/optimization/domain"
)

// recomputeShadows derives every built-in shadow variable from the genuine
// variables. With write set it stores the result directly, bypassing
// listeners; otherwise it reports where the working solution disagrees.
// Custom shadows are left to their listeners.
func (sd *ScoreDirector) recomputeShadows(write bool) []string {
	sol := sd.sol
	var mismatches []string
	ref := func(obj domain.ID, v *domain.Variable, want domain.ID) {
		if got := sol.Ref(obj, v); got != want {
			if write {
				sol.SetRef(obj, v, want)
				return
			}
			mismatches = append(mismatches, fmt.Sprintf("%s of %s is %s, expected %s",
				v, sol.Name(obj), sol.Name(got), sol.Name(want)))
		}
	}
	num := func(obj domain.ID, v *domain.Variable, want int64) {
		if got := sol.Num(obj, v); got != want {
			if write {
				sol.SetNum(obj, v, want)
				return
			}
			mismatches = append(mismatches, fmt.Sprintf("%s of %s is %d, expected %d",
				v, sol.Name(obj), got, want))
		}
	}
	seq := func(obj domain.ID, v *domain.Variable, want []domain.ID) {
		if got := sol.Seq(obj, v); !sameIDs(got, want) {
			if write {
				sol.SetSeq(obj, v, want)
				return
			}
			mismatches = append(mismatches, fmt.Sprintf("%s of %s is %s, expected %s",
				v, sol.Name(obj), names(sol, got), names(sol, want)))
		}
	}

	for _, n := range sd.nodes {
		s := n.shadow
		if s.Kind == domain.Custom {
			continue
		}
		src := s.Sources[0]
		switch s.Kind {
		case domain.InverseRelation:
			inverse := make(map[domain.ID][]domain.ID)
			for _, e := range sol.ObjectsOf(src.Class) {
				if value := sol.Ref(e, src); value != domain.None {
					inverse[value] = append(inverse[value], e)
				}
			}
			for _, obj := range sol.ObjectsOf(s.Class) {
				if src.Kind == domain.Basic {
					want := inverse[obj]
					sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
					seq(obj, s, want)
					continue
				}
				want := domain.None
				if len(inverse[obj]) > 0 {
					want = inverse[obj][0]
				}
				ref(obj, s, want)
			}
		case domain.Anchor:
			for _, e := range sol.ObjectsOf(s.Class) {
				ref(e, s, walkToAnchor(sol, src, sol.Ref(e, src)))
			}
		case domain.ListIndex, domain.ListOwner, domain.PreviousElement, domain.NextElement:
			type slot struct {
				owner domain.ID
				index int
				list  []domain.ID
			}
			placed := make(map[domain.ID]slot)
			for _, e := range sol.ObjectsOf(src.Class) {
				list := sol.Seq(e, src)
				for i, el := range list {
					placed[el] = slot{owner: e, index: i, list: list}
				}
			}
			for _, el := range sol.ObjectsOf(s.Class) {
				p, ok := placed[el]
				switch s.Kind {
				case domain.ListIndex:
					want := int64(-1)
					if ok {
						want = int64(p.index)
					}
					num(el, s, want)
				case domain.ListOwner:
					want := domain.None
					if ok {
						want = p.owner
					}
					ref(el, s, want)
				case domain.PreviousElement, domain.NextElement:
					want := domain.None
					if ok {
						offset := -1
						if s.Kind == domain.NextElement {
							offset = 1
						}
						want = neighbour(p.list, p.index+offset)
					}
					ref(el, s, want)
				}
			}
		}
	}
	return mismatches
}

// VerifyShadows flushes pending listeners and checks every built-in shadow
// variable against a recomputation from the genuine variables.
func (sd *ScoreDirector) VerifyShadows() error {
	if err := sd.TriggerVariableListeners(); err != nil {
		return err
	}
	if mismatches := sd.recomputeShadows(false); len(mismatches) > 0 {
		return perrors.Wrapf(ErrShadowCorruption, "%d shadow variables are stale: %s",
			len(mismatches), strings.Join(mismatches, "; "))
	}
	return nil
}

func sameIDs(a, b []domain.ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func names(sol *domain.Solution, ids []domain.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = sol.Name(id)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
