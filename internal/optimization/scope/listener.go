package scope

// Listener receives the lifecycle events of a solve. Components must not
// assume which events fire more often than they are guaranteed to. The
// *Started events may reject a configuration, which aborts solving; the
// *Ended events only clean up.
type Listener interface {
	SolvingStarted(s *Solver) error
	PhaseStarted(p *Phase) error
	StepStarted(st *Step) error
	StepEnded(st *Step)
	PhaseEnded(p *Phase)
	SolvingEnded(s *Solver)
}

// NoopListener implements Listener with no-ops. Embed it to override only
// the events a component cares about.
type NoopListener struct{}

func (NoopListener) SolvingStarted(*Solver) error { return nil }
func (NoopListener) PhaseStarted(*Phase) error    { return nil }
func (NoopListener) StepStarted(*Step) error      { return nil }
func (NoopListener) StepEnded(*Step)              {}
func (NoopListener) PhaseEnded(*Phase)            {}
func (NoopListener) SolvingEnded(*Solver)         {}

// Listeners fans events out to several listeners. Started events go in
// order and stop at the first error; ended events go in reverse order.
type Listeners []Listener

func (ls Listeners) SolvingStarted(s *Solver) error {
	for _, l := range ls {
		if err := l.SolvingStarted(s); err != nil {
			return err
		}
	}
	return nil
}

func (ls Listeners) PhaseStarted(p *Phase) error {
	for _, l := range ls {
		if err := l.PhaseStarted(p); err != nil {
			return err
		}
	}
	return nil
}

func (ls Listeners) StepStarted(st *Step) error {
	for _, l := range ls {
		if err := l.StepStarted(st); err != nil {
			return err
		}
	}
	return nil
}

func (ls Listeners) StepEnded(st *Step) {
	for i := len(ls) - 1; i >= 0; i-- {
		ls[i].StepEnded(st)
	}
}

func (ls Listeners) PhaseEnded(p *Phase) {
	for i := len(ls) - 1; i >= 0; i-- {
		ls[i].PhaseEnded(p)
	}
}

func (ls Listeners) SolvingEnded(s *Solver) {
	for i := len(ls) - 1; i >= 0; i-- {
		ls[i].SolvingEnded(s)
	}
}
