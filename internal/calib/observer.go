package calib

// Step describes one finished iteration of the optimizer loop.
type Step struct {
	Iteration     int             `json:"iteration"`
	MSE           float64         `json:"mse"`
	CandidateMSE  float64         `json:"candidate_mse"`
	Damping       float64         `json:"damping"`
	Accepted      bool            `json:"accepted"`
	RankDeficient bool            `json:"rank_deficient"`
	Params        ParameterVector `json:"params"`
}

// Observer receives every iteration synchronously, after the accept/reject
// decision. Params is the accepted state and must not be retained mutably.
type Observer interface {
	OnIteration(s Step)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(s Step)

func (f ObserverFunc) OnIteration(s Step) { f(s) }

// Trace records every iteration of a run.
type Trace struct {
	Steps []Step
}

func NewTrace() *Trace {
	return &Trace{Steps: make([]Step, 0)}
}

func (t *Trace) OnIteration(s Step) {
	s.Params = s.Params.Clone()
	t.Steps = append(t.Steps, s)
}

func (t *Trace) Len() int { return len(t.Steps) }

// MSESeries returns the accepted objective after each iteration.
func (t *Trace) MSESeries() []float64 {
	out := make([]float64, len(t.Steps))
	for i, s := range t.Steps {
		out[i] = s.MSE
	}
	return out
}

func (t *Trace) Accepted() int {
	n := 0
	for _, s := range t.Steps {
		if s.Accepted {
			n++
		}
	}
	return n
}
