package storage

import (
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/san-kum/calib/internal/calib"
)

type ExportData struct {
	Run   RunMetadata  `json:"run"`
	Steps []StepRecord `json:"steps"`
}

// StepRecord is a trace step as exported. A candidate that evaluated to a
// non-finite error is written as null.
type StepRecord struct {
	Iteration     int       `json:"iteration"`
	MSE           float64   `json:"mse"`
	CandidateMSE  *float64  `json:"candidate_mse"`
	Damping       float64   `json:"damping"`
	Accepted      bool      `json:"accepted"`
	RankDeficient bool      `json:"rank_deficient"`
	Params        []float64 `json:"params"`
}

func newStepRecord(st calib.Step) StepRecord {
	rec := StepRecord{
		Iteration:     st.Iteration,
		MSE:           st.MSE,
		Damping:       st.Damping,
		Accepted:      st.Accepted,
		RankDeficient: st.RankDeficient,
		Params:        st.Params.ValueSlice(),
	}
	if c := st.CandidateMSE; !math.IsNaN(c) && !math.IsInf(c, 0) {
		rec.CandidateMSE = &c
	}
	return rec
}

// Export loads a stored run with its trace.
func (s *Store) Export(runID string) (*ExportData, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	trace, err := s.LoadTrace(runID)
	if err != nil {
		return nil, err
	}

	data := &ExportData{Run: *meta, Steps: make([]StepRecord, len(trace.Steps))}
	for i, st := range trace.Steps {
		data.Steps[i] = newStepRecord(st)
	}
	return data, nil
}

func ExportJSON(path string, data *ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteJSON(file, data)
}

func WriteJSON(w io.Writer, data *ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
