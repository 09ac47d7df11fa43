package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/calib/internal/calib"
	"github.com/san-kum/calib/internal/experiment"
)

const (
	metadataFile = "metadata.json"
	traceFile    = "trace.csv"
)

var traceHeader = []string{"iteration", "mse", "candidate_mse", "damping", "accepted", "rank_deficient"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type OptimizerSettings struct {
	BaseDamping   float64 `json:"base_damping"`
	Tolerance     float64 `json:"tolerance"`
	MaxIterations int     `json:"max_iterations"`
	DampingCap    float64 `json:"damping_cap"`
	Epsilon       float64 `json:"epsilon"`
	Policy        string  `json:"damping_policy"`
}

type RunMetadata struct {
	ID         string                `json:"id"`
	Model      string                `json:"model"`
	Timestamp  time.Time             `json:"timestamp"`
	Status     string                `json:"status"`
	Iterations int                   `json:"iterations"`
	MSE        float64               `json:"mse"`
	InitialMSE float64               `json:"initial_mse"`
	Elapsed    float64               `json:"elapsed_seconds"`
	Optimizer  OptimizerSettings     `json:"optimizer"`
	Guess      calib.ParameterVector `json:"initial_guess"`
	Solution   calib.ParameterVector `json:"solution"`
	Target     []float64             `json:"target"`
	Outputs    []float64             `json:"outputs"`
	Metrics    map[string]float64    `json:"metrics,omitempty"`
	Error      string                `json:"error,omitempty"`
}

func (m *RunMetadata) Converged() bool {
	return m.Status == calib.Converged.String()
}

// NewMetadata summarises an outcome. The id is empty for runs that are not saved.
func NewMetadata(id string, out *experiment.Outcome) RunMetadata {
	oc := out.OptimizerConfig
	meta := RunMetadata{
		ID:         id,
		Model:      out.Config.Model,
		Timestamp:  time.Now(),
		Status:     out.Result.Status.String(),
		Iterations: out.Result.Iterations,
		MSE:        out.Result.MSE,
		InitialMSE: out.Result.InitialMSE,
		Elapsed:    out.Elapsed.Seconds(),
		Optimizer: OptimizerSettings{
			BaseDamping:   oc.BaseDamping,
			Tolerance:     oc.Tolerance,
			MaxIterations: oc.MaxIterations,
			DampingCap:    oc.DampingCap,
			Epsilon:       oc.Epsilon,
			Policy:        oc.Policy.String(),
		},
		Guess:    out.Config.Guess(),
		Solution: out.Result.Params,
		Target:   out.Target,
		Outputs:  out.Result.Outputs,
		Metrics:  out.Metrics,
	}
	if out.Err != nil {
		meta.Error = out.Err.Error()
	}
	return meta
}

// Save writes the run's metadata and per-iteration trace under a new run
// directory and returns its id.
func (s *Store) Save(out *experiment.Outcome) (string, error) {
	if out == nil || out.Result == nil || out.Config == nil {
		return "", errors.New("storage: incomplete outcome")
	}

	runID := fmt.Sprintf("%s_%d", out.Config.Model, time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := NewMetadata(runID, out)

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, traceFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)

	header := append([]string(nil), traceHeader...)
	for i := range meta.Guess {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	if out.Trace != nil {
		for _, st := range out.Trace.Steps {
			row := []string{
				strconv.Itoa(st.Iteration),
				formatFloat(st.MSE),
				formatFloat(st.CandidateMSE),
				formatFloat(st.Damping),
				strconv.FormatBool(st.Accepted),
				strconv.FormatBool(st.RankDeficient),
			}
			for _, p := range st.Params {
				row = append(row, formatFloat(p.Value))
			}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return runID, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}

		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadTrace rebuilds the iteration trace of a run. Parameter labels are not
// stored per step and come back as 0..n-1.
func (s *Store) LoadTrace(runID string) (*calib.Trace, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, traceFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	trace := calib.NewTrace()
	for i := 1; i < len(records); i++ {
		st, err := parseStep(records[i])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", traceFile, i+1, err)
		}
		trace.Steps = append(trace.Steps, st)
	}

	return trace, nil
}

func parseStep(record []string) (calib.Step, error) {
	var st calib.Step
	if len(record) < len(traceHeader) {
		return st, fmt.Errorf("expected at least %d fields, got %d", len(traceHeader), len(record))
	}

	var err error
	if st.Iteration, err = strconv.Atoi(record[0]); err != nil {
		return st, err
	}
	floats := []*float64{&st.MSE, &st.CandidateMSE, &st.Damping}
	for i, dst := range floats {
		if *dst, err = strconv.ParseFloat(record[i+1], 64); err != nil {
			return st, err
		}
	}
	if st.Accepted, err = strconv.ParseBool(record[4]); err != nil {
		return st, err
	}
	if st.RankDeficient, err = strconv.ParseBool(record[5]); err != nil {
		return st, err
	}

	values := make([]float64, 0, len(record)-len(traceHeader))
	for _, field := range record[len(traceHeader):] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return st, err
		}
		values = append(values, v)
	}
	st.Params = calib.Values(values...)
	return st, nil
}
