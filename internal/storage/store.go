package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/posesim/internal/dynamo"
	"github.com/san-kum/posesim/internal/sim"
	"go.uber.org/multierr"
)

const (
	metadataFile = "metadata.json"
	framesFile   = "frames.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

var frameHeader = []string{
	"time", "step",
	"x", "y", "z", "roll", "pitch", "yaw",
	"vx", "vy", "vz", "roll_rate", "pitch_rate", "yaw_rate",
}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Source    string             `json:"source"`
	Timestamp time.Time          `json:"timestamp"`
	FrameID   uint32             `json:"frame_id"`
	Dt        float64            `json:"dt"`
	Duration  float64            `json:"duration"`
	Steps     int                `json:"steps"`
	Initial   dynamo.Pose        `json:"initial"`
	Final     dynamo.Pose        `json:"final"`
	Metrics   map[string]float64 `json:"metrics"`
	// Diverged marks a run whose frames reached NaN or Inf. Non-finite
	// summary values are left out of the metadata; frames.csv keeps them.
	Diverged bool `json:"diverged,omitempty"`
}

// Save writes a run directory and returns its id. ID, Steps, Duration and
// Final are filled in from the frames; a zero Timestamp becomes now. A failed
// save leaves no directory behind.
func (s *Store) Save(meta RunMetadata, frames []sim.Frame) (string, error) {
	if meta.Name == "" {
		meta.Name = "run"
	}
	meta.ID = fmt.Sprintf("%s_%s", meta.Name, uuid.NewString()[:8])
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	if len(frames) > 0 {
		last := frames[len(frames)-1]
		meta.Steps = last.Step
		meta.Duration = last.Time
		meta.Initial = frames[0].Pose
		meta.Final = last.Pose
	}
	sanitize(&meta)

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}
	if err := writeRun(runDir, meta, frames); err != nil {
		return "", multierr.Append(err, os.RemoveAll(runDir))
	}
	return meta.ID, nil
}

// sanitize drops values encoding/json cannot represent.
func sanitize(meta *RunMetadata) {
	if !meta.Initial.IsFinite() {
		meta.Initial = dynamo.Pose{}
		meta.Diverged = true
	}
	if !meta.Final.IsFinite() {
		meta.Final = dynamo.Pose{}
		meta.Diverged = true
	}
	if meta.Metrics == nil {
		return
	}
	finite := make(map[string]float64, len(meta.Metrics))
	for name, v := range meta.Metrics {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			meta.Diverged = true
			continue
		}
		finite[name] = v
	}
	meta.Metrics = finite
}

func writeRun(runDir string, meta RunMetadata, frames []sim.Frame) (err error) {
	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, metaFile.Close()) }()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return err
	}

	csvFile, err := os.Create(filepath.Join(runDir, framesFile))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, csvFile.Close()) }()

	return ExportCSV(csvFile, frames)
}

// List returns every readable run, oldest first.
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

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("reading %s metadata: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadFrames(runID string) ([]sim.Frame, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, framesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	return ReadCSV(file)
}

// ExportCSV writes frames with a header row.
func ExportCSV(w io.Writer, frames []sim.Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(frameHeader); err != nil {
		return err
	}

	row := make([]string, len(frameHeader))
	for _, f := range frames {
		row[0] = strconv.FormatFloat(f.Time, 'g', -1, 64)
		row[1] = strconv.Itoa(f.Step)
		for i, v := range []float32{
			f.Pose.X, f.Pose.Y, f.Pose.Z, f.Pose.Roll, f.Pose.Pitch, f.Pose.Yaw,
			f.State.Vx, f.State.Vy, f.State.Vz, f.State.RollRate, f.State.PitchRate, f.State.YawRate,
		} {
			row[i+2] = strconv.FormatFloat(float64(v), 'g', -1, 32)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses frames written by ExportCSV.
func ReadCSV(r io.Reader) ([]sim.Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(frameHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []sim.Frame{}, nil
	}

	frames := make([]sim.Frame, 0, len(records)-1)
	for i, record := range records[1:] {
		f, err := parseFrame(record)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func parseFrame(record []string) (sim.Frame, error) {
	var f sim.Frame
	var err error

	if f.Time, err = strconv.ParseFloat(record[0], 64); err != nil {
		return f, err
	}
	if f.Step, err = strconv.Atoi(record[1]); err != nil {
		return f, err
	}

	fields := []*float32{
		&f.Pose.X, &f.Pose.Y, &f.Pose.Z, &f.Pose.Roll, &f.Pose.Pitch, &f.Pose.Yaw,
		&f.State.Vx, &f.State.Vy, &f.State.Vz, &f.State.RollRate, &f.State.PitchRate, &f.State.YawRate,
	}
	for i, dst := range fields {
		v, err := strconv.ParseFloat(record[i+2], 32)
		if err != nil {
			return f, fmt.Errorf("column %s: %w", frameHeader[i+2], err)
		}
		*dst = float32(v)
	}
	return f, nil
}
