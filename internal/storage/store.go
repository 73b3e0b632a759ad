package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/phasecube/internal/config"
	"github.com/san-kum/phasecube/internal/experiment"
)

const (
	metadataFile = "metadata.json"
	configFile   = "config.yaml"
	metricsFile  = "metrics.csv"
	TickLogFile  = "ticks.jsonl.zst"
	CatalogFile  = "catalog.db"
)

type Store struct {
	baseDir string
	catalog *Catalog
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// AttachCatalog indexes every later Save into c.
func (s *Store) AttachCatalog(c *Catalog) { s.catalog = c }

// RunDir returns the directory holding a run's files.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Preset    string             `json:"preset"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Ticks     int                `json:"ticks"`
	Size      int                `json:"size"`
	Grids     int                `json:"grids"`
	Rule      string             `json:"rule"`
	Metrics   map[string]float64 `json:"metrics"`
	Errors    []string           `json:"errors,omitempty"`
}

// NewRunID names a run after its preset, start time and seed.
func NewRunID(cfg *config.Config) string {
	name := cfg.Preset
	if name == "" {
		name = "custom"
	}
	return fmt.Sprintf("%s_%d_s%d", name, time.Now().UnixMilli(), cfg.Seed)
}

func metadataFor(runID string, cfg *config.Config, result *experiment.Result) RunMetadata {
	r := cfg.Swarm.Phase.Rule
	meta := RunMetadata{
		ID:        runID,
		Preset:    cfg.Preset,
		Timestamp: time.Now(),
		Seed:      cfg.Seed,
		Ticks:     result.Ticks,
		Size:      cfg.Swarm.Size,
		Grids:     cfg.Swarm.Grids,
		Rule:      fmt.Sprintf("%s/%s/%s", r.Bounding, r.SolidSource, r.ParityMode),
		Metrics:   result.Metrics,
	}
	for _, err := range result.Errors {
		meta.Errors = append(meta.Errors, err.Error())
	}
	return meta
}

// Save writes metadata, the resolved config and the sampled metric trace
// under a fresh run directory. Pass runID "" to generate one.
func (s *Store) Save(runID string, cfg *config.Config, result *experiment.Result) (string, error) {
	if runID == "" {
		runID = NewRunID(cfg)
	}
	runDir := s.RunDir(runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := metadataFor(runID, cfg, result)
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
		return "", err
	}
	if err := writeTrace(filepath.Join(runDir, metricsFile), result); err != nil {
		return "", err
	}

	if s.catalog != nil {
		if err := s.catalog.Record(meta); err != nil {
			return runID, fmt.Errorf("catalog: %w", err)
		}
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTrace(path string, result *experiment.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return err
	}
	for _, rep := range result.Reports {
		vals := Row(rep)
		row := make([]string, len(vals))
		for i, v := range vals {
			row[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

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
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.RunDir(runID), metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadConfig reads back the config a run was made with.
func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.RunDir(runID), configFile))
}

// LoadTrace reads the metric trace written by Save.
func (s *Store) LoadTrace(runID string) (*Trace, error) {
	file, err := os.Open(filepath.Join(s.RunDir(runID), metricsFile))
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
	if len(records) == 0 {
		return &Trace{}, nil
	}

	tr := &Trace{Columns: records[0], Rows: make([][]float64, 0, len(records)-1)}
	for _, record := range records[1:] {
		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: column %s: %w", metricsFile, tr.Columns[j], err)
			}
			row[j] = v
		}
		tr.Rows = append(tr.Rows, row)
	}
	return tr, nil
}

// MetricsPath returns the CSV trace path for a run.
func (s *Store) MetricsPath(runID string) string {
	return filepath.Join(s.RunDir(runID), metricsFile)
}

// CatalogPath is where the run catalog lives under the store root.
func (s *Store) CatalogPath() string {
	return filepath.Join(s.baseDir, CatalogFile)
}

// TickLogPath returns the compressed per-tick log path for a run.
func (s *Store) TickLogPath(runID string) string {
	return filepath.Join(s.RunDir(runID), TickLogFile)
}
