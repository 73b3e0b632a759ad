package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/phasecube/internal/config"
	"github.com/san-kum/phasecube/internal/experiment"
	"github.com/san-kum/phasecube/internal/swarm"
)

type ExportData struct {
	Preset  string             `json:"preset"`
	Seed    int64              `json:"seed"`
	Size    int                `json:"size"`
	Grids   int                `json:"grids"`
	Ticks   int                `json:"ticks"`
	Config  *config.Config     `json:"config"`
	Reports []swarm.Report     `json:"reports"`
	Metrics map[string]float64 `json:"metrics"`
}

func exportData(cfg *config.Config, result *experiment.Result) ExportData {
	return ExportData{
		Preset:  cfg.Preset,
		Seed:    result.Seed,
		Size:    cfg.Swarm.Size,
		Grids:   cfg.Swarm.Grids,
		Ticks:   result.Ticks,
		Config:  cfg,
		Reports: result.Reports,
		Metrics: result.Metrics,
	}
}

func ExportJSON(path string, cfg *config.Config, result *experiment.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, cfg, result)
}

func WriteJSON(w io.Writer, cfg *config.Config, result *experiment.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exportData(cfg, result))
}
