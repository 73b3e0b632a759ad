package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/phasecube/internal/analysis"
	"github.com/san-kum/phasecube/internal/config"
	"github.com/san-kum/phasecube/internal/experiment"
	"github.com/san-kum/phasecube/internal/export"
	"github.com/san-kum/phasecube/internal/storage"
)

func openStore(withCatalog bool) (*storage.Store, func(), error) {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return nil, nil, err
	}
	if !withCatalog {
		return st, func() {}, nil
	}
	cat, err := storage.OpenCatalog(st.CatalogPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open catalog: %w", err)
	}
	st.AttachCatalog(cat)
	return st, func() { _ = cat.Close() }, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	exp, err := buildExperiment(cmd)
	if err != nil {
		return err
	}
	cfg := exp.Config()

	st, done, err := openStore(useCatalog)
	if err != nil {
		return err
	}
	defer done()

	runID := storage.NewRunID(cfg)
	var tl *storage.TickLog
	if tickLog {
		if tl, err = storage.NewTickLog(st.TickLogPath(runID)); err != nil {
			return err
		}
		exp.AddObserver(tl)
	}

	logger.Info("running", "preset", cfg.Preset, "ticks", cfg.Ticks, "seed", cfg.Seed, "size", cfg.Swarm.Size)
	start := time.Now()
	result, runErr := exp.Run(cmd.Context())
	elapsed := time.Since(start)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if runErr != nil {
		logger.Warn("interrupted, saving partial run", "ticks", result.Ticks)
	}

	if tl != nil {
		if err := tl.Close(); err != nil {
			return fmt.Errorf("tick log: %w", err)
		}
		logger.Debug("tick log written", "reports", tl.Count(), "path", st.TickLogPath(runID))
	}

	if _, err := st.Save(runID, cfg, result); err != nil {
		return err
	}

	fmt.Printf("run: %s\n", runID)
	fmt.Printf("ticks: %d (%v, %.0f ticks/s)\n", result.Ticks, elapsed.Round(time.Millisecond), float64(result.Ticks)/elapsed.Seconds())
	for _, e := range result.Errors {
		fmt.Printf("error: %v\n", e)
	}

	fmt.Println("\nmetrics:")
	for _, name := range sortedMetricNames(result.Metrics) {
		fmt.Printf("  %s: %.6f\n", name, result.Metrics[name])
	}
	if final, ok := result.Final(); ok {
		fmt.Printf("\nfinal tick %d: energy %.4f coherence %.4f divergence %.4f bias %.4f\n",
			final.Tick, final.Raw.Energy, final.Raw.Coherence, final.Raw.Divergence, final.BiasEnergy)
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)

	var runs []storage.RunMetadata
	if _, err := os.Stat(st.CatalogPath()); err == nil {
		cat, err := storage.OpenCatalog(st.CatalogPath())
		if err != nil {
			return err
		}
		defer cat.Close()
		if runs, err = cat.List(cmd.Context(), storage.Query{Preset: preset, Limit: limit}); err != nil {
			return err
		}
	} else {
		all, err := st.List()
		if err != nil {
			return err
		}
		for _, r := range all {
			if preset == "" || r.Preset == preset {
				runs = append(runs, r)
			}
		}
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tTIME\tTICKS\tSIZE\tGRIDS\tRULE\tENERGY\tERRORS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%.4f\t%d\n",
			run.ID,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Ticks,
			run.Size,
			run.Grids,
			run.Rule,
			run.Metrics["energy"],
			len(run.Errors),
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	cols, _ := cmd.Flags().GetStringSlice("columns")
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tr, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}
	if len(tr.Rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("preset: %s\n", meta.Preset)
	fmt.Printf("samples: %d\n\n", len(tr.Rows))

	for _, name := range cols {
		data := tr.Column(name)
		if data == nil {
			return fmt.Errorf("unknown column: %s", name)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Caption(name),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// output opens outFile, or stdout when it is empty.
func output() (io.Writer, func() error, error) {
	if outFile == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	src, err := os.Open(st.MetricsPath(args[0]))
	if err != nil {
		return err
	}
	defer src.Close()

	w, closeOut, err := output()
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		_ = closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return err
	}
	if outFile != "" {
		fmt.Fprintf(os.Stderr, "exported to %s\n", outFile)
	}
	return nil
}

// exportJSON replays the stored config. Runs are deterministic for a seed,
// so the replay reproduces every report, not just the sampled trace.
func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	cfg, err := st.LoadConfig(args[0])
	if err != nil {
		return err
	}
	cfg.SampleEvery = 1

	exp, err := experiment.New(cfg)
	if err != nil {
		return err
	}
	newMetrics, err := metricFactory()
	if err != nil {
		return err
	}
	for _, m := range newMetrics() {
		exp.AddMetric(m)
	}
	result, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}

	w, closeOut, err := output()
	if err != nil {
		return err
	}
	if err := storage.WriteJSON(w, cfg, result); err != nil {
		_ = closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return err
	}
	if outFile != "" {
		fmt.Fprintf(os.Stderr, "exported %d reports to %s\n", len(result.Reports), outFile)
	}
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	runID := args[0]
	cols, _ := cmd.Flags().GetStringSlice("columns")
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")

	tr, err := storage.New(dataDir).LoadTrace(runID)
	if err != nil {
		return err
	}
	series := make([]export.Series, 0, len(cols))
	for _, name := range cols {
		data := tr.Column(name)
		if data == nil {
			return fmt.Errorf("unknown column: %s", name)
		}
		series = append(series, export.Series{Name: name, Values: data})
	}

	path := outFile
	if path == "" {
		path = runID + ".svg"
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteSVG(f, export.TraceToSVG(series, width, height)); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}

func snapshot(cmd *cobra.Command, args []string) error {
	z, _ := cmd.Flags().GetInt("z")
	prefix, _ := cmd.Flags().GetString("prefix")
	cell, _ := cmd.Flags().GetInt("cell")

	exp, err := buildExperiment(cmd)
	if err != nil {
		return err
	}
	if _, err := exp.Run(cmd.Context()); err != nil {
		return err
	}

	s := exp.Swarm()
	if z < 0 {
		z = s.Size() / 2
	}
	for _, role := range s.Roles() {
		g := s.Grid(role)
		doc := export.SliceToSVG(g.Topology().SliceZ(g.Liquid(), z), s.Size(), float64(cell))
		path := fmt.Sprintf("%s_%s.svg", prefix, role)
		if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
			return err
		}
		fmt.Println(path)
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	cols, _ := cmd.Flags().GetStringSlice("columns")

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tr, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}
	if len(tr.Rows) < 4 {
		return fmt.Errorf("need at least 4 samples, have %d", len(tr.Rows))
	}

	fmt.Printf("analysis: %s\n", meta.ID)
	fmt.Printf("samples: %d\n\n", len(tr.Rows))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "COLUMN\tMEAN\tSTD\tMIN\tMAX\tPERIOD\tSHARE\tACF(%d)\n", lag)
	for _, name := range cols {
		data := tr.Column(name)
		if data == nil {
			return fmt.Errorf("unknown column: %s", name)
		}
		sum := analysis.Summarize(data)
		period, share := analysis.DominantPeriod(data)
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.1f\t%.2f\t%.3f\n",
			name, sum.Mean, sum.StdDev, sum.Min, sum.Max, period, share, analysis.Autocorrelation(data, lag))
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tSIZE\tGRIDS\tRULE\tBIAS\tDELAY\tSCHEDULE")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		r := cfg.Swarm.Phase.Rule
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\t%v\n",
			name,
			cfg.Swarm.Size,
			cfg.Swarm.Grids,
			fmt.Sprintf("%s/%s/%s", r.Bounding, r.SolidSource, r.ParityMode),
			cfg.Swarm.Bias.Mode,
			cfg.Swarm.Delay.Source,
			cfg.Swarm.Lens.Schedule != nil,
		)
	}
	return w.Flush()
}

func listMetrics(cmd *cobra.Command, args []string) error {
	registry := experiment.NewRegistry()
	fmt.Println("metrics:")
	for _, name := range registry.ListMetrics() {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println("drivers:")
	for _, name := range registry.ListDrivers() {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func bench(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("preset")
	n, _ := cmd.Flags().GetInt("ticks")
	sizes, _ := cmd.Flags().GetIntSlice("sizes")

	if config.GetPreset(name) == nil {
		return fmt.Errorf("unknown preset: %s", name)
	}

	fmt.Printf("benchmarking %s\n\n", name)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SIZE\tCELLS\tTICKS\tTIME\tTICKS/SEC\tCELLS/SEC")

	for _, sz := range sizes {
		cfg := config.GetPreset(name)
		cfg.Swarm.Size = sz
		cfg.Ticks = n
		cfg.Seed = 42

		exp, err := experiment.New(cfg)
		if err != nil {
			return err
		}
		start := time.Now()
		result, err := exp.Run(cmd.Context())
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		cells := sz * sz * sz * cfg.Swarm.Grids
		perSec := float64(result.Ticks) / elapsed.Seconds()
		fmt.Fprintf(w, "%d\t%d\t%d\t%v\t%.0f\t%.0f\n",
			sz, cells, result.Ticks, elapsed.Round(time.Microsecond), perSec, perSec*float64(cells))
	}
	return w.Flush()
}
