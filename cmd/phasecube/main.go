package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/phasecube/internal/config"
	"github.com/san-kum/phasecube/internal/experiment"
	"github.com/san-kum/phasecube/internal/metrics"
)

var (
	dataDir string
	verbose bool

	configFile string
	preset     string
	ticks      int
	seed       int64
	sampleEach int
	validate   bool
	size       int
	grids      int
	sets       []string
	metricList []string

	tickLog    bool
	useCatalog bool

	// live and serve
	frameRate int
	theme     string
	noColor   bool
	addr      string
	interval  int
	slice     int
	remote    bool

	lag     int
	limit   int
	outFile string
)

var logger *slog.Logger

func main() {
	rootCmd := &cobra.Command{
		Use:           "phasecube",
		Short:         "three-phase cellular swarm lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".phasecube", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a swarm and store its trace",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	configFlags(runCmd)
	runCmd.Flags().BoolVar(&tickLog, "ticklog", false, "write every tick report to a compressed log")
	runCmd.Flags().BoolVar(&useCatalog, "catalog", true, "index the run in the sqlite catalog")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}
	listCmd.Flags().StringVar(&preset, "preset", "", "only runs of this preset (catalog)")
	listCmd.Flags().IntVar(&limit, "limit", 0, "at most this many runs, newest first (catalog)")

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot trace columns of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSlice("columns", []string{"energy", "coherence", "bias_energy"}, "trace columns to plot")
	plotCmd.Flags().Int("width", 80, "plot width")
	plotCmd.Flags().Int("height", 10, "plot height")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "copy a run's metric trace as csv",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "replay a run from its stored config and export every report as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render trace columns of a run as svg",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringSlice("columns", []string{"energy", "dispersion", "coherence"}, "trace columns to draw")
	exportSVGCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default <run_id>.svg)")
	exportSVGCmd.Flags().Int("width", 800, "image width")
	exportSVGCmd.Flags().Int("height", 300, "image height")

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "run a swarm and render the final liquid slice of each grid as svg",
		Args:  cobra.NoArgs,
		RunE:  snapshot,
	}
	configFlags(snapshotCmd)
	snapshotCmd.Flags().Int("z", -1, "slice depth (default middle)")
	snapshotCmd.Flags().String("prefix", "snapshot", "output file prefix")
	snapshotCmd.Flags().Int("cell", 12, "pixels per cell")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "spectral and summary analysis of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringSlice("columns", []string{"energy", "coherence", "divergence", "bias_energy"}, "trace columns to analyze")
	analyzeCmd.Flags().IntVar(&lag, "lag", 1, "autocorrelation lag")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	metricsCmd := &cobra.Command{
		Use:   "metrics",
		Short: "list metrics and drivers",
		Args:  cobra.NoArgs,
		RunE:  listMetrics,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark tick throughput across lattice sizes",
		Args:  cobra.NoArgs,
		RunE:  bench,
	}
	benchCmd.Flags().String("preset", "canonical", "preset to benchmark")
	benchCmd.Flags().Int("ticks", 200, "ticks per size")
	benchCmd.Flags().IntSlice("sizes", []int{4, 8, 12, 16}, "lattice sizes")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "step a swarm in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	configFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", 20, "ticks per second")
	liveCmd.Flags().StringVar(&theme, "theme", "thermal", "color theme")
	liveCmd.Flags().BoolVar(&noColor, "no-color", false, "monochrome heatmap")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "stream a running swarm over websocket",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	configFlags(serveCmd)
	serveCmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8090", "listen address")
	serveCmd.Flags().IntVar(&interval, "interval", 50, "milliseconds between ticks")
	serveCmd.Flags().IntVar(&slice, "z", 0, "initial slice depth")
	serveCmd.Flags().BoolVar(&remote, "allow-remote", false, "accept non-loopback clients")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().StringSliceVar(&metricList, "metrics", nil, "metrics to record (default all)")
	scenarioCmd.Flags().BoolVar(&useCatalog, "catalog", true, "index saved runs in the sqlite catalog")

	sweepCmd := &cobra.Command{
		Use:   "sweep [file]",
		Short: "sweep one config path across seeds",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	configFlags(sweepCmd)
	sweepCmd.Flags().StringVarP(&outFile, "output", "o", "", "write points as json")

	tuneCmd := &cobra.Command{
		Use:   "tune [path=v1,v2,...]...",
		Short: "grid search config paths against a metric",
		Args:  cobra.MinimumNArgs(1),
		RunE:  tune,
	}
	configFlags(tuneCmd)
	tuneCmd.Flags().String("objective", "energy_drift", "metric to optimize")
	tuneCmd.Flags().Bool("maximize", false, "keep the highest score")

	sensitivityCmd := &cobra.Command{
		Use:   "sensitivity",
		Short: "measure divergence of two nearly identical swarms",
		Args:  cobra.NoArgs,
		RunE:  sensitivity,
	}
	configFlags(sensitivityCmd)
	sensitivityCmd.Flags().Float64("eps", 1e-6, "initial perturbation")
	sensitivityCmd.Flags().Float64("saturate", 0.05, "stop fitting once separation reaches this")

	scanCmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "scan one swarm parameter and summarize late-time behavior",
		Args:  cobra.ExactArgs(1),
		RunE:  scan,
	}
	configFlags(scanCmd)
	scanCmd.Flags().Float64("min", 0, "first value")
	scanCmd.Flags().Float64("max", 1, "last value")
	scanCmd.Flags().Int("steps", 11, "values between min and max")
	scanCmd.Flags().Int("transient", 100, "ticks discarded per value")
	scanCmd.Flags().Int("record", 100, "ticks recorded per value")
	scanCmd.Flags().String("observe", "energy", "trace column to record")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, exportCSVCmd, exportJSONCmd, exportSVGCmd,
		snapshotCmd, analyzeCmd, presetsCmd, metricsCmd, benchCmd, liveCmd, serveCmd, scenarioCmd,
		sweepCmd, tuneCmd, sensitivityCmd, scanCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// configFlags registers the flags every command that builds a swarm shares.
func configFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().IntVar(&ticks, "ticks", config.DefaultTicks, "ticks to run")
	cmd.Flags().Int64Var(&seed, "seed", config.DefaultSeed, "random seed")
	cmd.Flags().IntVar(&sampleEach, "sample", config.DefaultSampleEvery, "keep every n-th report")
	cmd.Flags().BoolVar(&validate, "validate", false, "stop on non-finite state")
	cmd.Flags().IntVar(&size, "size", 0, "lattice edge length")
	cmd.Flags().IntVar(&grids, "grids", 0, "grid count (2 or 3)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override a config path, e.g. swarm.phase.alpha=0.3")
	cmd.Flags().StringSliceVar(&metricList, "metrics", nil, "metrics to record (default all)")
}

// loadConfig resolves the config file or preset, then applies flags the
// user set explicitly and finally --set overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = c
		if cmd.Flags().Changed("preset") {
			logger.Warn("--preset ignored with --config", "preset", preset)
		}
	case preset != "":
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
	default:
		cfg = config.GetPreset("canonical")
	}

	if cmd.Flags().Changed("ticks") {
		cfg.Ticks = ticks
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("sample") {
		cfg.SampleEvery = sampleEach
	}
	if cmd.Flags().Changed("validate") {
		cfg.ValidateState = validate
	}
	if cmd.Flags().Changed("size") {
		cfg.Swarm.Size = size
	}
	if cmd.Flags().Changed("grids") {
		cfg.Swarm.Grids = grids
	}

	for _, kv := range sets {
		path, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("--set %q: expected path=value", kv)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("--set %s: %w", path, err)
		}
		if err := cfg.Set(strings.TrimSpace(path), v); err != nil {
			return nil, fmt.Errorf("--set %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// metricFactory resolves --metrics once and returns a constructor for fresh
// instances, as ensembles need one set per run.
func metricFactory() (func() []metrics.Metric, error) {
	registry := experiment.NewRegistry()
	if _, err := registry.Metrics(metricList); err != nil {
		return nil, err
	}
	names := append([]string(nil), metricList...)
	return func() []metrics.Metric {
		ms, _ := registry.Metrics(names)
		return ms
	}, nil
}

func buildExperiment(cmd *cobra.Command) (*experiment.Experiment, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	newMetrics, err := metricFactory()
	if err != nil {
		return nil, err
	}
	exp, err := experiment.New(cfg)
	if err != nil {
		return nil, err
	}
	for _, m := range newMetrics() {
		exp.AddMetric(m)
	}
	logger.Debug("experiment ready", "preset", cfg.Preset, "seed", cfg.Seed, "ticks", cfg.Ticks,
		"size", cfg.Swarm.Size, "grids", cfg.Swarm.Grids)
	return exp, nil
}
