package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/phasecube/internal/analysis"
	"github.com/san-kum/phasecube/internal/automation"
	"github.com/san-kum/phasecube/internal/config"
	"github.com/san-kum/phasecube/internal/observer"
	"github.com/san-kum/phasecube/internal/optim"
	"github.com/san-kum/phasecube/internal/storage"
	"github.com/san-kum/phasecube/internal/swarm"
	"github.com/san-kum/phasecube/internal/viz"
)

func runLive(cmd *cobra.Command, args []string) error {
	exp, err := buildExperiment(cmd)
	if err != nil {
		return err
	}
	maxTicks := 0
	if cmd.Flags().Changed("ticks") {
		maxTicks = exp.Config().Ticks
	}
	return viz.Run(exp, viz.Options{
		FrameRate: frameRate,
		MaxTicks:  maxTicks,
		Theme:     theme,
		Color:     !noColor,
	})
}

func serve(cmd *cobra.Command, args []string) error {
	exp, err := buildExperiment(cmd)
	if err != nil {
		return err
	}
	opts := observer.Options{
		Interval:    time.Duration(interval) * time.Millisecond,
		Z:           slice,
		AllowRemote: remote,
	}
	if cmd.Flags().Changed("ticks") {
		opts.MaxTicks = exp.Config().Ticks
	}
	srv := observer.NewServer(exp, logger, opts)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()

	g.Go(func() error {
		// A finished loop takes the listener down with it.
		defer stopLoop()
		err := srv.Run(loopCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logger.Info("observer listening", "addr", addr, "ws", "/ws", "frame", "/frame")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-loopCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("observer stopped", "ticks", exp.Swarm().Tick(), "dropped_frames", srv.Hub().Dropped())
	return err
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	newMetrics, err := metricFactory()
	if err != nil {
		return err
	}
	runner := &automation.Runner{Logger: logger, Metrics: newMetrics}

	start := time.Now()
	cfg, result, err := runner.Run(cmd.Context(), sc)
	if err != nil {
		return err
	}
	logger.Info("scenario finished", "name", sc.Name, "ticks", result.Ticks, "elapsed", time.Since(start).Round(time.Millisecond))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE")
	for _, name := range sortedMetricNames(result.Metrics) {
		fmt.Fprintf(w, "%s\t%.6f\n", name, result.Metrics[name])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for _, e := range result.Errors {
		fmt.Printf("error: %v\n", e)
	}

	if sc.SaveAs == "" {
		return nil
	}
	st, done, err := openStore(useCatalog)
	if err != nil {
		return err
	}
	defer done()
	runID, err := st.Save(sc.SaveAs, cfg, result)
	if err != nil {
		return err
	}
	fmt.Printf("saved: %s\n", runID)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	sw, err := automation.LoadSweep(args[0])
	if err != nil {
		return err
	}
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	newMetrics, err := metricFactory()
	if err != nil {
		return err
	}

	points, err := automation.RunSweep(cmd.Context(), base, sw, automation.SweepOptions{Logger: logger, Metrics: newMetrics})
	if err != nil {
		return err
	}
	if len(points) == 0 {
		fmt.Println("no points")
		return nil
	}

	names := points[0].MetricNames()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSEEDS", strings.ToUpper(sw.Param))
	for _, name := range names {
		fmt.Fprintf(w, "\t%s", strings.ToUpper(name))
	}
	fmt.Fprintln(w)
	for _, p := range points {
		fmt.Fprintf(w, "%.4g\t%d", p.Value, p.Seeds)
		for _, name := range names {
			fmt.Fprintf(w, "\t%.4f±%.4f", p.Mean[name], p.StdDev[name])
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if outFile == "" {
		return nil
	}
	data, err := json.MarshalIndent(points, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(outFile, data, 0644)
}

// parseAxis reads path=v1,v2,... into a search axis.
func parseAxis(arg string) (optim.Axis, error) {
	path, list, ok := strings.Cut(arg, "=")
	if !ok || path == "" || list == "" {
		return optim.Axis{}, fmt.Errorf("axis %q: expected path=v1,v2,...", arg)
	}
	axis := optim.Axis{Path: path}
	for _, field := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return optim.Axis{}, fmt.Errorf("axis %s: %w", path, err)
		}
		axis.Values = append(axis.Values, v)
	}
	return axis, nil
}

func tune(cmd *cobra.Command, args []string) error {
	objective, _ := cmd.Flags().GetString("objective")
	maximize, _ := cmd.Flags().GetBool("maximize")

	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	newMetrics, err := metricFactory()
	if err != nil {
		return err
	}
	axes := make([]optim.Axis, 0, len(args))
	for _, arg := range args {
		a, err := parseAxis(arg)
		if err != nil {
			return err
		}
		axes = append(axes, a)
	}

	gs := optim.NewGridSearch(base, axes, objective)
	gs.Maximize(maximize)
	gs.SetMetrics(newMetrics)

	best, score, trials, err := gs.Search(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, a := range axes {
		fmt.Fprintf(w, "%s\t", strings.ToUpper(a.Path))
	}
	fmt.Fprintln(w, strings.ToUpper(objective))
	for _, t := range trials {
		for _, a := range axes {
			fmt.Fprintf(w, "%.4g\t", t.Params[a.Path])
		}
		if t.Err != "" {
			fmt.Fprintf(w, "rejected: %s\n", t.Err)
			continue
		}
		fmt.Fprintf(w, "%.6f\n", t.Score)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nbest %s = %.6f at", objective, score)
	for _, a := range axes {
		fmt.Printf(" %s=%g", a.Path, best[a.Path])
	}
	fmt.Println()
	return nil
}

func sensitivity(cmd *cobra.Command, args []string) error {
	eps, _ := cmd.Flags().GetFloat64("eps")
	saturate, _ := cmd.Flags().GetFloat64("saturate")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	res, err := analysis.Sensitivity(cfg.Swarm, cfg.Seed, eps, cfg.Ticks, saturate)
	if err != nil {
		return err
	}

	fmt.Printf("ticks: %d\n", len(res.Separation))
	fmt.Printf("initial separation: %.3g\n", eps)
	if n := len(res.Separation); n > 0 {
		fmt.Printf("final separation: %.3g\n", res.Separation[n-1])
	}
	fmt.Printf("growth rate: %.4f per tick\n", res.Rate)
	switch {
	case res.Rate > 0.01:
		fmt.Println("sensitive: small differences grow")
	case res.Rate < -0.01:
		fmt.Println("contracting: small differences die out")
	default:
		fmt.Println("neutral")
	}
	return nil
}

func scan(cmd *cobra.Command, args []string) error {
	path := args[0]
	lo, _ := cmd.Flags().GetFloat64("min")
	hi, _ := cmd.Flags().GetFloat64("max")
	steps, _ := cmd.Flags().GetInt("steps")
	transient, _ := cmd.Flags().GetInt("transient")
	record, _ := cmd.Flags().GetInt("record")
	observe, _ := cmd.Flags().GetString("observe")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	col := storage.ColumnIndex(observe)
	if col < 0 {
		return fmt.Errorf("unknown column: %s", observe)
	}

	// Paths are relative to the swarm section. Check once so the scan
	// closure can drop the error.
	full := "swarm." + strings.TrimPrefix(path, "swarm.")
	probe, err := cfg.Clone()
	if err != nil {
		return err
	}
	if err := probe.Set(full, lo); err != nil {
		return err
	}

	points, err := analysis.Scan(cmd.Context(), analysis.ScanOptions{
		Base: cfg.Swarm,
		Seed: cfg.Seed,
		Set: func(sc *swarm.Config, v float64) {
			wrap := config.DefaultConfig()
			wrap.Swarm = *sc
			if err := wrap.Set(full, v); err == nil {
				*sc = wrap.Swarm
			}
		},
		Min:       lo,
		Max:       hi,
		Steps:     steps,
		Transient: transient,
		Record:    record,
		Observe:   func(r swarm.Report) float64 { return storage.Row(r)[col] },
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tMEAN\tSTD\tMIN\tMAX\tPERIOD\n", strings.ToUpper(full))
	for _, p := range points {
		period, _ := analysis.DominantPeriod(p.Values)
		fmt.Fprintf(w, "%.4g\t%.4f\t%.4f\t%.4f\t%.4f\t%.1f\n",
			p.Param, p.Summary.Mean, p.Summary.StdDev, p.Summary.Min, p.Summary.Max, period)
	}
	return w.Flush()
}

func sortedMetricNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
