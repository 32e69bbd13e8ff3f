package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/qsched/internal/batch"
	"github.com/san-kum/qsched/internal/cache"
	"github.com/san-kum/qsched/internal/config"
	"github.com/san-kum/qsched/internal/engine"
	"github.com/san-kum/qsched/internal/export"
	"github.com/san-kum/qsched/internal/oscillator"
	"github.com/san-kum/qsched/internal/plugin"
	"github.com/san-kum/qsched/internal/results"
	"github.com/san-kum/qsched/internal/routine"
	"github.com/san-kum/qsched/internal/schedule"
	"github.com/san-kum/qsched/internal/storage"
	"github.com/san-kum/qsched/internal/tui"
)

var (
	dataDir       string
	configFile    string
	functionsPath string
	startTime     float64
	omega         float64
	saveRun       bool
	live          bool
	track         string
	parallel      int
	svgOut        string
	verbose       bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "qsched",
		Short: "schedule-driven execution engine for numeric simulations",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "per-step progress logging")

	runCmd := &cobra.Command{
		Use:   "run [schedule.yaml]",
		Short: "execute a schedule file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSchedule,
	}
	runCmd.Flags().StringVar(&functionsPath, "functions", "", "routine file (Go source)")
	runCmd.Flags().Float64Var(&startTime, "start-time", 0, "override schedule start time")
	runCmd.Flags().Float64Var(&omega, "omega", config.DefaultOmega, "oscillator frequency for builtin routines")
	runCmd.Flags().BoolVar(&saveRun, "save", false, "persist results to the data directory")
	runCmd.Flags().BoolVar(&live, "live", false, "live progress view")
	runCmd.Flags().StringVar(&track, "track", "", "result key to plot in the live view")
	runCmd.Flags().IntVar(&parallel, "parallel", 0, "run the file's schedules concurrently, at most N at a time (0 = sequential)")

	validateCmd := &cobra.Command{
		Use:   "validate [schedule.yaml]",
		Short: "validate a schedule file without executing it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  validateSchedule,
	}
	validateCmd.Flags().StringVar(&functionsPath, "functions", "", "routine file (Go source)")
	validateCmd.Flags().Float64Var(&omega, "omega", config.DefaultOmega, "oscillator frequency for builtin routines")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the numeric results of a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "print the stored results of a saved run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render the numeric results of a saved run as an SVG plot",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&svgOut, "output", "o", "", "output file (default stdout)")

	routinesCmd := &cobra.Command{
		Use:   "routines",
		Short: "list registered routines",
		RunE:  listRoutines,
	}
	routinesCmd.Flags().StringVar(&functionsPath, "functions", "", "routine file (Go source)")
	routinesCmd.Flags().Float64Var(&omega, "omega", config.DefaultOmega, "oscillator frequency for builtin routines")

	rootCmd.AddCommand(runCmd, validateCmd, listCmd, plotCmd, exportCmd, exportSVGCmd, routinesCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges the optional config file with flag overrides. Flags win
// over the file, the file wins over defaults.
func loadConfig(cmd *cobra.Command, args []string, needSchedule bool) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if len(args) > 0 {
		cfg.SchedulePath = args[0]
	}
	if cmd.Flags().Changed("functions") {
		cfg.FunctionsPath = functionsPath
	}
	if cfg.FunctionsPath == "" {
		cfg.FunctionsPath = os.Getenv(config.EnvFunctionsPath)
	}
	if cmd.Flags().Changed("start-time") {
		cfg.StartTime = startTime
	}
	if cmd.Flags().Changed("omega") {
		cfg.Omega = omega
	}
	if cmd.Flags().Changed("track") {
		cfg.Track = track
	}
	if cmd.Flags().Changed("data") || cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}
	if needSchedule && cfg.SchedulePath == "" {
		return nil, errors.New("no schedule given: pass a path or set `schedule` in the config")
	}
	return cfg, nil
}

// buildRegistry assembles the builtin oscillator routines and any user
// routine file behind a shared cache.
func buildRegistry(cfg *config.Config) (*routine.Registry, *oscillator.Oscillator, error) {
	var cacheOpts []cache.Option
	if cfg.Cache.MaxEntries > 0 {
		cacheOpts = append(cacheOpts, cache.WithMaxEntries(cfg.Cache.MaxEntries))
	}
	if cfg.Cache.TTLSeconds > 0 {
		cacheOpts = append(cacheOpts, cache.WithTTL(cfg.Cache.TTL()))
	}
	reg := routine.NewRegistry(
		routine.WithCache(cache.New(cacheOpts...)),
		routine.WithLogger(newLogger()),
	)

	osc := oscillator.New(cfg.Omega)
	if err := osc.Register(reg); err != nil {
		return nil, nil, err
	}
	if cfg.FunctionsPath != "" {
		if err := plugin.Register(cfg.FunctionsPath, reg); err != nil {
			return nil, nil, fmt.Errorf("load routine file %s: %w", cfg.FunctionsPath, err)
		}
	}
	return reg, osc, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args, true)
	if err != nil {
		return err
	}
	reg, osc, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	schedules, err := schedule.LoadFile(cfg.SchedulePath)
	if err != nil {
		return err
	}
	// Every schedule validates before any executes.
	for _, s := range schedules {
		if err := schedule.Validate(s, reg); err != nil {
			return err
		}
	}

	logger := newLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var st *storage.Store
	if saveRun {
		st = storage.New(cfg.DataDir)
		if err := st.Init(); err != nil {
			return err
		}
	}

	opts := []engine.Option{
		engine.WithPropagator(osc.Propagator()),
		engine.WithLogger(logger),
	}
	if ext := cfg.ExternalArgs(); len(ext) > 0 {
		opts = append(opts, engine.WithExternalArgs(ext...))
	}
	if cmd.Flags().Changed("start-time") {
		opts = append(opts, engine.WithStartTime(cfg.StartTime))
	}

	if parallel > 0 && !live {
		return runBatch(ctx, schedules, reg, opts, st)
	}

	for _, s := range schedules {
		var (
			eng    *engine.Engine
			store  *results.Store
			runErr error
		)
		if live {
			// tui.Run joins the goroutine before returning, so eng,
			// store and runErr are settled once it does.
			err := tui.Run(ctx, s.Label, cfg.Track, func(runCtx context.Context, obs engine.Observer) error {
				eng = engine.New(s, reg, append(opts, engine.WithObserver(obs))...)
				store, _, runErr = eng.Run(runCtx, oscillator.State{0, 0})
				return runErr
			})
			if err != nil && runErr == nil {
				return err
			}
		} else {
			eng = engine.New(s, reg, opts...)
			store, _, runErr = eng.Run(ctx, oscillator.State{0, 0})
		}

		if runErr != nil {
			// Partial results were still produced. Show and persist
			// them before reporting the failure.
			fmt.Fprintf(os.Stderr, "schedule %q: %v\n", s.Label, runErr)
		}
		printResults(s.Label, eng, store)

		if saveRun {
			runID, err := st.Save(s.Label, eng.Status().String(), len(s.Steps), eng.Time(), store)
			if err != nil {
				return err
			}
			fmt.Printf("saved run %s\n", runID)
		}
		if runErr != nil {
			return fmt.Errorf("schedule %q finished %s", s.Label, eng.Status())
		}
	}
	return nil
}

// runBatch executes every schedule in the file concurrently. Output is
// deferred until all schedules finish so it stays in file order.
func runBatch(ctx context.Context, schedules []*schedule.Schedule, reg *routine.Registry, opts []engine.Option, st *storage.Store) error {
	runner := batch.New(func(s *schedule.Schedule) *engine.Engine {
		return engine.New(s, reg, opts...)
	}, parallel)

	outcomes, runErr := runner.Run(ctx, schedules, oscillator.State{0, 0})
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(os.Stderr, "schedule %q: %v\n", o.Schedule.Label, o.Err)
		}
		fmt.Printf("schedule %q: %s (t=%g, %d results)\n",
			o.Schedule.Label, o.Status, o.FinalTime, o.Results.Len())
		if st != nil {
			runID, err := st.Save(o.Schedule.Label, o.Status.String(), len(o.Schedule.Steps), o.FinalTime, o.Results)
			if err != nil {
				return err
			}
			fmt.Printf("saved run %s\n", runID)
		}
	}
	return runErr
}

func printResults(label string, eng *engine.Engine, store *results.Store) {
	fmt.Printf("schedule %q: %s (t=%g, %d results)\n",
		label, eng.Status(), eng.Time(), store.Len())
	if store.Len() == 0 {
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE")
	for _, key := range store.Keys() {
		v, _ := store.Get(key)
		fmt.Fprintf(w, "%s\t%v\n", key, v)
	}
	w.Flush()
}

func validateSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args, true)
	if err != nil {
		return err
	}
	reg, _, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	schedules, err := schedule.LoadFile(cfg.SchedulePath)
	if err != nil {
		return err
	}
	for _, s := range schedules {
		if err := schedule.Validate(s, reg); err != nil {
			return err
		}
		fmt.Printf("schedule %q: ok (%d steps)\n", s.Label, len(s.Steps))
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no saved runs")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tSTATUS\tSTEPS\tRESULTS\tTIMESTAMP")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.Label, r.Status, r.Steps, r.NumResults,
			r.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	keys, values, err := storage.New(dataDir).LoadSeries(args[0])
	if err != nil {
		return err
	}
	if len(values) < 2 {
		return errors.New("run has fewer than two numeric results to plot")
	}
	graph := asciigraph.Plot(values,
		asciigraph.Height(10),
		asciigraph.Width(72),
		asciigraph.Caption(fmt.Sprintf("%s .. %s", keys[0], keys[len(keys)-1])),
	)
	fmt.Println(graph)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	res, err := storage.New(dataDir).LoadResults(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func exportSVG(cmd *cobra.Command, args []string) error {
	keys, values, err := storage.New(dataDir).LoadSeries(args[0])
	if err != nil {
		return err
	}
	svg := export.SeriesToSVG(keys, values, 640, 320)
	if svg == "" {
		return errors.New("run has fewer than two numeric results to plot")
	}
	if svgOut == "" {
		fmt.Println(svg)
		return nil
	}
	return os.WriteFile(svgOut, []byte(svg), 0644)
}

func listRoutines(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args, false)
	if err != nil {
		return err
	}
	reg, _, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tCACHABLE\tSTATE-DEPENDENT")
	for _, name := range reg.Names() {
		rt, err := reg.Resolve(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\n", rt.Name, rt.Kind, rt.Cachable, rt.StateDependent)
	}
	return w.Flush()
}
