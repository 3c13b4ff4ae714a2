package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/orbprop/internal/config"
	"github.com/san-kum/orbprop/internal/forces"
	"github.com/san-kum/orbprop/internal/metrics"
	"github.com/san-kum/orbprop/internal/numerical"
	"github.com/san-kum/orbprop/internal/propagation"
	"github.com/san-kum/orbprop/internal/storage"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	preset     string
	segments   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "orbprop",
		Short:         "numerical orbit propagation with state transition matrices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".orbprop", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "propagate a scenario and store the run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPropagation,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "scenario file path (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset scenario")
	runCmd.Flags().IntVar(&segments, "segments", 0, "recompute the run in this many parallel segments and report the drift")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot altitude and mass of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	stmCmd := &cobra.Command{
		Use:   "stm [run_id]",
		Short: "print the final state transition matrix and parameter jacobian",
		Args:  cobra.ExactArgs(1),
		RunE:  printMatrices,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available scenario presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Printf("%s  %s\n", titleStyle.Render(fmt.Sprintf("%-13s", name)),
					subtle.Render(fmt.Sprintf("%s, %s elements, %.0fs", p.Integrator, p.OrbitType, p.Duration)))
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, stmCmd, presetsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		stop()
		os.Exit(1)
	}
}

func newLogger() log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if verbose {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowInfo())
}

func loadConfig(args []string) (*config.Config, error) {
	name := preset
	if len(args) > 0 {
		name = args[0]
	}
	var cfg *config.Config
	switch {
	case configFile != "":
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	case name != "":
		if cfg = config.GetPreset(name); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
		}
	default:
		cfg = config.DefaultConfig()
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runPropagation(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	sc, err := cfg.Build(logger)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	var samples []storage.Sample
	ms := metrics.Default()
	sampler := propagation.NewFixedStepHandler(time.Duration(cfg.OutputStep*float64(time.Second)),
		func(s propagation.SpacecraftState, _ bool) {
			samples = append(samples, storage.NewSample(cfg.Epoch, s))
			for _, m := range ms {
				m.Observe(s)
			}
		})
	sc.Propagator.AddStepHandler(sampler)
	gen := sc.Propagator.EphemerisGenerator()

	level.Info(logger).Log("msg", "propagating", "scenario", cfg.Name, "from", cfg.Epoch, "to", cfg.Target())
	start := time.Now()
	final, err := sc.Propagator.Propagate(ctx, cfg.Target())
	if err != nil {
		return err
	}
	if err := sampler.Err(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	meta := storage.RunMetadata{
		Scenario:   cfg.Name,
		Epoch:      cfg.Epoch,
		Duration:   cfg.Duration,
		Integrator: sc.Propagator.Integrator().Name(),
		OrbitType:  sc.Propagator.OrbitType().String(),
		FinalMass:  final.Mass(),
		Metrics:    metrics.Collect(ms),
	}
	var matrices *storage.Matrices
	if h := sc.Harvester; h != nil {
		meta.Columns = h.JacobiansColumnsNames()
		matrices = &storage.Matrices{
			Name:      h.STMName(),
			OrbitType: h.OrbitType().String(),
			STM:       storage.Rows(h.StateTransitionMatrix(final)),
			Columns:   meta.Columns,
			Jacobian:  storage.Rows(h.ParametersJacobian(final)),
		}
	}
	runID, err := st.Save(meta, samples, matrices)
	if err != nil {
		return err
	}

	fmt.Println(panel.Render(summary(runID, elapsed, sc.Initial, final, len(samples), meta.Metrics)))

	if segments > 0 {
		eph, err := gen.GeneratedEphemeris()
		if err != nil {
			return err
		}
		return checkSegments(ctx, cfg, eph, segments)
	}
	return nil
}

func summary(runID string, elapsed time.Duration, s0, final propagation.SpacecraftState, samples int, values map[string]float64) string {
	row := func(label string, value any) string {
		return metricLabel.Render(fmt.Sprintf("%-14s", label)) + metricValue.Render(fmt.Sprint(value)) + "\n"
	}
	alt := func(s propagation.SpacecraftState) string {
		return fmt.Sprintf("%.3f km", (r3.Norm(s.Orbit().Position)-forces.EarthRadius)/1e3)
	}
	out := titleStyle.Render("run "+runID) + "\n\n"
	out += row("elapsed", elapsed.Round(time.Millisecond))
	out += row("samples", samples)
	out += row("final date", final.Date().Format(time.RFC3339Nano))
	out += row("altitude", alt(s0)+" -> "+alt(final))
	out += row("mass", fmt.Sprintf("%.6f -> %.6f kg", s0.Mass(), final.Mass()))
	out += "\n"
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out += row(name, fmt.Sprintf("%.6g", values[name]))
	}
	return out
}

// checkSegments recomputes the run in parallel segments started from the
// ephemeris and reports how far each segment end lands from it.
func checkSegments(ctx context.Context, cfg *config.Config, eph *numerical.Ephemeris, n int) error {
	span := eph.MaxDate().Sub(eph.MinDate())
	segs := make([]numerical.Segment, n)
	for i := range segs {
		segs[i] = numerical.Segment{
			Start: eph.MinDate().Add(span * time.Duration(i) / time.Duration(n)),
			End:   eph.MinDate().Add(span * time.Duration(i+1) / time.Duration(n)),
		}
	}
	build := func() (*numerical.Propagator, error) {
		sc, err := cfg.Build(log.NewNopLogger())
		if err != nil {
			return nil, err
		}
		return sc.Propagator, nil
	}

	start := time.Now()
	ends, err := numerical.RecomputeSegments(ctx, build, eph, segs, true)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEGMENT\tSTART\tEND\tDRIFT (m)")
	for i, s := range ends {
		ref, err := eph.Propagate(ctx, segs[i].End)
		if err != nil {
			return err
		}
		d := r3.Norm(r3.Sub(s.Orbit().Position, ref.Orbit().Position))
		fmt.Fprintf(w, "%d\t%s\t%s\t%.6f\n", i, segs[i].Start.Format(time.RFC3339), segs[i].End.Format(time.RFC3339), d)
	}
	fmt.Fprintf(w, "\n%d segments in %v\n", n, time.Since(start).Round(time.Millisecond))
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tEPOCH (JD)\tDURATION\tINTEG\tTYPE\tCOLUMNS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.6f\t%.0fs\t%s\t%s\t%d\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.EpochJD,
			run.Duration,
			run.Integrator,
			run.OrbitType,
			len(run.Columns),
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	samples, err := st.LoadStates(runID)
	if err != nil {
		return err
	}

	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("samples: %d\n\n", len(samples))

	alt := make([]float64, len(samples))
	mass := make([]float64, len(samples))
	for i, s := range samples {
		alt[i] = (math.Sqrt(s.State[0]*s.State[0]+s.State[1]*s.State[1]+s.State[2]*s.State[2]) - forces.EarthRadius) / 1e3
		mass[i] = s.State[6]
	}

	for _, p := range []struct {
		data    []float64
		caption string
	}{
		{alt, "altitude (km) vs time"},
		{mass, "mass (kg) vs time"},
	} {
		graph := asciigraph.Plot(p.data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(p.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func printMatrices(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	m, err := st.LoadMatrices(runID)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("run %s computed no matrices", runID)
	}

	header := titleStyle.Render(fmt.Sprintf("%s (%s elements)", m.Name, m.OrbitType))
	fmt.Println(panel.Render(header + "\n\n" + formatRows(m.STM)))
	if len(m.Columns) > 0 {
		header := titleStyle.Render("parameters jacobian")
		cols := ""
		for i, c := range m.Columns {
			cols += subtle.Render(fmt.Sprintf("%d: %s", i, c)) + "\n"
		}
		fmt.Println(panel.Render(header + "\n\n" + cols + "\n" + formatRows(m.Jacobian)))
	}
	return nil
}

func formatRows(rows [][]float64) string {
	out := ""
	for i, r := range rows {
		for _, x := range r {
			out += fmt.Sprintf("%14.6e", x)
		}
		if i < len(rows)-1 {
			out += "\n"
		}
	}
	return out
}
