package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/posesim/internal/config"
	"github.com/san-kum/posesim/internal/dynamo"
	"github.com/san-kum/posesim/internal/export"
	"github.com/san-kum/posesim/internal/integrators"
	"github.com/san-kum/posesim/internal/metrics"
	"github.com/san-kum/posesim/internal/sim"
	"github.com/san-kum/posesim/internal/storage"
	"github.com/san-kum/posesim/internal/viz"
	"github.com/spf13/cobra"
)

// loadScenario resolves a preset name or --config into a runnable scenario.
func loadScenario(args []string) (string, sim.Scenario, error) {
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return "", sim.Scenario{}, err
		}
		if err := cfg.Validate(); err != nil {
			return "", sim.Scenario{}, err
		}
		name := cfg.Scenario.Name
		if name == "" {
			name = "config"
		}
		return name, cfg.SimScenario(), nil
	}

	name := "straight"
	if len(args) > 0 {
		name = args[0]
	}
	p, ok := config.GetPreset(name)
	if !ok {
		return "", sim.Scenario{}, fmt.Errorf("unknown preset %q (available: %v)", name, config.ListPresets())
	}
	cfg := config.DefaultConfig()
	cfg.Scenario = p
	return name, cfg.SimScenario(), nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	name, sc, err := loadScenario(args)
	if err != nil {
		return err
	}
	if runDt != 0 {
		sc.Dt = runDt
	}
	cmd.SilenceUsage = true

	s := sim.New(integrators.NewKinematic(sc.Initial))
	for _, m := range metrics.Standard() {
		s.AddMetric(m)
	}

	result, err := s.Run(cmd.Context(), sc)
	if err != nil {
		return err
	}

	fmt.Printf("scenario: %s\n", name)
	fmt.Printf("steps: %d (dt=%g, %.2fs)\n", result.StepsTaken, sc.Dt, sc.Duration())
	fmt.Printf("final: %s\n", result.Final)
	printMetrics(os.Stdout, result.Metrics)

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(storage.RunMetadata{
		Name:    name,
		Source:  "run",
		Dt:      sc.Dt,
		Metrics: result.Metrics,
	}, result.Frames)
	if err != nil {
		return err
	}
	fmt.Printf("saved: %s\n", runID)
	return nil
}

func printMetrics(w io.Writer, vals map[string]float64) {
	names := make([]string, 0, len(vals))
	for name := range vals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-14s %.6f\n", name, vals[name])
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	if numRuns < 2 {
		return fmt.Errorf("--runs must be at least 2, got %d", numRuns)
	}
	name, sc, err := loadScenario(args)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	e := sim.NewEnsemble(func() sim.Stepper { return integrators.NewKinematic(sc.Initial) }, numRuns).
		WithMetrics(metrics.Standard)

	results, err := e.Run(cmd.Context(), sc)
	if err != nil {
		return err
	}

	if !sim.Deterministic(results) {
		for i, r := range results {
			fmt.Printf("  run %d: %s\n", i, r.Final)
		}
		return fmt.Errorf("%s: %d replays diverged", name, numRuns)
	}
	fmt.Printf("%s: %d replays agree on %s\n", name, numRuns, results[0].Final)
	return nil
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
	fmt.Fprintln(w, "ID\tSOURCE\tTIME\tDURATION\tDT\tSTEPS\tPATH")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%d\t%.2fm\n",
			run.ID,
			run.Source,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Steps,
			run.Metrics["path_length"],
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
	frames, err := st.LoadFrames(runID)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("samples: %d\n\n", len(frames))

	series := []struct {
		caption string
		get     func(dynamo.Pose) float32
	}{
		{"x (m)", func(p dynamo.Pose) float32 { return p.X }},
		{"y (m)", func(p dynamo.Pose) float32 { return p.Y }},
		{"z (m)", func(p dynamo.Pose) float32 { return p.Z }},
		{"roll (rad)", func(p dynamo.Pose) float32 { return p.Roll }},
		{"pitch (rad)", func(p dynamo.Pose) float32 { return p.Pitch }},
		{"yaw (rad)", func(p dynamo.Pose) float32 { return p.Yaw }},
	}

	for _, s := range series {
		data := make([]float64, len(frames))
		for i, f := range frames {
			data[i] = float64(s.get(f.Pose))
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(plotHeight),
			asciigraph.Width(plotWidth),
			asciigraph.Caption(s.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

// output opens --output, or stdout when unset.
func output() (io.WriteCloser, error) {
	if outPath == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(outPath)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func exportCSV(cmd *cobra.Command, args []string) error {
	frames, err := storage.New(dataDir).LoadFrames(args[0])
	if err != nil {
		return err
	}
	w, err := output()
	if err != nil {
		return err
	}
	defer w.Close()
	return storage.ExportCSV(w, frames)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	frames, err := st.LoadFrames(args[0])
	if err != nil {
		return err
	}
	w, err := output()
	if err != nil {
		return err
	}
	defer w.Close()
	return storage.ExportJSON(w, meta, frames)
}

func exportSVG(cmd *cobra.Command, args []string) error {
	proj, err := export.ParseProjection(svgView)
	if err != nil {
		return err
	}
	frames, err := storage.New(dataDir).LoadFrames(args[0])
	if err != nil {
		return err
	}
	w, err := output()
	if err != nil {
		return err
	}
	defer w.Close()
	return export.TrajectoryToSVG(w, export.Points(frames, proj), svgWidth, svgHeight, svgColor)
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSEGMENTS\tDURATION\tDT")
	for _, name := range config.ListPresets() {
		p, _ := config.GetPreset(name)
		sc := sim.Scenario{Dt: p.Dt, Segments: p.Segments}
		fmt.Fprintf(w, "%s\t%d\t%.2fs\t%g\n", name, len(p.Segments), sc.Duration(), p.Dt)
	}
	return w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	var opts []viz.ModelOption
	var rec *storage.Recorder
	if record {
		rec = storage.NewRecorder()
		opts = append(opts, viz.WithSinks(rec))
	}

	m, err := viz.NewModel(dynamo.Pose{}, liveFreq, opts...)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil {
		return err
	}

	if rec == nil || rec.Len() == 0 {
		return nil
	}
	frames := append([]sim.Frame{{Pose: dynamo.Pose{}}}, rec.Frames()...)
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(storage.RunMetadata{Name: "live", Source: "live", Dt: 1 / liveFreq}, frames)
	if err != nil {
		return err
	}
	fmt.Printf("saved: %s\n", runID)
	return nil
}
