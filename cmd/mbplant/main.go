package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/mbplant/internal/analysis"
	"github.com/san-kum/mbplant/internal/config"
	"github.com/san-kum/mbplant/internal/plant"
	"github.com/san-kum/mbplant/internal/sim"
	"github.com/san-kum/mbplant/internal/storage"
	"github.com/san-kum/mbplant/internal/viz"
)

var (
	dataDir       string
	configFile    string
	duration      float64
	recordContact bool
	frameRate     int
	maxPlots      int
	analyzeCoord  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mbplant",
		Short: "contact-aware multibody dynamics",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".mbplant", "data directory")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a scene",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScene,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "scene file path (yaml)")
	runCmd.Flags().Float64Var(&duration, "time", 0, "duration override")
	runCmd.Flags().BoolVar(&recordContact, "contact", false, "record contact results")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run trajectories",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&maxPlots, "max-plots", 6, "maximum number of coordinates to plot")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run data as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "run a scene with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&configFile, "config", "", "scene file path (yaml)")
	liveCmd.Flags().Float64Var(&duration, "time", 0, "duration override")
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")

	benchCmd := &cobra.Command{
		Use:   "bench [preset]",
		Short: "benchmark a scene across time steps",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchScene,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a recorded coordinate",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().IntVar(&analyzeCoord, "coord", 0, "state column to analyze")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in scenes",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, liveCmd, benchCmd, analyzeCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadScene resolves the scene from --config or a preset name argument,
// defaulting to ball_drop.
func loadScene(args []string) (*config.Scene, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	name := "ball_drop"
	if len(args) > 0 {
		name = args[0]
	}
	scene := config.GetPreset(name)
	if scene == nil {
		return nil, fmt.Errorf("unknown preset %q (available: %v)", name, config.ListPresets())
	}
	return scene, nil
}

func prepare(scene *config.Scene) (*plant.Plant, *plant.Context, error) {
	p, err := scene.Build()
	if err != nil {
		return nil, nil, err
	}
	ctx, err := p.CreateDefaultContext()
	if err != nil {
		return nil, nil, err
	}
	ctx.ConnectDefaultQuery()
	if err := scene.ApplyInitialState(p, ctx); err != nil {
		return nil, nil, err
	}
	return p, ctx, nil
}

func runScene(cmd *cobra.Command, args []string) error {
	scene, err := loadScene(args)
	if err != nil {
		return err
	}
	if duration > 0 {
		scene.Duration = duration
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	p, ctx, err := prepare(scene)
	if err != nil {
		return err
	}
	runner, err := sim.New(p)
	if err != nil {
		return err
	}

	fmt.Printf("running %s...\n", scene.Name)
	start := time.Now()
	result, err := runner.Run(context.Background(), ctx, sim.Config{
		Duration:      scene.Duration,
		RecordContact: recordContact,
	})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(scene.Name, scene.Contact.Solver, scene.Contact.Model,
		scene.Dt, scene.Duration, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	for _, stepErr := range result.Errors {
		fmt.Printf("warning: %v\n", stepErr)
	}
	if warning := p.PendingJointLimitWarning(); warning != "" {
		fmt.Printf("warning: %s\n", warning)
	}
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
	fmt.Fprintln(w, "ID\tSCENE\tTIME\tDURATION\tDT\tSOLVER\tCONTACT")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%s\n",
			run.ID,
			run.Scene,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Solver,
			run.ContactModel,
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
	states, _, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s\n", meta.Scene)
	fmt.Printf("samples: %d\n\n", len(states))

	numVars := len(states[0])
	if numVars > maxPlots {
		numVars = maxPlots
	}
	for coord := 0; coord < numVars; coord++ {
		data := make([]float64, len(states))
		for i := range states {
			if coord < len(states[i]) {
				data[i] = states[i][coord]
			}
		}
		caption := fmt.Sprintf("q%d vs time", coord)
		if coord >= meta.NumPositions {
			caption = fmt.Sprintf("v%d vs time", coord-meta.NumPositions)
		}
		fmt.Println(viz.PlotSeries(data, caption))
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	states, times, err := st.LoadStates(runID)
	if err != nil {
		return err
	}

	result := &sim.Result{
		Samples:    make([]sim.Sample, len(states)),
		StepsTaken: meta.Steps,
	}
	for i, s := range states {
		sample := sim.Sample{Time: times[i]}
		if meta.NumPositions <= len(s) {
			sample.Q = s[:meta.NumPositions]
			sample.V = s[meta.NumPositions:]
		} else {
			sample.Q = s
		}
		result.Samples[i] = sample
	}

	return storage.ExportJSONStdout(meta.Scene, meta.Solver, meta.ContactModel,
		meta.Dt, meta.Duration, result)
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	states, _, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if len(states) == 0 || analyzeCoord >= len(states[0]) {
		return fmt.Errorf("no data for coordinate %d", analyzeCoord)
	}

	data := make([]float64, len(states))
	for i := range states {
		data[i] = states[i][analyzeCoord]
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("scene: %s, coordinate: %d\n\n", meta.Scene, analyzeCoord)

	ps := analysis.PowerSpectrum(data)
	fmt.Println(viz.PlotSeries(ps[:len(ps)/4], "power spectrum"))
	fmt.Println()

	freq := analysis.DominantFrequency(data, meta.Dt)
	fmt.Printf("dominant frequency: %.3f hz\n", freq)
	if freq > 0 {
		fmt.Printf("period: %.3f s\n", 1.0/freq)
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	scene, err := loadScene(args)
	if err != nil {
		return err
	}
	if duration > 0 {
		scene.Duration = duration
	}

	p, ctx, err := prepare(scene)
	if err != nil {
		return err
	}

	m := viz.NewModel(p, ctx, scene.Name, scene.Duration, frameRate)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		return err
	}
	return nil
}

func benchScene(cmd *cobra.Command, args []string) error {
	scene, err := loadScene(args)
	if err != nil {
		return err
	}

	durations := []float64{0.5, 1.0, 2.0}
	dts := []float64{1e-4, 1e-3, 1e-2}

	fmt.Printf("benchmarking %s\n\n", scene.Name)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DURATION\tDT\tSTEPS\tTIME\tSTEPS/SEC")

	for _, dur := range durations {
		for _, dt := range dts {
			trial := *scene
			trial.Dt = dt
			trial.Duration = dur

			p, ctx, err := prepare(&trial)
			if err != nil {
				return err
			}
			runner, err := sim.New(p)
			if err != nil {
				return err
			}

			start := time.Now()
			result, err := runner.Run(context.Background(), ctx, sim.Config{Duration: dur})
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			stepsPerSec := float64(result.StepsTaken) / elapsed.Seconds()
			fmt.Fprintf(w, "%.1fs\t%.4fs\t%d\t%v\t%.0f\n",
				dur, dt, result.StepsTaken, elapsed, stepsPerSec)
		}
	}
	return w.Flush()
}
