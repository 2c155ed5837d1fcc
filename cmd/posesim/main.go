package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dataDir string
	debug   bool

	// serve / send
	configFile string
	cid        uint16
	freq       float64
	frameID    uint32
	initX      float32
	initY      float32
	initZ      float32
	initRoll   float32
	initPitch  float32
	initYaw    float32
	verbose    bool
	transport  string
	publishIDs []uint
	record     bool

	// send
	sendVx        float32
	sendVy        float32
	sendVz        float32
	sendRollRate  float32
	sendPitchRate float32
	sendYawRate   float32

	liveFreq float64

	// run / verify
	runDt   float64
	numRuns int
	noSave  bool

	// plot / export
	plotWidth  int
	plotHeight int
	outPath    string
	svgWidth   int
	svgHeight  int
	svgColor   string
	svgView    string
)

// main registers the posesim commands and exits with status 1 when a
// command fails.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "posesim",
		Short: "kinematic pose integrator for a single simulated object",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".posesim", "data directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "integrate kinematic states from the bus and publish frames",
		Long: "Subscribes to kinematic states sent with --frame-id on conference --cid,\n" +
			"steps the pose at --freq Hz and publishes a frame per tick.\n" +
			"--cid, --freq and --frame-id are required unless --config is given.",
		PreRunE: requireServeFlags,
		RunE:    runServe,
	}
	addSessionFlags(serveCmd)
	serveCmd.Flags().Float64Var(&freq, "freq", 0, "integration frequency in Hz")
	serveCmd.Flags().Float32Var(&initX, "x", 0, "initial x (m)")
	serveCmd.Flags().Float32Var(&initY, "y", 0, "initial y (m)")
	serveCmd.Flags().Float32Var(&initZ, "z", 0, "initial z (m)")
	serveCmd.Flags().Float32Var(&initRoll, "roll", 0, "initial roll (rad)")
	serveCmd.Flags().Float32Var(&initPitch, "pitch", 0, "initial pitch (rad)")
	serveCmd.Flags().Float32Var(&initYaw, "yaw", 0, "initial yaw (rad)")
	serveCmd.Flags().BoolVar(&verbose, "verbose", false, "print every frame")
	serveCmd.Flags().UintSliceVar(&publishIDs, "publish-id", nil, "extra sender stamp for outgoing frames (repeatable)")
	serveCmd.Flags().BoolVar(&record, "record", false, "save the trajectory when stopped")
	serveCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")

	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "publish one kinematic state",
		RunE:  runSend,
	}
	addSessionFlags(sendCmd)
	sendCmd.Flags().Float32Var(&sendVx, "vx", 0, "velocity x (m/s)")
	sendCmd.Flags().Float32Var(&sendVy, "vy", 0, "velocity y (m/s)")
	sendCmd.Flags().Float32Var(&sendVz, "vz", 0, "velocity z (m/s)")
	sendCmd.Flags().Float32Var(&sendRollRate, "roll-rate", 0, "roll rate (rad/s)")
	sendCmd.Flags().Float32Var(&sendPitchRate, "pitch-rate", 0, "pitch rate (rad/s)")
	sendCmd.Flags().Float32Var(&sendYawRate, "yaw-rate", 0, "yaw rate (rad/s)")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a scripted scenario offline and store it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScenario,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "config file with a scenario (yaml)")
	runCmd.Flags().Float64Var(&runDt, "dt", 0, "override the scenario timestep")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	verifyCmd := &cobra.Command{
		Use:   "verify [preset]",
		Short: "replay a scenario concurrently and check the runs agree",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runVerify,
	}
	verifyCmd.Flags().IntVar(&numRuns, "runs", 8, "number of concurrent replays")
	verifyCmd.Flags().StringVar(&configFile, "config", "", "config file with a scenario (yaml)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot pose components of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	plotCmd.Flags().IntVar(&plotHeight, "height", 10, "plot height")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export frames as csv",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export metadata and frames as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "draw the trajectory as svg",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	for _, c := range []*cobra.Command{exportCSVCmd, exportJSONCmd, exportSVGCmd} {
		c.Flags().StringVarP(&outPath, "output", "o", "", "output file (default stdout)")
	}
	exportSVGCmd.Flags().IntVar(&svgWidth, "width", 800, "image width")
	exportSVGCmd.Flags().IntVar(&svgHeight, "height", 800, "image height")
	exportSVGCmd.Flags().StringVar(&svgColor, "color", "#00ffff", "stroke color")
	exportSVGCmd.Flags().StringVar(&svgView, "view", "top", "projection: top or side")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list scenario presets",
		RunE:  listPresets,
	}

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "drive the integrator from the keyboard",
		RunE:  runLive,
	}
	liveCmd.Flags().Float64Var(&liveFreq, "freq", 30, "integration frequency in Hz")
	liveCmd.Flags().BoolVar(&record, "record", false, "save the trajectory on exit")

	rootCmd.AddCommand(serveCmd, sendCmd, runCmd, verifyCmd, listCmd, plotCmd,
		exportCSVCmd, exportJSONCmd, exportSVGCmd, presetsCmd, liveCmd)
	return rootCmd
}

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().Uint16Var(&cid, "cid", 0, "conference id (1..254)")
	cmd.Flags().Uint32Var(&frameID, "frame-id", 0, "sender stamp of the simulated object")
	cmd.Flags().StringVar(&transport, "transport", "udp", "bus transport: udp or local")
}

// requireServeFlags enforces the startup parameters before anything is
// constructed. A config file may supply them instead.
func requireServeFlags(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		return nil
	}
	var missing []string
	for _, name := range []string{"cid", "freq", "frame-id"} {
		if !cmd.Flags().Changed(name) {
			missing = append(missing, "--"+name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required flags not set: %v", missing)
	}
	return nil
}
