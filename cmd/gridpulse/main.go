package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/emaruz/gridpulse/internal/app"
	"github.com/emaruz/gridpulse/internal/audio"
	"github.com/emaruz/gridpulse/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath  string
		imagePath   string
		deviceName  string
		order       string
		loopMode    string
		gridSize    int
		fps         float64
		width       int
		height      int
		noAudio     bool
		static      bool
		webEnabled  bool
		webPort     int
		profilePath string
	)

	rootCmd := &cobra.Command{
		Use:           "gridpulse",
		Short:         "Audio-reactive grid animation engine",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			// Flags override the file.
			flags := cmd.Flags()
			if flags.Changed("image") {
				cfg.Image = imagePath
			}
			if flags.Changed("device") {
				cfg.Audio.Device = deviceName
			}
			if flags.Changed("order") {
				cfg.Grid.Order = order
			}
			if flags.Changed("loop") {
				cfg.Grid.LoopMode = loopMode
			}
			if flags.Changed("grid-size") {
				cfg.Grid.Size = gridSize
			}
			if flags.Changed("fps") {
				cfg.Render.TargetFPS = fps
			}
			if flags.Changed("width") {
				cfg.Render.Width = width
			}
			if flags.Changed("height") {
				cfg.Render.Height = height
			}
			if flags.Changed("no-audio") {
				cfg.Audio.Disabled = noAudio
			}
			if flags.Changed("static") {
				cfg.Render.Static = static
			}
			if flags.Changed("web") {
				cfg.Web.Enabled = webEnabled
			}
			if flags.Changed("web-port") {
				cfg.Web.Port = webPort
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg, profilePath)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio input devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listDevices()
		},
	}
	rootCmd.AddCommand(listCmd)

	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&imagePath, "image", "i", "", "Source bitmap (PNG or JPEG)")
	flags.StringVarP(&deviceName, "device", "d", "", "Audio input device (substring match)")
	flags.StringVar(&order, "order", config.DefaultOrder, "Traversal order (sequential|spiral|diagonal|random)")
	flags.StringVar(&loopMode, "loop", config.DefaultLoopMode, "Loop mode (loop|bounce|once)")
	flags.IntVar(&gridSize, "grid-size", config.DefaultGridSize, "Cells per grid side")
	flags.Float64Var(&fps, "fps", config.DefaultFPS, "Target frames per second")
	flags.IntVar(&width, "width", config.DefaultWidth, "Output width in pixels")
	flags.IntVar(&height, "height", config.DefaultHeight, "Output height in pixels")
	flags.BoolVar(&noAudio, "no-audio", false, "Run on the synthetic audio source")
	flags.BoolVar(&static, "static", false, "Render only the center cell (reduced motion)")
	flags.BoolVar(&webEnabled, "web", false, "Serve the websocket readout")
	flags.IntVar(&webPort, "web-port", config.DefaultWebPort, "Readout server port")
	flags.StringVar(&profilePath, "profile", "", "Append per-frame timings to this CSV file")

	return rootCmd
}

func run(cfg *config.Config, profilePath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(os.Stderr, "[gridpulse] ", log.LstdFlags)

	if !cfg.Audio.Disabled {
		if err := audio.Initialize(); err != nil {
			return fmt.Errorf("initialize portaudio: %w", err)
		}
		defer audio.Terminate()
	}

	engine, err := app.New(app.Options{
		Config:      cfg,
		Log:         logger,
		ProfilePath: profilePath,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "cleanup error: %v\n", err)
		}
	}()

	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func listDevices() error {
	if err := audio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	defer audio.Terminate()

	devices, err := audio.InputDevices()
	if err != nil {
		return err
	}
	fmt.Printf("\n=== Audio Input Devices ===\n\n")
	for _, dev := range devices {
		marker := ""
		if dev.IsDefaultInput {
			marker = " (default)"
		}
		fmt.Printf("- %s [%s]%s\n    inputs:%d sample:%.0f Hz\n",
			dev.Name, dev.HostAPI, marker, dev.Inputs, dev.SampleRateHz)
	}
	return nil
}
