package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"directorscut/internal/cli/scheme/colours"
	"directorscut/internal/config"
	"directorscut/internal/scene/audio"
	"directorscut/internal/scene/server"
	"directorscut/internal/scene/stage"
	"directorscut/internal/scene/studio"
	"directorscut/internal/scene/tts"
	"directorscut/internal/scene/writer"
)

// app holds everything built from the loaded configuration.
type app struct {
	cfg   *config.Config
	ctl   *studio.Controller
	synth tts.Synthesizer
	stage *stage.Stage
}

func newApp(cfg *config.Config) (*app, error) {
	creds := cfg.Credentials()

	w, err := writer.New(writer.Config{
		Backend: cfg.Writer.Backend,
		Model:   cfg.Writer.Model,
		BaseURL: cfg.Writer.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	synth, err := tts.NewSynthesizer(tts.Config{
		Type:      cfg.TTS.Type,
		Voice:     cfg.TTS.Voice,
		Language:  cfg.TTS.Language,
		Speed:     cfg.TTS.Speed,
		Volume:    cfg.TTS.Volume,
		CachePath: cfg.TTS.CachePath,
	}, creds.APIKey() != "")
	if err != nil {
		return nil, fmt.Errorf("failed to create tts engine: %w", err)
	}

	ctl := studio.New(w, synth, audio.NewPlayer(audio.NewSpeaker()), creds, studio.Options{
		LoadingInterval:   cfg.Studio.LoadingInterval,
		RevealInterval:    cfg.Studio.RevealInterval,
		SimulatedDelay:    cfg.Studio.SimulatedDelay,
		GenerationTimeout: cfg.Writer.Timeout,
		NarrationTimeout:  cfg.TTS.Timeout,
		Temperature:       cfg.Writer.Temperature,
		Voice:             cfg.TTS.Voice,
	})

	logrus.WithFields(logrus.Fields{
		"writer": w.Name(),
		"tts":    synth.Name(),
	}).Debug("Studio ready")

	return &app{
		cfg:   cfg,
		ctl:   ctl,
		synth: synth,
		stage: stage.New(ctl, synth, cfg, os.Stdin, color.Output),
	}, nil
}

func (a *app) close() {
	a.stage.Cancel()
	a.ctl.Close()
	if err := a.synth.Close(); err != nil {
		logrus.WithError(err).Debug("Closing tts engine")
	}
}

func main() {
	// A .env next to the binary is optional.
	_ = godotenv.Load()

	var (
		configFile string
		logLevel   string
		current    atomic.Pointer[app]
		serving    atomic.Bool
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
		if serving.Load() {
			return
		}
		if a := current.Load(); a != nil {
			a.close()
		}
		fmt.Println("\n" + colours.Warning.Sprint("👋 That's a wrap! 🎬"))
		os.Exit(0)
	}()

	rootCmd := &cobra.Command{
		Use:   "directorscut",
		Short: "🎬 Turn a plot twist into a screenplay scene",
		Long: `
┌─────────────────────────────────────┐
│  🎬 Welcome to Director's Cut! 🎬   │
│  Plot twist in, scene out           │
│  Narrated on demand 🎙️              │
└─────────────────────────────────────┘

Director's Cut writes a short screenplay scene for any plot twist you give it,
types it onto your terminal and reads it aloud when you ask.
		`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			} else if cmd.Name() == "serve" && cfg.Logging.Level == "warn" {
				cfg.Logging.Level = "info"
			}
			config.SetupLogging(cfg.Logging)

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			current.Store(a)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a := current.Load(); a != nil {
				a.close()
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			current.Load().stage.Direct(cmd, args)
		},
	}

	// Scene command
	sceneCmd := &cobra.Command{
		Use:   "scene [plot twist]",
		Short: "📝 Write one scene and exit",
		Long:  "Generate a single scene for the given plot twist, type it out, and optionally narrate it",
		Run: func(cmd *cobra.Command, args []string) {
			current.Load().stage.Scene(cmd, args)
		},
	}

	// Voices command
	voicesCmd := &cobra.Command{
		Use:   "voices",
		Short: "🎤 List narration voices",
		Long:  "List the voices offered by the configured text-to-speech engine",
		Run: func(cmd *cobra.Command, args []string) {
			current.Load().stage.Voices(cmd, args)
		},
	}

	// Settings command
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "⚙️ Show the effective configuration",
		Long:  "Print writer, narration and credential settings after file and environment overrides",
		Run: func(cmd *cobra.Command, args []string) {
			current.Load().stage.Settings(cmd, args)
		},
	}

	// Serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "🌐 Serve the studio over HTTP",
		Long:  "Expose the session as a JSON API with a websocket that streams every change",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current.Load()
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			serving.Store(true)
			return server.New(a.ctl).Run(ctx, addr)
		},
	}

	// Add flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default ./directorscut.yaml or $HOME/.directorscut/directorscut.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	sceneCmd.Flags().BoolP("narrate", "n", false, "Narrate the scene once it is written")
	serveCmd.Flags().String("addr", "", "Listen address (default from server.addr)")

	rootCmd.AddCommand(sceneCmd, voicesCmd, settingsCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
}
