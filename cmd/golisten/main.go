package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ambientworks/golisten/internal/audio"
	"github.com/ambientworks/golisten/internal/config"
	"github.com/ambientworks/golisten/internal/models"
	"github.com/ambientworks/golisten/internal/session"
	"github.com/ambientworks/golisten/internal/transcribe"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/golisten/config.yaml)")
	backend := flag.String("backend", "", "transcription backend override (google, openai, whisper)")
	language := flag.String("lang", "", "language tag override (BCP-47, e.g. en-US)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Transcribe.Backend = *backend
	}
	if *language != "" {
		cfg.Transcribe.Language = *language
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           log.Level(config.ParseLogLevel(cfg.LogLevel)),
	})
	slog.SetDefault(slog.New(logger))

	printBanner(cfg)

	port, err := buildTranscriber(cfg)
	if err != nil {
		logger.Fatal("transcriber setup failed", "error", err)
	}
	defer port.Close()

	ctrl := session.New(cfg, audio.NewOpener(), port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig.String())
		ctrl.StopWait()
		port.Close()
		os.Exit(0)
	}()

	fmt.Println("Commands: start | pause | resume | stop | shot | text | save | quit")
	runCommandLoop(ctrl)

	ctrl.StopWait()
}

// runCommandLoop reads control commands from stdin until quit or EOF.
func runCommandLoop(ctrl *session.Controller) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("[%s] > ", ctrl.State())
		if !scanner.Scan() {
			return
		}

		switch strings.TrimSpace(strings.ToLower(scanner.Text())) {
		case "start":
			if err := ctrl.Start(context.Background()); err != nil {
				if err == session.ErrAlreadyListening {
					fmt.Println("Already listening.")
				} else {
					fmt.Printf("Failed to start listening: %v\n", err)
				}
				continue
			}
			fmt.Println("Started listening. Speak whenever you're ready.")

		case "pause":
			ctrl.Pause()
			fmt.Println("Recognition paused. Type resume to continue.")

		case "resume":
			ctrl.Resume()
			fmt.Println("Recognition resumed.")

		case "stop":
			ctrl.Stop()
			fmt.Println("Stopped listening.")

		case "shot":
			fmt.Println("Recording a single phrase (up to 10 seconds)...")
			text, err := ctrl.SingleShot(context.Background())
			if err != nil {
				fmt.Printf("Single-shot failed: %s\n", ctrl.LastError())
				continue
			}
			fmt.Printf("Transcription added: %s\n", text)

		case "text":
			printState(ctrl)

		case "save":
			saveTranscript(ctrl)

		case "quit", "exit":
			return

		case "":

		default:
			fmt.Println("Commands: start | pause | resume | stop | shot | text | save | quit")
		}
	}
}

func printState(ctrl *session.Controller) {
	text := ctrl.Text()
	if text == "" {
		fmt.Println("(no transcription yet)")
	} else {
		fmt.Println(text)
	}
	if msg := ctrl.LastError(); msg != "" {
		fmt.Printf("Last error: %s\n", msg)
	}
}

// saveTranscript hands the accumulated text to the filesystem with a
// timestamp-derived name. The core exposes the text; naming and storage are
// this layer's concern.
func saveTranscript(ctrl *session.Controller) {
	text := ctrl.Text()
	if strings.TrimSpace(text) == "" {
		fmt.Println("No transcription to save.")
		return
	}
	name := fmt.Sprintf("transcription_%d.txt", time.Now().Unix())
	if err := os.WriteFile(name, []byte(text), 0644); err != nil {
		fmt.Printf("Failed to save transcription: %v\n", err)
		return
	}
	fmt.Printf("Saved transcription to %s\n", name)
}

func buildTranscriber(cfg *config.Config) (transcribe.Transcriber, error) {
	if cfg.Transcribe.Backend == "whisper" {
		if err := models.Ensure(cfg.Transcribe.ModelPath); err != nil {
			return nil, fmt.Errorf("fetching whisper model: %w", err)
		}
		slog.Info("loading whisper model", "path", cfg.Transcribe.ModelPath)
		start := time.Now()
		port, err := transcribe.New(&cfg.Transcribe)
		if err != nil {
			return nil, err
		}
		slog.Info("model loaded", "elapsed", time.Since(start).Round(time.Millisecond))
		return port, nil
	}
	return transcribe.New(&cfg.Transcribe)
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, nil
	}

	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== golisten ===")
	fmt.Printf("  Backend:  %s\n", cfg.Transcribe.Backend)
	fmt.Printf("  Language: %s\n", cfg.Transcribe.Language)
	fmt.Printf("  Audio:    %dHz, %dch\n", cfg.Audio.SampleRate, cfg.Audio.Channels)
	fmt.Printf("  Queue:    %d phrases\n", cfg.Queue.Size)
	fmt.Printf("  Log:      %s\n", cfg.LogLevel)
	fmt.Println("================")
}
