package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/petems/transvox/internal/app"
	"github.com/petems/transvox/internal/audio"
	"github.com/petems/transvox/internal/clipboard"
	"github.com/petems/transvox/internal/config"
	"github.com/petems/transvox/internal/translate"
	"github.com/petems/transvox/internal/whisper"
)

var captureOpts struct {
	output string
	replay string
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Record system audio to a WAV file until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := app.New(app.Config{
			Config:        cfg,
			Logger:        log,
			StatusUpdater: newConsoleStatus(os.Stderr),
		})

		stats, err := a.Capture(ctx, app.CaptureRequest{
			Output: captureOpts.output,
			Replay: captureOpts.replay,
		})
		if stats.SamplesWritten > 0 || err == nil {
			printSummary(os.Stdout, "Recording saved", recordingRows(stats))
		}
		return err
	},
}

var transcribeOpts struct {
	input  string
	output string
	copy   bool
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Transcribe a WAV or FLAC file with whisper.cpp",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		stt, err := loadTranscriber(ctx)
		if err != nil {
			return err
		}
		defer stt.Close()

		a := app.New(app.Config{
			Transcriber:   stt,
			Clipboard:     clipboard.New(),
			Config:        cfg,
			Logger:        log,
			StatusUpdater: newConsoleStatus(os.Stderr),
		})

		res, err := a.Transcribe(ctx, app.TranscribeRequest{
			Input:  transcribeOpts.input,
			Output: transcribeOpts.output,
			Copy:   transcribeOpts.copy,
		})
		if err != nil {
			return err
		}

		printSummary(os.Stderr, "Transcript", [][2]string{
			{"input", transcribeOpts.input},
			{"language", res.Language},
			{"segments", fmt.Sprint(len(res.Segments))},
		})
		fmt.Fprintln(os.Stdout, res.Text)
		return nil
	},
}

var translateOpts struct {
	input  string
	output string
}

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a text file to another language",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		tr, err := loadTranslator()
		if err != nil {
			return err
		}

		a := app.New(app.Config{
			Translator:    tr,
			Config:        cfg,
			Logger:        log,
			StatusUpdater: newConsoleStatus(os.Stderr),
		})

		out, err := a.Translate(ctx, app.TranslateRequest{
			Input:  translateOpts.input,
			Output: translateOpts.output,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, out)
		return nil
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture devices of the selected backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := app.New(app.Config{Config: cfg, Logger: log})

		backend := cfg.Capture.Backend
		if backend == "" || backend == "auto" {
			backend = audio.DefaultBackend()
		}
		devices, err := a.Devices(backend)
		if err != nil {
			return err
		}
		printDevices(os.Stdout, backend, devices)
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List downloadable whisper models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := filepath.Dir(cfg.ModelPath())
		rows := make([][2]string, 0, len(whisper.Models()))
		for _, name := range whisper.Models() {
			state := "not downloaded"
			if _, err := os.Stat(filepath.Join(dir, "ggml-"+name+".bin")); err == nil {
				state = "downloaded"
			}
			if name == cfg.Whisper.Model {
				state += " (selected)"
			}
			rows = append(rows, [2]string{name, state})
		}
		printSummary(os.Stdout, "Models in "+dir, rows)
		return nil
	},
}

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		// Keys taken from OPENAI_API_KEY stay out of the file
		out := *cfg
		out.Translate.APIKey = v.GetString("translate.api_key")
		if err := out.Save(path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		log.Info().Str("path", path).Msg("Config written")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("transvox %s (%s)\n", Version, Commit)
	},
}

func init() {
	f := captureCmd.Flags()
	f.StringVarP(&captureOpts.output, "output", "o", "", "output WAV file (default audio_<timestamp>.wav in capture.output_dir)")
	f.String("device", "", "device ID to record from (default: monitor of the default output)")
	f.String("backend", "", "audio backend: auto, pulse, malgo, portaudio")
	f.Int("rate", 0, "sample rate of the written file")
	f.StringVar(&captureOpts.replay, "replay", "", "replay a WAV/FLAC file instead of opening a device")

	f = transcribeCmd.Flags()
	f.StringVarP(&transcribeOpts.input, "input", "i", "", "WAV or FLAC file to transcribe")
	f.StringVarP(&transcribeOpts.output, "output", "o", "", "write the transcript to this file")
	f.String("language", "", "spoken language, or auto")
	f.BoolVar(&transcribeOpts.copy, "copy", false, "copy the transcript to the clipboard")
	_ = transcribeCmd.MarkFlagRequired("input")

	f = translateCmd.Flags()
	f.StringVarP(&translateOpts.input, "input", "i", "", "text file to translate")
	f.StringVarP(&translateOpts.output, "output", "o", "", "write the translation to this file")
	f.StringP("language", "l", "", "target language (ISO 639-1)")
	_ = translateCmd.MarkFlagRequired("input")

	f = devicesCmd.Flags()
	f.String("backend", "", "audio backend: auto, pulse, malgo, portaudio")

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
}

// flagKeys maps each command's flags to config keys. Several commands share
// flag names with different meanings, so only the running command's flags
// are bound.
var flagKeys = map[string]map[string]string{
	"capture": {
		"device":  "capture.device_id",
		"backend": "capture.backend",
		"rate":    "capture.sample_rate",
	},
	"transcribe": {"language": "whisper.language"},
	"translate":  {"language": "translate.target"},
	"devices":    {"backend": "capture.backend"},
}

func bindFlags(cmd *cobra.Command) error {
	for name, key := range flagKeys[cmd.Name()] {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// loadTranscriber fetches the configured model if needed and loads it
func loadTranscriber(ctx context.Context) (whisper.Transcriber, error) {
	modelPath := cfg.ModelPath()
	if _, err := os.Stat(modelPath); errors.Is(err, os.ErrNotExist) {
		url, err := whisper.ModelURL(cfg.Whisper.Model)
		if err != nil {
			return nil, fmt.Errorf("model %s not found at %s: %w", cfg.Whisper.Model, filepath.Dir(modelPath), err)
		}
		if err := whisper.EnsureModel(ctx, modelPath, url); err != nil {
			return nil, err
		}
	}

	return whisper.New(modelPath, whisper.Options{
		Language: cfg.Whisper.Language,
		Threads:  cfg.Whisper.Threads,
	}, log)
}

func loadTranslator() (translate.Translator, error) {
	tc := cfg.Translate
	backend, err := translate.NewOpenAI(translate.OpenAIConfig{
		APIKey:  tc.APIKey,
		BaseURL: tc.BaseURL,
		Model:   tc.Model,
		Source:  tc.Source,
		Target:  tc.Target,
		Timeout: 2 * time.Minute,
	})
	if err != nil {
		return nil, err
	}

	candidates := append([]string{tc.Source, tc.Target}, tc.Candidates...)
	detector, err := translate.NewDetector(candidates)
	if err != nil {
		return nil, err
	}
	return translate.NewService(detector, backend, tc.Source, log), nil
}
