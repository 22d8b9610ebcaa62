package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/petems/transvox/internal/audio"
	"github.com/petems/transvox/internal/capture"
	"github.com/petems/transvox/internal/clipboard"
	"github.com/petems/transvox/internal/config"
	"github.com/petems/transvox/internal/permissions"
	"github.com/petems/transvox/internal/translate"
	"github.com/petems/transvox/internal/whisper"
	"github.com/rs/zerolog"
)

// SourceFactory opens an audio backend by name
type SourceFactory func(backend string) (audio.FrameSource, error)

// StatusUpdater receives progress of long running commands (e.g. a
// terminal spinner). Optional.
type StatusUpdater interface {
	SetRecording(path string)
	SetProcessing(what string)
	SetIdle()
}

type Config struct {
	Sources       SourceFactory
	Transcriber   whisper.Transcriber  // required by Transcribe only
	Translator    translate.Translator // required by Translate only
	Clipboard     clipboard.Copier
	Config        *config.Config
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater // Optional - can be nil
	Now           func() time.Time
}

type App struct {
	sources SourceFactory
	stt     whisper.Transcriber
	tr      translate.Translator
	clip    clipboard.Copier
	cfg     *config.Config
	log     zerolog.Logger
	status  StatusUpdater
	now     func() time.Time
}

func New(cfg Config) *App {
	if cfg.Sources == nil {
		cfg.Sources = audio.NewSource
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Config == nil {
		cfg.Config = config.Default()
	}
	return &App{
		sources: cfg.Sources,
		stt:     cfg.Transcriber,
		tr:      cfg.Translator,
		clip:    cfg.Clipboard,
		cfg:     cfg.Config,
		log:     cfg.Logger,
		status:  cfg.StatusUpdater,
		now:     cfg.Now,
	}
}

// CaptureRequest holds per-run overrides of the capture config
type CaptureRequest struct {
	Output   string // empty = audio_<timestamp>.wav in capture.output_dir
	DeviceID string
	Backend  string
	Rate     int
	Replay   string // replay this file instead of opening a device
}

// Capture records until ctx is cancelled or the source ends
func (a *App) Capture(ctx context.Context, req CaptureRequest) (capture.Stats, error) {
	cc := a.cfg.Capture
	if req.DeviceID != "" {
		cc.DeviceID = req.DeviceID
	}
	if req.Backend != "" {
		cc.Backend = req.Backend
	}
	if req.Rate > 0 {
		cc.SampleRate = req.Rate
	}

	output := req.Output
	if output == "" {
		output = capture.OutputName(cc.OutputDir, a.now())
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return capture.Stats{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	var src audio.FrameSource
	if req.Replay != "" {
		src = audio.NewReplay(req.Replay, false)
	} else {
		if err := permissions.EnsureCapture(a.log); err != nil {
			return capture.Stats{}, err
		}
		var err error
		src, err = a.sources(cc.Backend)
		if err != nil {
			return capture.Stats{}, &capture.StageError{Stage: capture.StageDevice, Err: err}
		}
	}
	defer func() {
		if err := src.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close audio backend")
		}
	}()

	session := capture.New(capture.Config{
		OutputPath: output,
		SampleRate: cc.SampleRate,
		QueueSize:  cc.QueueSize,
		Device:     audio.DeviceSelector{ID: cc.DeviceID, Loopback: cc.Loopback},
	}, src, a.log)

	if a.status != nil {
		a.status.SetRecording(output)
		defer a.status.SetIdle()
	}

	err := session.Run(ctx)
	return session.Stats(), err
}

// TranscribeRequest describes one transcription
type TranscribeRequest struct {
	Input  string
	Output string // optional text file
	Copy   bool   // place the text on the clipboard
}

func (a *App) Transcribe(ctx context.Context, req TranscribeRequest) (whisper.Result, error) {
	if a.stt == nil {
		return whisper.Result{}, errors.New("app: no transcriber configured")
	}
	if _, err := os.Stat(req.Input); err != nil {
		return whisper.Result{}, fmt.Errorf("%w: %v", whisper.ErrMalformedInput, err)
	}

	if a.status != nil {
		a.status.SetProcessing("transcribing")
		defer a.status.SetIdle()
	}

	res, err := a.stt.TranscribeFile(ctx, req.Input)
	if err != nil {
		return whisper.Result{}, err
	}
	if res.Text == "" {
		a.log.Info().Str("input", req.Input).Msg("No speech found")
	}

	if req.Output != "" {
		if err := writeText(req.Output, res.Text); err != nil {
			return res, err
		}
		a.log.Info().Str("path", req.Output).Msg("Transcript written")
	}

	if req.Copy && res.Text != "" {
		if a.clip == nil {
			a.log.Warn().Msg("No clipboard configured")
		} else if err := a.clip.Copy(ctx, res.Text); err != nil {
			a.log.Error().Err(err).Msg("Clipboard error")
		} else {
			a.log.Info().Msg("Transcript copied to clipboard")
		}
	}
	return res, nil
}

// TranslateRequest describes one translation
type TranslateRequest struct {
	Input  string
	Output string // optional text file
}

func (a *App) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	if a.tr == nil {
		return "", errors.New("app: no translator configured")
	}

	raw, err := os.ReadFile(req.Input)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	if a.status != nil {
		a.status.SetProcessing("translating")
		defer a.status.SetIdle()
	}

	text := strings.TrimSpace(string(raw))
	out, err := a.tr.Translate(ctx, text)
	if err != nil {
		return "", err
	}

	if req.Output != "" {
		if err := writeText(req.Output, out); err != nil {
			return out, err
		}
		a.log.Info().Str("path", req.Output).Msg("Translation written")
	}
	return out, nil
}

// Devices lists the capture devices of a backend
func (a *App) Devices(backend string) ([]audio.DeviceInfo, error) {
	if backend == "" {
		backend = a.cfg.Capture.Backend
	}
	src, err := a.sources(backend)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return src.Devices()
}

func writeText(path, text string) error {
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
