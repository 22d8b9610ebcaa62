// Package translate converts transcripts into another language. A local
// language detector gates the remote model so text that is not in the
// expected source language passes through untouched.
package translate

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Translator translates a text
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Service only hands text in the source language to the backend
type Service struct {
	detector *Detector
	backend  Translator
	source   string
	log      zerolog.Logger
}

func NewService(detector *Detector, backend Translator, source string, log zerolog.Logger) *Service {
	return &Service{
		detector: detector,
		backend:  backend,
		source:   strings.ToLower(source),
		log:      log.With().Str("component", "translate").Logger(),
	}
}

func (s *Service) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	if s.detector != nil && s.source != "" {
		// undetermined text is assumed to be in the source language
		if lang, ok := s.detector.Detect(text); ok && lang != s.source {
			s.log.Info().Str("detected", lang).Str("source", s.source).Msg("Text not in source language, leaving as is")
			return text, nil
		}
	}

	out, err := s.backend.Translate(ctx, text)
	if err != nil {
		return "", err
	}
	s.log.Debug().Int("chars_in", len(text)).Int("chars_out", len(out)).Msg("Translated")
	return out, nil
}
