// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakura/springbreak/chooser"
	"github.com/sakura/springbreak/config"
	"github.com/sakura/springbreak/places"
	"github.com/sakura/springbreak/speech"
	"github.com/sakura/springbreak/translate"
)

// Services are the external backends the chooser depends on.
type Services struct {
	Searcher    places.Searcher
	Translator  translate.Backend
	Recognizer  speech.Recognizer
	Synthesizer speech.Synthesizer

	closers []func() error
}

// NewServices creates the Google backends and the speech synthesizer from
// configuration. Recognition is enabled only with a speech API key, and
// synthesis only when the synthesizer binary is installed.
func NewServices(
	ctx context.Context,
	cfg *config.Config,
	log *slog.Logger,
) (*Services, error) {
	s := &Services{}

	searcher, err := places.NewGoogle(ctx, cfg.Places.APIKey,
		places.WithEndpoint(cfg.Places.Endpoint),
		places.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	s.Searcher = searcher
	s.closers = append(s.closers, searcher.Close)

	backend, err := translate.NewGoogle(ctx, cfg.Translate.APIKey,
		translate.WithEndpoint(cfg.Translate.Endpoint),
		translate.WithLogger(log),
	)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Translator = backend
	s.closers = append(s.closers, backend.Close)

	if cfg.Speech.APIKey != "" {
		recognizer, err := speech.NewGoogle(ctx,
			speech.WithAPIKey(cfg.Speech.APIKey),
			speech.WithEndpoint(cfg.Speech.Endpoint),
			speech.WithMaxAlternatives(cfg.Speech.MaxAlternatives),
			speech.WithLogger(log),
		)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Recognizer = recognizer
		s.closers = append(s.closers, recognizer.Close)
	} else {
		log.Info("speech recognition disabled: no speech API key")
	}

	if cfg.Speech.Synthesizer != "" {
		synth, err := speech.NewCommand(cfg.Speech.Synthesizer,
			speech.WithLogger(log))
		if err != nil {
			log.Warn("speech synthesis disabled", "error", err)
		} else {
			s.Synthesizer = synth
		}
	}

	return s, nil
}

// ChooserOptions returns the chooser options for these services.
func (s *Services) ChooserOptions(
	cfg *config.Config,
	log *slog.Logger,
) []chooser.Option {
	opts := []chooser.Option{
		chooser.WithSearchTimeout(time.Duration(cfg.Places.SearchTimeout)),
		chooser.WithTranslateOptions{
			translate.WithReadyTimeout(time.Duration(cfg.Translate.ReadyTimeout)),
			translate.WithLogger(log),
		},
		chooser.WithLogger(log),
	}
	if s.Recognizer != nil {
		opts = append(opts, chooser.WithRecognizer{Recognizer: s.Recognizer})
	}
	if s.Synthesizer != nil {
		opts = append(opts, chooser.WithSynthesizer{Synthesizer: s.Synthesizer})
	}
	return opts
}

// Close releases the backends.
func (s *Services) Close() {
	for _, c := range s.closers {
		_ = c()
	}
}
