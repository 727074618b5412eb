package cmd

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/samsaffron/vibe-llm/internal/config"
	"github.com/samsaffron/vibe-llm/internal/conversation"
	"github.com/samsaffron/vibe-llm/internal/llm"
	"github.com/samsaffron/vibe-llm/internal/logging"
	"github.com/samsaffron/vibe-llm/internal/normalize"
	"github.com/samsaffron/vibe-llm/internal/session"
	"github.com/samsaffron/vibe-llm/internal/speech"
	"github.com/samsaffron/vibe-llm/internal/vibe"
)

func applyProviderOverrides(cfg *config.Config, providerFlag string) error {
	if providerFlag == "" {
		return nil
	}
	provider, model, err := llm.ParseProviderModel(providerFlag)
	if err != nil {
		return err
	}
	cfg.ApplyOverrides(provider, model)
	return nil
}

// app bundles what every front-end needs for one conversation.
type app struct {
	cfg     *config.Config
	studio  *vibe.Studio
	store   session.Store
	speaker speech.Speaker
	closer  io.Closer
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.closer != nil {
		_ = a.closer.Close()
	}
}

// newApp wires provider, transcript store, normalizer and studio from configuration.
func newApp(cfg *config.Config, closer io.Closer, onEvent func(vibe.Event)) (*app, error) {
	provider, err := llm.NewProvider(cfg)
	if err != nil {
		return nil, err
	}

	store, err := session.NewStore(session.Config{Enabled: cfg.Session.Search})
	if err != nil {
		return nil, err
	}
	mirror := session.NewLoggingStore(store, logging.Component("session"))

	normalizer := normalize.New(normalize.Options{
		Tags: normalize.ReasoningTags{
			Open:  cfg.Normalize.ReasoningOpen,
			Close: cfg.Normalize.ReasoningClose,
		},
		Logger: logrus.NewEntry(logrus.StandardLogger()),
	})

	studio, err := vibe.New(vibe.Options{
		Provider:        provider,
		Instructions:    cfg.Vibe.Instructions,
		Apology:         cfg.Vibe.Apology,
		Debounce:        cfg.Vibe.Debounce,
		Timeout:         cfg.Vibe.Timeout,
		Temperature:     cfg.Vibe.Temperature,
		MaxOutputTokens: cfg.Vibe.MaxOutputTokens,
		Debug:           flagDebug,
		Normalizer:      normalizer,
		Log:             conversation.NewLog(mirror),
		Logger:          logging.Component("vibe"),
		OnEvent:         onEvent,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &app{cfg: cfg, studio: studio, store: store, closer: closer}
	if sp, err := speech.New(cfg.Speech, logging.Component("speech")); err == nil {
		a.speaker = sp
	} else {
		logrus.WithError(err).Debug("read-aloud unavailable")
	}
	return a, nil
}

// searchStore returns the store for /search, or nil when search is disabled.
func (a *app) searchStore() session.Store {
	if !a.cfg.Session.Search {
		return nil
	}
	return a.store
}
