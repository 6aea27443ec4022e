// Package app assembles the vha services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/souchan25/virtualHealthAssistant/internal/chain"
	"github.com/souchan25/virtualHealthAssistant/internal/classifier"
	"github.com/souchan25/virtualHealthAssistant/internal/config"
	"github.com/souchan25/virtualHealthAssistant/internal/diagnosis"
	"github.com/souchan25/virtualHealthAssistant/internal/dialogue"
	"github.com/souchan25/virtualHealthAssistant/internal/httpapi"
	"github.com/souchan25/virtualHealthAssistant/internal/llm"
	"github.com/souchan25/virtualHealthAssistant/internal/logger"
	"github.com/souchan25/virtualHealthAssistant/internal/router"
	"github.com/souchan25/virtualHealthAssistant/internal/store"
)

// App holds the wired services. Close releases them.
type App struct {
	Config     *config.Config
	Store      *store.Store
	Classifier *classifier.Classifier
	Registry   *chain.Registry
	Executor   *chain.Executor
	Diagnosis  *diagnosis.Service
	Dialogue   *dialogue.Client
	Router     *router.Router
}

// Options override parts of the wiring, mainly for tests.
type Options struct {
	// Store is used instead of opening cfg's database.
	Store *store.Store

	// Factory builds providers instead of llm.NewProvider.
	Factory chain.Factory
}

// New wires every service. A missing model artifact is not fatal: the
// prediction path then answers symptoms.ErrModelNotReady while chat keeps
// working.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, Store: opts.Store}

	if a.Store == nil {
		path, err := cfg.ResolveDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		st, err := store.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.Store = st
	}

	clf, err := classifier.Load(cfg.ModelDir, cfg.DatasetsDir)
	if err != nil {
		if !errors.Is(err, classifier.ErrModelLoad) {
			a.Close()
			return nil, err
		}
		logger.Warn("classifier unavailable, predictions disabled", "dir", cfg.ModelDir, "error", err)
	} else {
		a.Classifier = clf
	}

	factory := opts.Factory
	if factory == nil {
		factory = a.providerFactory()
	}
	reg, err := chain.NewRegistry(cfg.Descriptors(), factory)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build provider registry: %w", err)
	}
	a.Registry = reg
	a.Executor = chain.NewExecutor(reg, chain.WithStrategy(cfg.StrategyValue()))

	var validator *diagnosis.Validator
	if reg.Len(chain.RoleValidate) > 0 {
		validator = diagnosis.NewValidator(a.Executor, ValidatorConfig(cfg))
	} else {
		logger.Info("no validate providers enabled, predictions are classifier only")
	}
	a.Diagnosis = diagnosis.NewService(a.Classifier, validator)

	a.Dialogue = dialogue.New(cfg.Dialogue.URL)

	var fallback router.Fallback
	if reg.Len(chain.RoleChat) > 0 {
		fallback = a.Executor
	}
	a.Router = router.New(a.Dialogue, fallback, NewRecordSink(a.Store.RecordRepo()), RouterConfig(cfg))

	logger.Debug("app ready",
		"model", a.Classifier != nil,
		"chat_providers", reg.Len(chain.RoleChat),
		"validate_providers", reg.Len(chain.RoleValidate),
		"strategy", cfg.StrategyValue(),
	)
	return a, nil
}

func (a *App) providerFactory() chain.Factory {
	var events store.EventRepo
	if a.Config.LogAttempts {
		events = a.Store.EventRepo()
	}
	return func(ctx context.Context, d chain.Descriptor) (llm.Provider, error) {
		return llm.NewProvider(ctx, d.Name, d.Client, events)
	}
}

// HTTPDeps returns the collaborators for the HTTP API.
func (a *App) HTTPDeps() httpapi.Deps {
	deps := httpapi.Deps{
		Chat:            a.Router,
		Dialogue:        a.Dialogue,
		Registry:        a.Registry,
		DialogueEnabled: a.Config.Dialogue.Enabled,
	}
	if a.Classifier != nil {
		deps.Predictor = a.Diagnosis
		deps.Vocabulary = a.Classifier.Vocabulary()
		deps.Metadata = a.Classifier.Metadata()
	}
	return deps
}

// Close waits for background record keeping and closes the store.
func (a *App) Close() error {
	if a.Router != nil {
		a.Router.Wait()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// RouterConfig derives routing settings from cfg.
func RouterConfig(cfg *config.Config) router.Config {
	return router.Config{
		DialogueEnabled: cfg.Dialogue.Enabled,
		DialogueTimeout: cfg.Dialogue.Timeout(),
		Threshold:       cfg.Dialogue.Threshold,
		MaxTokens:       cfg.Chat.MaxTokens,
		Temperature:     cfg.Chat.Temperature,
	}
}

// ValidatorConfig derives validation settings from cfg.
func ValidatorConfig(cfg *config.Config) diagnosis.ValidatorConfig {
	vc := diagnosis.DefaultValidatorConfig()
	if cfg.Validation.MaxTokens > 0 {
		vc.MaxTokens = cfg.Validation.MaxTokens
	}
	if cfg.Validation.Temperature > 0 {
		vc.Temperature = cfg.Validation.Temperature
	}
	if cfg.Validation.MaxSymptoms > 0 {
		vc.MaxSymptoms = cfg.Validation.MaxSymptoms
	}
	return vc
}
