package main

import (
	"context"
	"io"
	"log"

	"github.com/firebase/genkit/go/genkit"
	"go.uber.org/fx"

	tripweaver "github.com/ZanzyTHEbar/tripweaver-genkit"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/adapters"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/cache"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/checkpoint"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/collectors"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/config"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/embedding"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/itinerary"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/knowledge"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/llm"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/store"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/vectorindex"
)

type configFile string

// coreModule provides configuration, the embedder and the knowledge index.
func coreModule(path string) fx.Option {
	return fx.Options(
		fx.Supply(configFile(path)),
		fx.Provide(loadConfig, newEmbedder, newIndex),
	)
}

// plannerModule provides a Planner and everything it is built from.
func plannerModule(path string) fx.Option {
	return fx.Options(
		coreModule(path),
		fx.Provide(
			newGenkit,
			newCollectors,
			newRetriever,
			newSynthesizer,
			newResultStore,
			newCheckpointStore,
			newPlanner,
		),
	)
}

func loadConfig(path configFile) (config.Config, error) {
	return config.Load(string(path))
}

func closeOnStop(lc fx.Lifecycle, v interface{}) {
	if c, ok := v.(io.Closer); ok {
		lc.Append(fx.StopHook(c.Close))
	}
}

func newEmbedder(lc fx.Lifecycle, cfg config.Config) (embedding.Embedder, error) {
	e, err := embedding.New(context.Background(), embedding.Settings{
		Provider:  cfg.Embedding.Provider,
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		return nil, err
	}
	closeOnStop(lc, e)
	return e, nil
}

func newIndex(cfg config.Config, e embedding.Embedder) (*vectorindex.Index, error) {
	idx := vectorindex.New(e)
	if err := idx.Load(cfg.Index.Path); err != nil {
		return nil, err
	}
	log.Printf("Knowledge index loaded (path: %s, documents: %d)", cfg.Index.Path, idx.Count())
	return idx, nil
}

// newGenkit initialises genkit only for the genkit provider; otherwise it
// provides nil and the plain completer and retriever are used.
func newGenkit(cfg config.Config) (*genkit.Genkit, error) {
	if cfg.LLM.Provider != "genkit" {
		return nil, nil
	}
	return llm.InitGenkit(context.Background(), cfg.LLM.APIKey, cfg.LLM.Model)
}

func newCollectors(cfg config.Config) tripweaver.Collectors {
	s := collectors.Settings{
		OpenWeatherKey:  cfg.Collectors.OpenWeatherKey,
		ExchangeRateKey: cfg.Collectors.ExchangeRateKey,
		HTTPTimeout:     cfg.Collectors.HTTPTimeout,
	}
	if ttl := cfg.Collectors.CacheTTL; ttl > 0 {
		s.Cache = cache.NewTTLCache(ttl, 2*ttl)
	}
	return collectors.New(s)
}

func newRetriever(cfg config.Config, idx *vectorindex.Index, g *genkit.Genkit) tripweaver.Retriever {
	engine := knowledge.NewEngine(idx,
		knowledge.WithSimilarityFloor(cfg.Index.SimilarityFloor),
		knowledge.WithDefaultTopK(cfg.Index.MaxResults),
	)
	if g == nil {
		return engine
	}
	return adapters.NewGenkitRetrieverAdapter(adapters.DefineRetrievalFlow(g, engine))
}

func newSynthesizer(lc fx.Lifecycle, cfg config.Config, g *genkit.Genkit) (tripweaver.Synthesizer, error) {
	var completer llm.Completer
	if g != nil {
		var opts []adapters.CompletionOption
		if ttl := cfg.LLM.CacheTTL; ttl > 0 {
			opts = append(opts, adapters.WithCompletionCache(cache.NewTTLCache(ttl, 2*ttl)))
		}
		completer = llm.WithTimeout(adapters.NewGenkitCompletionAdapter(llm.DefineCompletionFlow(g), opts...), cfg.LLM.Timeout)
	} else {
		c, err := llm.New(context.Background(), llm.Settings{
			Provider: cfg.LLM.Provider,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
			APIKey:   cfg.LLM.APIKey,
			Timeout:  cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, err
		}
		completer = c
	}
	closeOnStop(lc, completer)
	log.Printf("Completion provider configured (provider: %s, model: %s)", cfg.LLM.Provider, cfg.LLM.Model)
	return itinerary.NewSynthesizer(completer, itinerary.WithTemperature(cfg.LLM.Temperature)), nil
}

// newResultStore opens the Postgres store when a DSN is configured.
func newResultStore(lc fx.Lifecycle, cfg config.Config, e embedding.Embedder) (*store.PlanStore, error) {
	if cfg.Database.DSN == "" {
		return nil, nil
	}
	db, err := store.Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	s := store.NewPlanStore(db, e)
	lc.Append(fx.Hook{
		OnStart: s.Migrate,
		OnStop: func(context.Context) error {
			store.Close(db)
			return nil
		},
	})
	return s, nil
}

func newCheckpointStore(cfg config.Config) (*checkpoint.FileStore, error) {
	if cfg.Approval.CheckpointDir == "" {
		return nil, nil
	}
	return checkpoint.NewFileStore(cfg.Approval.CheckpointDir, &checkpoint.StdLogger{})
}

type plannerParams struct {
	fx.In

	Lifecycle   fx.Lifecycle
	Config      config.Config
	Collectors  tripweaver.Collectors
	Retriever   tripweaver.Retriever
	Synthesizer tripweaver.Synthesizer
	Results     *store.PlanStore
	Checkpoints *checkpoint.FileStore
	Approver    tripweaver.ApprovalHandler `optional:"true"`
}

func newPlanner(p plannerParams) (*tripweaver.Planner, error) {
	cfg := p.Config
	rules, err := cfg.ApprovalRules()
	if err != nil {
		return nil, err
	}

	options := []tripweaver.Option{
		tripweaver.WithConfig(tripweaver.Config{
			EnableEventBus:        !cfg.Planner.DisableEventBus,
			EventBusBufferSize:    cfg.Planner.EventBusBufferSize,
			EventBusWorkerCount:   cfg.Planner.EventBusWorkerCount,
			KnowledgeTopK:         cfg.Planner.KnowledgeTopK,
			BaseCurrency:          cfg.Planner.BaseCurrency,
			RunRetention:          cfg.Planner.RunRetention,
			ApprovalOnWeatherRisk: cfg.Approval.WeatherGates,
			ApprovalRules:         rules,
			ApprovalTimeout:       cfg.Approval.Timeout,
			PersistResults:        p.Results != nil,
		}),
		tripweaver.WithCollectors(p.Collectors),
		tripweaver.WithRetriever(p.Retriever),
		tripweaver.WithSynthesizer(p.Synthesizer),
	}

	var checkpoints tripweaver.CheckpointStore
	if p.Checkpoints != nil {
		checkpoints = p.Checkpoints
		options = append(options, tripweaver.WithCheckpointStore(checkpoints))
	}
	if p.Results != nil {
		options = append(options, tripweaver.WithResultStore(p.Results))
	}
	switch {
	case p.Approver != nil:
		options = append(options, tripweaver.WithApprovalHandler(p.Approver))
	case cfg.Approval.Interactive:
		options = append(options, tripweaver.WithApprovalHandler(tripweaver.NewTokenApprover(checkpoints)))
	}

	planner, err := tripweaver.New(options...)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.StopHook(planner.Close))
	return planner, nil
}
