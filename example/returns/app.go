package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/returnagent/agent"
	"github.com/tbxark/returnagent/config"
	"github.com/tbxark/returnagent/dialogue"
	"github.com/tbxark/returnagent/intent"
	"github.com/tbxark/returnagent/policy"
	"github.com/tbxark/returnagent/retrieval"
)

type app struct {
	agent     *agent.Agent
	searcher  retrieval.Searcher
	fetcher   policy.Fetcher
	chatModel model.ToolCallingChatModel
	closers   []func() error
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			slog.Warn("Close failed", "error", err)
		}
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	orders, err := openOrders(ctx, cfg, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	fetcher := policy.NewFileFetcher(cfg.PolicyPath)
	fetcher.MaxChars = cfg.PolicyMaxChars
	fetcher.DefaultWindowDays = cfg.DefaultWindowDays

	opts := []agent.FlowOption{agent.WithMaxSlotRetries(cfg.MaxSlotRetries)}
	var generator dialogue.Generator = dialogue.LocalGenerator{}
	if cfg.HasLLM() {
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create chat model: %w", err)
		}
		a.chatModel = cm
		recognizer, err := intent.NewToolBasedRecognizer(cm)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, agent.WithRecognizer(intent.NewLocalFirstRecognizer(intent.NewLocalRecognizer(), recognizer)))
		generator = dialogue.NewFailbackGenerator(
			dialogue.NewToolBasedGenerator(cm, dialogue.WithLang(cfg.LLM.Lang)),
			dialogue.LocalGenerator{},
		)
		slog.Info("Using chat model", "model", cfg.LLM.Model)
	} else {
		slog.Info("No LLM API key configured, using local intent recognition and wording")
	}

	a.searcher = retrieval.NewEinoSearcher(orders)
	a.fetcher = fetcher
	flow, err := agent.NewFlow(a.searcher, fetcher, generator, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.agent = agent.NewAgent(
		"ReturnAssistant",
		"An agent that checks whether an order can still be returned",
		flow,
		agent.NewMemorySessionStore(cfg.SessionTTL()),
		agent.WithHistory(agent.NewMemoryHistoryStore(cfg.SessionTTL(), agent.KeepSystemLastNTrimmer{N: cfg.HistorySize})),
	)
	return a, nil
}

// openOrders returns the SQLite store when one is configured, seeding it from
// OrdersPath when empty, and an in-memory index of OrdersPath otherwise.
func openOrders(ctx context.Context, cfg *config.Config, a *app) (retriever.Retriever, error) {
	if cfg.OrdersDB == "" {
		docs, err := loadOrders(ctx, cfg.OrdersPath)
		if err != nil {
			return nil, err
		}
		index := retrieval.NewMemoryRetriever(docs...)
		slog.Info("Indexed orders in memory", "chunks", index.Len(), "path", cfg.OrdersPath)
		return index, nil
	}

	store, err := retrieval.NewSQLiteStore(cfg.OrdersDB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	n, err := store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 && cfg.OrdersPath != "" {
		if _, err := ingest(ctx, store, cfg.OrdersPath); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func loadOrders(ctx context.Context, path string) ([]*schema.Document, error) {
	docs, err := retrieval.MarkdownLoader{}.Load(ctx, document.Source{URI: path})
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	chunks, err := retrieval.OrderSplitter{}.Transform(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("split orders: %w", err)
	}
	return chunks, nil
}

func ingest(ctx context.Context, store *retrieval.SQLiteStore, path string) (int, error) {
	docs, err := loadOrders(ctx, path)
	if err != nil {
		return 0, err
	}
	n, err := store.Ingest(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("ingest orders: %w", err)
	}
	slog.Info("Ingested orders", "chunks", n, "path", path)
	return n, nil
}
