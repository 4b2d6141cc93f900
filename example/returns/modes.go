package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/tbxark/returnagent/agent"
	"github.com/tbxark/returnagent/config"
	"github.com/tbxark/returnagent/retrieval"
	"github.com/tbxark/returnagent/server"
)

func runConsole(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	chatCtx := agent.WithSessionKey(ctx, uuid.NewString())
	greeting, err := a.agent.Start(chatCtx)
	if err != nil {
		return err
	}
	fmt.Printf("Agent: %s\n", greeting.Message)

	runner := adk.NewRunner(ctx, adk.RunnerConfig{Agent: a.agent})
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("You: ")
		input, rErr := reader.ReadString('\n')
		if rErr != nil {
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		iter := runner.Run(chatCtx, []adk.Message{schema.UserMessage(input)})
		var done bool
		for {
			event, ok := iter.Next()
			if !ok {
				break
			}
			if event.Err != nil {
				return event.Err
			}
			if event.Action != nil && event.Action.Exit {
				done = true
			}
			if event.Output == nil || event.Output.MessageOutput == nil {
				continue
			}
			msg, mErr := event.Output.MessageOutput.GetMessage()
			if mErr != nil {
				return mErr
			}
			fmt.Printf("Agent: %s\n", msg.Content)
		}
		if done {
			return nil
		}
	}
}

// runAssistant chats with the tool-calling agent, which looks orders and the
// policy up on its own instead of following the fixed flow.
func runAssistant(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.chatModel == nil {
		return fmt.Errorf("assistant mode needs an LLM API key")
	}
	toolAgent, err := agent.NewToolAgent(ctx, a.chatModel, a.searcher, a.fetcher)
	if err != nil {
		return err
	}

	runner := adk.NewRunner(ctx, adk.RunnerConfig{Agent: toolAgent})
	reader := bufio.NewReader(os.Stdin)
	var history []adk.Message
	fmt.Println("Agent: Hi! Ask me whether your order can still be returned.")
	for {
		fmt.Print("You: ")
		input, rErr := reader.ReadString('\n')
		if rErr != nil {
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			fmt.Println("Agent: Goodbye!")
			return nil
		}
		history = append(history, schema.UserMessage(input))
		iter := runner.Run(ctx, history, agent.WithToday(time.Now()))
		var answer adk.Message
		for {
			event, ok := iter.Next()
			if !ok {
				break
			}
			if event.Err != nil {
				return event.Err
			}
			if event.Output == nil || event.Output.MessageOutput == nil {
				continue
			}
			msg, mErr := event.Output.MessageOutput.GetMessage()
			if mErr != nil {
				return mErr
			}
			if msg.Role == schema.Assistant && len(msg.ToolCalls) == 0 {
				answer = msg
			}
		}
		if answer == nil {
			slog.Warn("Assistant produced no answer", "input", input)
			continue
		}
		history = append(history, answer)
		fmt.Printf("Agent: %s\n", answer.Content)
	}
}

func runServer(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(a.agent).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	slog.Info("Server stopped successfully")
	return nil
}

func runIngest(ctx context.Context, cfg *config.Config) error {
	if cfg.OrdersDB == "" {
		return fmt.Errorf("orders_db must be set to ingest")
	}
	store, err := retrieval.NewSQLiteStore(cfg.OrdersDB)
	if err != nil {
		return err
	}
	defer store.Close()
	n, err := ingest(ctx, store, cfg.OrdersPath)
	if err != nil {
		return err
	}
	fmt.Printf("Ingested %d order chunks into %s\n", n, cfg.OrdersDB)
	return nil
}
