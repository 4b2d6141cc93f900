package testcases

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/returnagent/agent"
	"github.com/tbxark/returnagent/policy"
	"github.com/tbxark/returnagent/retrieval"
	"github.com/tbxark/returnagent/types"
)

type Config struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var conf Config
	if err := sonic.Unmarshal(file, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

func InitChatModel(t *testing.T) *openai.ChatModel {
	t.Helper()
	if os.Getenv("RETURNAGENT_RUN_LIVE_TESTS") != "1" {
		t.Skip("set RETURNAGENT_RUN_LIVE_TESTS=1 to run live LLM tests")
		return nil
	}

	conf, err := loadConfig("../config.json")
	if err != nil {
		t.Skipf("failed to load config: %v", err)
		return nil
	}
	if conf.APIKey == "" {
		t.Skip("config.json api_key is empty")
		return nil
	}
	chatModel, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:  conf.APIKey,
		Model:   conf.Model,
		BaseURL: conf.BaseURL,
	})
	if err != nil {
		t.Fatalf("failed to init chat model: %v", err)
		return nil
	}
	return chatModel
}

var testOrders = []*schema.Document{
	{
		ID:       "lamp",
		Content:  "Order number: 9345018724\nProduct: Adjustable LED desk lamp\nDelivery date: 2024-01-01",
		MetaData: map[string]any{retrieval.MetaSource: "orders.md"},
	},
	{
		ID:       "bottle",
		Content:  "Order number: 1234567\nProduct: Water bottle\nStatus: In transit",
		MetaData: map[string]any{retrieval.MetaSource: "orders.md"},
	},
}

// NewTestFlow wires the tool-based flow to a fixed order index, a 30-day
// policy and today.
func NewTestFlow(t *testing.T, today time.Time) *agent.Flow {
	t.Helper()
	chatModel := InitChatModel(t)
	if chatModel == nil {
		return nil
	}
	flow, err := agent.NewToolBasedFlow(
		chatModel,
		retrieval.NewEinoSearcher(retrieval.NewMemoryRetriever(testOrders...)),
		policy.StaticFetcher{Document: types.PolicyDocument{
			ReturnWindowDays: 30,
			RawText:          "Most items can be returned within 30 days of delivery for a full refund.",
			Source:           "static",
		}},
		agent.WithClock(func() time.Time { return today }),
	)
	if err != nil {
		t.Fatalf("failed to create flow: %v", err)
	}
	return flow
}

// Conversation drives one session turn by turn.
type Conversation struct {
	t       *testing.T
	flow    *agent.Flow
	Session *types.Session
}

func NewConversation(t *testing.T, flow *agent.Flow) *Conversation {
	t.Helper()
	c := &Conversation{t: t, flow: flow, Session: types.NewSession(t.Name())}
	resp, err := flow.Start(context.Background(), c.Session)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	c.Session = resp.Session
	return c
}

func (c *Conversation) Say(text string) *agent.Response {
	c.t.Helper()
	resp, err := c.flow.Invoke(context.Background(), &agent.Request{Session: c.Session, UserInput: text})
	if err != nil {
		c.t.Fatalf("invoke %q: %v", text, err)
	}
	c.Session = resp.Session
	c.t.Logf("user: %s\nagent: %s", text, resp.Message)
	return resp
}
