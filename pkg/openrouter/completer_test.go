package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go/option"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
)

type fakeChatModel struct {
	reply *schema.Message
	err   error
	calls int
	input []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.calls++
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func TestSDKCompleterSendsMessages(t *testing.T) {
	t.Parallel()

	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer or-test" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "think-tank" {
			t.Errorf("X-Title = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"test/model","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  three ideas  "}}]}`)
	}))
	defer server.Close()

	completer, err := NewSDKCompleter(Config{
		BaseURL:  server.URL,
		APIKey:   "or-test",
		Model:    "test/model",
		SiteName: "think-tank",
	}, option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("NewSDKCompleter() error = %v", err)
	}

	out, err := completer.Complete(context.Background(), "give me ideas", "be brief")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "three ideas" {
		t.Fatalf("Complete() = %q", out)
	}
	if body.Model != "test/model" {
		t.Fatalf("model = %q", body.Model)
	}
	if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Content != "give me ideas" {
		t.Fatalf("unexpected messages: %+v", body.Messages)
	}
}

func TestSDKCompleterServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"upstream down"}}`)
	}))
	defer server.Close()

	completer, err := NewSDKCompleter(Config{BaseURL: server.URL, APIKey: "k", Model: "m"}, option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("NewSDKCompleter() error = %v", err)
	}
	if _, err := completer.Complete(context.Background(), "hi", ""); err == nil {
		t.Fatal("expected completion error")
	}
}

func TestNewSDKCompleterRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewSDKCompleter(Config{Model: "m"}); !errors.Is(err, contractx.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if NewClient(Config{}) != nil {
		t.Fatal("NewClient() without api key must return nil")
	}
}

func TestChatCompleterGenerate(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{reply: &schema.Message{Role: schema.Assistant, Content: " recap "}}
	completer, err := NewChatCompleter(fake)
	if err != nil {
		t.Fatalf("NewChatCompleter() error = %v", err)
	}

	out, err := completer.Complete(context.Background(), "summarize the week", "system text")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "recap" {
		t.Fatalf("Complete() = %q", out)
	}
	if len(fake.input) != 2 || fake.input[0].Role != schema.System || fake.input[1].Content != "summarize the week" {
		t.Fatalf("unexpected input: %+v", fake.input)
	}
}

func TestChatCompleterSkipsEmptySystem(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{reply: &schema.Message{Content: "ok"}}
	completer, _ := NewChatCompleter(fake)

	if _, err := completer.Complete(context.Background(), "hi", "  "); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if len(fake.input) != 1 || fake.input[0].Role != schema.User {
		t.Fatalf("unexpected input: %+v", fake.input)
	}
}

func TestChatCompleterError(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{err: errors.New("model offline")}
	completer, _ := NewChatCompleter(fake)

	if _, err := completer.Complete(context.Background(), "hi", ""); err == nil {
		t.Fatal("expected error")
	}
	if fake.calls != 1 {
		t.Fatalf("expected 1 call, got %d", fake.calls)
	}
}

func TestNewChatCompleterRejectsNil(t *testing.T) {
	t.Parallel()

	if _, err := NewChatCompleter(nil); !errors.Is(err, contractx.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
