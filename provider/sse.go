package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linanwx/surfbot/logger"
	"github.com/linanwx/surfbot/stream"
)

const openAIAPIBase = "https://api.openai.com/v1"

func init() {
	Register("sse", Registration{
		EnvKey:       "OPENAI_API_KEY",
		DefaultModel: "gpt-5.2",
		Constructor: func(s Settings) (stream.Transport, error) {
			return newSSETransport(s), nil
		},
	})
}

// chatMessage is one turn in OpenAI chat-completions format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// sseTransport speaks OpenAI-compatible chat completions over SSE,
// translating delta chunks onto the wire event union as they arrive.
type sseTransport struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client

	events   chan stream.Event
	outbound chan string
	history  []chatMessage

	cancel   context.CancelFunc
	stopOnce sync.Once
}

func newSSETransport(s Settings) *sseTransport {
	baseURL := strings.TrimRight(strings.TrimSpace(s.APIBase), "/")
	if baseURL == "" {
		baseURL = openAIAPIBase
	}
	return &sseTransport{
		apiKey:     s.APIKey,
		baseURL:    baseURL,
		model:      s.Model,
		maxTokens:  s.MaxTokens,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		events:     make(chan stream.Event, 64),
		outbound:   make(chan string, 16),
	}
}

func (t *sseTransport) Start(ctx context.Context) (<-chan stream.Event, error) {
	ctx, t.cancel = context.WithCancel(ctx)

	go func() {
		defer close(t.events)

		t.emit(ctx, stream.InitEvent{SessionID: uuid.NewString()})

		for {
			select {
			case <-ctx.Done():
				return
			case text := <-t.outbound:
				if !t.runTurn(ctx, text) {
					return
				}
			}
		}
	}()

	return t.events, nil
}

func (t *sseTransport) Send(ctx context.Context, env stream.Envelope) error {
	select {
	case t.outbound <- env.Text:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *sseTransport) Stop() error {
	t.stopOnce.Do(func() {
		if t.cancel != nil {
			t.cancel()
		}
	})
	return nil
}

func (t *sseTransport) runTurn(ctx context.Context, text string) bool {
	start := time.Now()
	t.history = append(t.history, chatMessage{Role: "user", Content: text})

	body, err := json.Marshal(map[string]any{
		"model":      t.model,
		"messages":   t.history,
		"stream":     true,
		"max_tokens": t.maxTokens,
	})
	if err != nil {
		t.emit(ctx, stream.ErrorEvent{Err: fmt.Errorf("build request: %w", err)})
		return true
	}

	url := t.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.emit(ctx, stream.ErrorEvent{Err: fmt.Errorf("create request: %w", err)})
		return true
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		logger.Error("sse request error", "err", err)
		t.emit(ctx, stream.ErrorEvent{Err: err})
		return true
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		var buf bytes.Buffer
		buf.ReadFrom(httpResp.Body)
		logger.Error("sse request error", "status", httpResp.StatusCode, "body", buf.String())
		t.emit(ctx, stream.ErrorEvent{Err: fmt.Errorf("request failed: %d %s", httpResp.StatusCode, buf.String())})
		return true
	}

	reply, ok := t.streamTurn(ctx, httpResp, start)
	if !ok {
		return false
	}
	t.history = append(t.history, chatMessage{Role: "assistant", Content: reply})
	return true
}

// streamTurn reads the SSE body and emits block events. Unparseable
// chunks are skipped, not fatal. Returns the assembled assistant reply.
func (t *sseTransport) streamTurn(ctx context.Context, httpResp *http.Response, start time.Time) (string, bool) {
	var content strings.Builder
	open := false // a text block has been started

	scanner := bufio.NewScanner(httpResp.Body)
	// Increase buffer for large events.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		// SSE format: "data: {json}"
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason string `json:"finish_reason"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			logger.Debug("skipping unparseable chunk", "err", err)
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if !open {
				t.emit(ctx, stream.ContentBlockStartEvent{Block: stream.BlockText})
				open = true
			}
			content.WriteString(delta)
			t.emit(ctx, stream.ContentBlockDeltaEvent{Delta: stream.DeltaText, Text: delta})
		}

		if ctx.Err() != nil {
			return "", false
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return "", false
		}
		t.emit(ctx, stream.ErrorEvent{Err: fmt.Errorf("read stream: %w", err)})
		return content.String(), true
	}

	if open {
		t.emit(ctx, stream.ContentBlockStopEvent{})
	}
	// Chat-completions endpoints report no spend; duration is still useful.
	t.emit(ctx, stream.ResultEvent{DurationMs: time.Since(start).Milliseconds()})
	return content.String(), true
}

func (t *sseTransport) emit(ctx context.Context, ev stream.Event) {
	select {
	case t.events <- ev:
	case <-ctx.Done():
	}
}
