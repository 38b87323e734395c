package provider

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/linanwx/surfbot/logger"
	"github.com/linanwx/surfbot/stream"
)

func init() {
	Register("anthropic", Registration{
		EnvKey:       "ANTHROPIC_API_KEY",
		DefaultModel: "claude-sonnet-4-5",
		Constructor: func(s Settings) (stream.Transport, error) {
			return newAnthropicTransport(s), nil
		},
	})
}

// anthropicPricing is USD per million tokens, matched by model name prefix.
var anthropicPricing = []struct {
	prefix string
	input  float64
	output float64
}{
	{"claude-opus", 15, 75},
	{"claude-sonnet", 3, 15},
	{"claude-haiku", 0.8, 4},
	{"claude-3-5-haiku", 0.8, 4},
}

func estimateCost(model string, usage anthropic.Usage) float64 {
	in, out := 3.0, 15.0
	for _, p := range anthropicPricing {
		if strings.HasPrefix(model, p.prefix) {
			in, out = p.input, p.output
			break
		}
	}
	return float64(usage.InputTokens)*in/1e6 + float64(usage.OutputTokens)*out/1e6
}

// anthropicTransport drives the Messages streaming API. Each outbound
// message runs one turn; conversation history accumulates across turns.
type anthropicTransport struct {
	client    anthropic.Client
	model     string
	maxTokens int64

	events   chan stream.Event
	outbound chan string
	history  []anthropic.MessageParam

	cancel   context.CancelFunc
	stopOnce sync.Once
}

func newAnthropicTransport(s Settings) *anthropicTransport {
	opts := []option.RequestOption{option.WithAPIKey(s.APIKey)}
	if s.APIBase != "" {
		opts = append(opts, option.WithBaseURL(s.APIBase))
	}
	maxTokens := int64(s.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &anthropicTransport{
		client:    anthropic.NewClient(opts...),
		model:     s.Model,
		maxTokens: maxTokens,
		events:    make(chan stream.Event, 64),
		outbound:  make(chan string, 16),
	}
}

func (t *anthropicTransport) Start(ctx context.Context) (<-chan stream.Event, error) {
	ctx, t.cancel = context.WithCancel(ctx)

	go func() {
		defer close(t.events)

		// The SDK has no server-side session; identity is local.
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

func (t *anthropicTransport) Send(ctx context.Context, env stream.Envelope) error {
	select {
	case t.outbound <- env.Text:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *anthropicTransport) Stop() error {
	t.stopOnce.Do(func() {
		if t.cancel != nil {
			t.cancel()
		}
	})
	return nil
}

// runTurn streams one assistant turn, translating SDK events onto the
// wire event union. Returns false when the context ended.
func (t *anthropicTransport) runTurn(ctx context.Context, text string) bool {
	start := time.Now()
	t.history = append(t.history, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))

	sse := t.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(t.model),
		MaxTokens: t.maxTokens,
		Messages:  t.history,
	})

	var msg anthropic.Message
	for sse.Next() {
		event := sse.Current()
		if err := msg.Accumulate(event); err != nil {
			logger.Warn("accumulate failed", "err", err)
		}

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			switch block := ev.ContentBlock.AsAny().(type) {
			case anthropic.TextBlock:
				t.emit(ctx, stream.ContentBlockStartEvent{Block: stream.BlockText})
			case anthropic.ToolUseBlock:
				t.emit(ctx, stream.ContentBlockStartEvent{
					Block:    stream.BlockToolUse,
					ToolID:   block.ID,
					ToolName: block.Name,
				})
			}

		case anthropic.ContentBlockDeltaEvent:
			switch d := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				t.emit(ctx, stream.ContentBlockDeltaEvent{Delta: stream.DeltaText, Text: d.Text})
			case anthropic.InputJSONDelta:
				t.emit(ctx, stream.ContentBlockDeltaEvent{Delta: stream.DeltaInputJSON, PartialJSON: d.PartialJSON})
			}

		case anthropic.ContentBlockStopEvent:
			t.emit(ctx, stream.ContentBlockStopEvent{})
		}

		if ctx.Err() != nil {
			return false
		}
	}

	if err := sse.Err(); err != nil {
		if ctx.Err() != nil {
			return false
		}
		logger.Error("anthropic stream failed", "err", err)
		t.emit(ctx, stream.ErrorEvent{Err: err})
		return true
	}

	t.history = append(t.history, msg.ToParam())
	logger.Info("turn complete",
		"model", t.model,
		"inputTokens", msg.Usage.InputTokens,
		"outputTokens", msg.Usage.OutputTokens,
		"latencyMs", time.Since(start).Milliseconds(),
	)
	t.emit(ctx, stream.ResultEvent{
		TotalCostUSD: estimateCost(t.model, msg.Usage),
		DurationMs:   time.Since(start).Milliseconds(),
		IsError:      msg.StopReason == anthropic.StopReasonMaxTokens,
	})
	return true
}

func (t *anthropicTransport) emit(ctx context.Context, ev stream.Event) {
	select {
	case t.events <- ev:
	case <-ctx.Done():
	}
}
