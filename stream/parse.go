package stream

import (
	"encoding/json"

	"github.com/tidwall/sjson"

	"github.com/linanwx/surfbot/logger"
)

// Parse decodes one wire line into an event. Unknown event types, block
// kinds, and delta kinds return (nil, nil): additions to the protocol must
// not fail the session. A syntactically broken line is a real error and is
// left to the caller.
func Parse(line []byte) (Event, error) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(line, &base); err != nil {
		return nil, err
	}

	switch base.Type {
	case "init":
		var w struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(line, &w); err != nil {
			return nil, err
		}
		return InitEvent{SessionID: w.SessionID}, nil

	case "content_block_start":
		var w struct {
			ContentBlock struct {
				Type string `json:"type"`
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"content_block"`
		}
		if err := json.Unmarshal(line, &w); err != nil {
			return nil, err
		}
		switch BlockKind(w.ContentBlock.Type) {
		case BlockText:
			return ContentBlockStartEvent{Block: BlockText}, nil
		case BlockToolUse:
			return ContentBlockStartEvent{
				Block:    BlockToolUse,
				ToolID:   w.ContentBlock.ID,
				ToolName: w.ContentBlock.Name,
			}, nil
		default:
			logger.Debug("skipping unknown content block type", "type", w.ContentBlock.Type)
			return nil, nil
		}

	case "content_block_delta":
		var w struct {
			Delta struct {
				Type        string `json:"type"`
				Text        string `json:"text"`
				PartialJSON string `json:"partial_json"`
			} `json:"delta"`
		}
		if err := json.Unmarshal(line, &w); err != nil {
			return nil, err
		}
		switch DeltaKind(w.Delta.Type) {
		case DeltaText:
			return ContentBlockDeltaEvent{Delta: DeltaText, Text: w.Delta.Text}, nil
		case DeltaInputJSON:
			return ContentBlockDeltaEvent{Delta: DeltaInputJSON, PartialJSON: w.Delta.PartialJSON}, nil
		default:
			logger.Debug("skipping unknown delta type", "type", w.Delta.Type)
			return nil, nil
		}

	case "content_block_stop":
		return ContentBlockStopEvent{}, nil

	case "tool_progress":
		var w struct {
			ToolID string `json:"tool_id"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(line, &w); err != nil {
			return nil, err
		}
		return ToolProgressEvent{ToolID: w.ToolID, IsError: w.Status == "error"}, nil

	case "result":
		var w struct {
			TotalCostUSD float64 `json:"total_cost_usd"`
			DurationMs   int64   `json:"duration_ms"`
			IsError      bool    `json:"is_error"`
		}
		if err := json.Unmarshal(line, &w); err != nil {
			return nil, err
		}
		return ResultEvent{
			TotalCostUSD: w.TotalCostUSD,
			DurationMs:   w.DurationMs,
			IsError:      w.IsError,
		}, nil

	default:
		logger.Debug("skipping unknown event type", "type", base.Type)
		return nil, nil
	}
}

// Envelope is one outbound user message. SessionID may still be empty when
// a message is queued before the init event arrives; it is stamped at
// send time.
type Envelope struct {
	SessionID string
	Text      string
}

// MarshalWire renders the envelope as one wire line (no trailing newline).
func (e Envelope) MarshalWire() []byte {
	body, _ := sjson.Set(`{"type":"user"}`, "session_id", e.SessionID)
	body, _ = sjson.Set(body, "text", e.Text)
	return []byte(body)
}
