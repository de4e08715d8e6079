package probe

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/streamprobe/browser"
	"github.com/hazyhaar/streamprobe/kit"
)

// RegisterMCP registers the probe tools on an MCP server.
func RegisterMCP(srv *mcp.Server, p *Probe) {
	registerScoreTool(srv, p)
	registerCheckTool(srv, p)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- score ---

type scoreReq struct {
	Actual   string  `json:"actual"`
	Expected string  `json:"expected"`
	MinScore float64 `json:"min_score"`
}

func registerScoreTool(srv *mcp.Server, p *Probe) {
	tool := &mcp.Tool{
		Name:        "streamprobe_score",
		Description: "Compute semantic similarity between an actual and an expected text, with an optional pass threshold.",
		InputSchema: inputSchema(map[string]any{
			"actual":    map[string]any{"type": "string", "description": "Text produced by the system under test"},
			"expected":  map[string]any{"type": "string", "description": "Reference text to compare against"},
			"min_score": map[string]any{"type": "number", "description": "Passing threshold in [0,1], default 0.8"},
		}, []string{"actual", "expected"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*scoreReq)
		minScore := r.MinScore
		if minScore <= 0 {
			minScore = DefaultMinScore
		}
		return p.scorer.Check(ctx, r.Actual, r.Expected, minScore)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r scoreReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- check ---

type checkReq struct {
	URL              string  `json:"url"`
	ResponseSelector string  `json:"response_selector"`
	InputSelector    string  `json:"input_selector"`
	SendSelector     string  `json:"send_selector"`
	Prompt           string  `json:"prompt"`
	Expected         string  `json:"expected"`
	MinScore         float64 `json:"min_score"`
	SilenceMs        int     `json:"silence_ms"`
	OverallMs        int     `json:"overall_ms"`
}

// trigger builds the prompt-firing action, or nil when the request
// carries nothing to send. With no send button the Enter key on the
// input submits, matching chat UIs that submit on keypress.
func (r checkReq) trigger() func(context.Context, *Session) error {
	if r.InputSelector == "" || r.Prompt == "" {
		return nil
	}
	input := browser.CSS(r.InputSelector)

	if r.SendSelector != "" {
		send := browser.CSS(r.SendSelector)
		return func(ctx context.Context, s *Session) error {
			if err := s.Tab.Type(ctx, input, r.Prompt); err != nil {
				return err
			}
			return s.Tab.Click(ctx, send)
		}
	}
	return func(ctx context.Context, s *Session) error {
		if err := s.Tab.Type(ctx, input, r.Prompt); err != nil {
			return err
		}
		return s.Tab.PressEnter(ctx, input)
	}
}

func registerCheckTool(srv *mcp.Server, p *Probe) {
	tool := &mcp.Tool{
		Name:        "streamprobe_check",
		Description: "Open a chat page, send a prompt, wait for the streamed response to settle, measure latency and score the answer.",
		InputSchema: inputSchema(map[string]any{
			"url":               map[string]any{"type": "string", "description": "Chat page URL"},
			"response_selector": map[string]any{"type": "string", "description": "CSS selector of the streamed response element"},
			"input_selector":    map[string]any{"type": "string", "description": "CSS selector of the prompt input field"},
			"send_selector":     map[string]any{"type": "string", "description": "CSS selector of the send button"},
			"prompt":            map[string]any{"type": "string", "description": "Prompt text to type"},
			"expected":          map[string]any{"type": "string", "description": "Expected answer for similarity scoring (optional)"},
			"min_score":         map[string]any{"type": "number", "description": "Passing threshold in [0,1], default 0.8"},
			"silence_ms":        map[string]any{"type": "integer", "description": "Quiet window in milliseconds, default 1000"},
			"overall_ms":        map[string]any{"type": "integer", "description": "Overall wait cap in milliseconds, default 30000"},
		}, []string{"url", "response_selector"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*checkReq)

		session, err := p.OpenPage(ctx, r.URL)
		if err != nil {
			return nil, err
		}
		defer session.Close()

		return p.CheckResponse(ctx, session, CheckSpec{
			Response: browser.CSS(r.ResponseSelector),
			Prompt:   r.Prompt,
			Expected: r.Expected,
			MinScore: r.MinScore,
			Silence:  time.Duration(r.SilenceMs) * time.Millisecond,
			Overall:  time.Duration(r.OverallMs) * time.Millisecond,
			Trigger:  r.trigger(),
		})
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r checkReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
