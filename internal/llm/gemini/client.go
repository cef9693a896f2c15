package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shpitdev/stakeholder-profiler/internal/llm"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

type Config struct {
	APIKey string

	// ResearchModel and SynthesisModel select the model per call shape.
	ResearchModel  string
	SynthesisModel string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	// RateLimitRPS is shared by every run in the process. Set to <=0 to disable.
	RateLimitRPS float64
}

// Client is the process-wide handle to the Gemini API. It is read-only after New
// and safe for concurrent use.
type Client struct {
	client         *genai.Client
	researchModel  string
	synthesisModel string
	limiter        *rate.Limiter
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.ResearchModel) == "" || strings.TrimSpace(cfg.SynthesisModel) == "" {
		return nil, fmt.Errorf("gemini research and synthesis models are required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}
	return &Client{
		client:         client,
		researchModel:  strings.TrimSpace(cfg.ResearchModel),
		synthesisModel: strings.TrimSpace(cfg.SynthesisModel),
		limiter:        limiter,
	}, nil
}

func (c *Client) Generate(ctx context.Context, call llm.Call) (llm.Response, error) {
	model := c.synthesisModel
	if call.Kind == llm.CallResearch {
		model = c.researchModel
	}
	out := llm.Response{Model: model}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return out, err
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(call.Prompt), buildConfig(call))
	if err != nil {
		return out, classifyErr(err)
	}

	out.Segments = segments(resp)
	out.Citations = extractCitations(resp)
	return out, nil
}

func buildConfig(call llm.Call) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		CandidateCount: 1,
	}
	if strings.TrimSpace(call.System) != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: call.System}}}
	}
	if call.MaxTokens > 0 {
		cfg.MaxOutputTokens = call.MaxTokens
	}
	// Search grounding cannot be combined with a JSON response MIME type.
	if call.UseSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	} else if call.JSONOutput {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		kind := llm.KindForStatus(apiErr.Code)
		if kind == llm.KindFatal && strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED") {
			kind = llm.KindRateLimited
		}
		return &llm.APIError{
			Kind:    kind,
			Code:    apiErr.Code,
			Status:  apiErr.Status,
			Message: apiErr.Message,
			Err:     err,
		}
	}
	return &llm.APIError{Kind: llm.Classify(err), Message: err.Error(), Err: err}
}

func segments(resp *genai.GenerateContentResponse) []llm.Segment {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil
	}
	var out []llm.Segment
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil {
			continue
		}
		if p.Text != "" && !p.Thought {
			out = append(out, llm.Segment{Kind: llm.SegmentText, Text: p.Text})
			continue
		}
		out = append(out, llm.Segment{Kind: llm.SegmentOther})
	}
	return out
}

func extractCitations(resp *genai.GenerateContentResponse) []string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	c := resp.Candidates[0]
	if c.GroundingMetadata == nil {
		return nil
	}
	var out []string
	for _, chunk := range c.GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		if uri := strings.TrimSpace(chunk.Web.URI); uri != "" {
			out = append(out, uri)
		}
	}
	return out
}
