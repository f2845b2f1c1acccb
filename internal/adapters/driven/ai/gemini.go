package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

var (
	_ driven.GenerationService = (*Gemini)(nil)
	_ driven.ChatStreamer      = (*Gemini)(nil)
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// generateTimeout bounds a single non-streaming prompt
const generateTimeout = 2 * time.Minute

// Gemini talks to the Gemini REST API. It serves both single prompts and
// grounded chat streams.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGemini creates a Gemini client
func NewGemini(apiKey, model, baseURL string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = domain.DefaultGenerationModel
	}
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}

	return &Gemini{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// No client timeout: chat streams are bounded by the request context
		client: &http.Client{},
	}, nil
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiTool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
	GoogleMaps   *struct{} `json:"google_maps,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Tools             []geminiTool    `json:"tools,omitempty"`
}

type geminiGroundingChunk struct {
	Web *struct {
		URI   string `json:"uri"`
		Title string `json:"title"`
	} `json:"web,omitempty"`
	Maps *struct {
		URI   string `json:"uri"`
		Title string `json:"title"`
	} `json:"maps,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content           geminiContent `json:"content"`
		FinishReason      string        `json:"finishReason"`
		GroundingMetadata *struct {
			GroundingChunks []geminiGroundingChunk `json:"groundingChunks"`
		} `json:"groundingMetadata,omitempty"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	Error *geminiError `json:"error,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// text concatenates the parts of the first candidate
func (r *geminiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// grounding returns the citations of the first candidate, or nil
func (r *geminiResponse) grounding() *domain.Grounding {
	if len(r.Candidates) == 0 || r.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	chunks := r.Candidates[0].GroundingMetadata.GroundingChunks
	g := &domain.Grounding{Chunks: make([]domain.GroundingChunk, 0, len(chunks))}
	for _, c := range chunks {
		switch {
		case c.Maps != nil:
			g.Chunks = append(g.Chunks, domain.GroundingChunk{Kind: domain.GroundingMaps, Title: c.Maps.Title, URI: c.Maps.URI})
		case c.Web != nil:
			g.Chunks = append(g.Chunks, domain.GroundingChunk{Kind: domain.GroundingWeb, Title: c.Web.Title, URI: c.Web.URI})
		}
	}
	return g
}

// Generate sends a single user prompt
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	reqBody := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}

	resp, err := g.post(ctx, ":generateContent", reqBody)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var genResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(genResp.Candidates) == 0 {
		if genResp.PromptFeedback != nil && genResp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked: %s", genResp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("no candidates returned")
	}

	return genResp.text(), nil
}

// StreamChat streams a grounded multi-turn chat. The grounding of the last
// event that carried any is returned.
func (g *Gemini) StreamChat(ctx context.Context, req domain.ChatCompletionRequest, emit func(delta string) error) (*domain.Grounding, error) {
	reqBody := geminiRequest{
		Contents: make([]geminiContent, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		role := "user"
		if m.Role == domain.ChatRoleAssistant {
			role = "model"
		}
		reqBody.Contents = append(reqBody.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	if req.SystemInstruction != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemInstruction}}}
	}
	if req.Grounding {
		reqBody.Tools = []geminiTool{
			{GoogleSearch: &struct{}{}},
			{GoogleMaps: &struct{}{}},
		}
	}

	resp, err := g.post(ctx, ":streamGenerateContent?alt=sse", reqBody)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var grounding *domain.Grounding
	err = readSSE(resp.Body, func(data []byte) error {
		var event geminiResponse
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("failed to parse stream event: %w", err)
		}
		if event.Error != nil {
			return fmt.Errorf("gemini API error: %s (status: %s)", event.Error.Message, event.Error.Status)
		}
		if gr := event.grounding(); gr != nil {
			grounding = gr
		}
		if text := event.text(); text != "" {
			return emit(text)
		}
		return nil
	})
	return grounding, err
}

// Model returns the model name being used
func (g *Gemini) Model() string {
	return g.model
}

// HealthCheck fetches the model metadata
func (g *Gemini) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/models/"+url.PathEscape(g.model), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geminiStatusError(resp)
	}
	return nil
}

// Close releases resources held by the client
func (g *Gemini) Close() error {
	g.client.CloseIdleConnections()
	return nil
}

// post sends a request to a model method. The caller closes the body.
func (g *Gemini) post(ctx context.Context, method string, reqBody geminiRequest) (*http.Response, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := g.baseURL + "/models/" + url.PathEscape(g.model) + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, geminiStatusError(resp)
	}
	return resp, nil
}

func geminiStatusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var errResp geminiResponse
	if json.Unmarshal(data, &errResp) == nil && errResp.Error != nil {
		return fmt.Errorf("gemini API error: %s (status: %s)", errResp.Error.Message, errResp.Error.Status)
	}
	return fmt.Errorf("gemini API returned status %d", resp.StatusCode)
}
