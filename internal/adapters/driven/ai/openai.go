package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

var (
	_ driven.GenerationService = (*OpenAI)(nil)
	_ driven.ChatStreamer      = (*OpenAI)(nil)
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultOllamaBaseURL = "http://localhost:11434/v1"
	defaultOllamaModel   = "llama3.1"
)

// OpenAI implements generation over the chat completions API. It also
// serves OpenAI-compatible servers such as Ollama. It has no grounding
// tools, so StreamChat never returns citations.
type OpenAI struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAI creates a chat completions client. apiKey may be empty for
// servers that do not check it.
func NewOpenAI(apiKey, model, baseURL string) (*OpenAI, error) {
	if model == "" {
		model = defaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	return &OpenAI{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}, nil
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
	Stream   bool            `json:"stream,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
		Delta   struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// Generate sends a single user prompt
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	resp, err := o.post(ctx, chatCompletionRequest{
		Model:    o.model,
		Messages: []openAIMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("OpenAI API error: %s (type: %s)", completion.Error.Message, completion.Error.Type)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return completion.Choices[0].Message.Content, nil
}

// StreamChat streams a multi-turn chat. Grounding is not supported and
// the returned grounding is always nil.
func (o *OpenAI) StreamChat(ctx context.Context, req domain.ChatCompletionRequest, emit func(delta string) error) (*domain.Grounding, error) {
	messages := make([]openAIMessage, 0, len(req.Messages)+1)
	if req.SystemInstruction != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemInstruction})
	}
	for _, m := range req.Messages {
		messages = append(messages, openAIMessage{Role: string(m.Role), Content: m.Content})
	}

	resp, err := o.post(ctx, chatCompletionRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	err = readSSE(resp.Body, func(data []byte) error {
		var chunk chatCompletionResponse
		if err := json.Unmarshal(data, &chunk); err != nil {
			return fmt.Errorf("failed to parse stream event: %w", err)
		}
		if chunk.Error != nil {
			return fmt.Errorf("OpenAI API error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			return nil
		}
		return emit(chunk.Choices[0].Delta.Content)
	})
	return nil, err
}

// Model returns the model name being used
func (o *OpenAI) Model() string {
	return o.model
}

// HealthCheck lists models to verify the endpoint and key
func (o *OpenAI) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	o.authorize(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return openAIStatusError(resp)
	}
	return nil
}

// Close releases resources held by the client
func (o *OpenAI) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

func (o *OpenAI) post(ctx context.Context, reqBody chatCompletionRequest) (*http.Response, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	o.authorize(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, openAIStatusError(resp)
	}
	return resp, nil
}

func (o *OpenAI) authorize(req *http.Request) {
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
}

func openAIStatusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var errResp chatCompletionResponse
	if json.Unmarshal(data, &errResp) == nil && errResp.Error != nil {
		return fmt.Errorf("OpenAI API error: %s (type: %s)", errResp.Error.Message, errResp.Error.Type)
	}
	return fmt.Errorf("OpenAI API returned status %d", resp.StatusCode)
}
