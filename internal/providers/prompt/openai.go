package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type OpenAIOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Fallback   Modifier
	OnFallback func(reason string, err error)
}

// OpenAIModifier implements Modifier against an OpenAI-compatible chat API.
type OpenAIModifier struct {
	apiKey     string
	model      string
	baseURL    string
	client     *http.Client
	fallback   Modifier
	onFallback func(reason string, err error)
}

const openAIDefaultTimeout = 90 * time.Second

const defaultOpenAIModel = "gpt-4o-mini"

const modifySystemPrompt = `You rewrite video generation prompts per user instructions and respond only with valid JSON: {"prompt": string, "temperature": number, "reasoning": string}.
Choose temperature by how far the result should deviate from the original clip:
0.2-0.3 keep it almost identical, fix one detail; 0.3-0.4 one precise attribute change; 0.4-0.5 small noticeable change; 0.6-0.7 moderate change; 0.8-1.0 complete regeneration.`

type openAIChatRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *openAIFormat   `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewOpenAIModifier(opts OpenAIOptions) (*OpenAIModifier, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	return &OpenAIModifier{
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      model,
		baseURL:    baseURL,
		client:     client,
		fallback:   opts.Fallback,
		onFallback: opts.OnFallback,
	}, nil
}

func (o *OpenAIModifier) ModifyPrompt(ctx context.Context, req ModifyRequest) (*ModifyResult, error) {
	messages := []openAIMessage{{Role: "system", Content: modifySystemPrompt}}
	for _, turn := range TrimHistory(req.History) {
		role := turn.Role
		if role != "assistant" {
			role = "user"
		}
		messages = append(messages, openAIMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, openAIMessage{
		Role:    "user",
		Content: fmt.Sprintf("Original prompt: %s\nInstruction: %s", req.OriginalPrompt, req.Instruction),
	})

	payload := openAIChatRequest{
		Model:          o.model,
		Temperature:    0.2,
		ResponseFormat: &openAIFormat{Type: "json_object"},
		Messages:       messages,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return o.useFallback(ctx, req, "encode_request", err)
	}
	endpoint := fmt.Sprintf("%s/chat/completions", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return o.useFallback(ctx, req, "build_request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return o.useFallback(ctx, req, "http_request", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return o.useFallback(ctx, req, fmt.Sprintf("http_%d", resp.StatusCode), fmt.Errorf("openai status %d", resp.StatusCode))
	}
	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return o.useFallback(ctx, req, "decode_response", err)
	}
	if len(out.Choices) == 0 {
		return o.useFallback(ctx, req, "empty_choices", errors.New("no choices"))
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return o.useFallback(ctx, req, "empty_response", errors.New("empty response"))
	}
	result, ok := parseModifyResult(text)
	if !ok {
		result = RawFallback(text)
	}
	result.Provider = o.model
	return result, nil
}

func (o *OpenAIModifier) useFallback(ctx context.Context, req ModifyRequest, reason string, err error) (*ModifyResult, error) {
	if o.onFallback != nil {
		o.onFallback(reason, err)
	}
	if o.fallback == nil {
		if err == nil {
			err = errors.New(reason)
		}
		return nil, fmt.Errorf("openai modify prompt (%s): %w", reason, err)
	}
	return o.fallback.ModifyPrompt(ctx, req)
}

var _ Modifier = (*OpenAIModifier)(nil)
