package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"medassist/internal/config"
)

// Provider represents a logical LLM provider.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// Generator is the single remote operation the gateway depends on: one
// prompt in, the response text out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Provider   Provider
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s request failed with status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s request failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

var (
	// ErrEmptyResponse is returned when a provider answers 2xx without text.
	ErrEmptyResponse = errors.New("llm returned an empty response")
	// ErrInvalidRequest marks requests that could not be built, such as a
	// malformed base URL. Retrying cannot fix them.
	ErrInvalidRequest = errors.New("llm request is invalid")
)

// NewGeneratorFromConfig constructs the Generator for the configured
// provider and reports which provider/model it resolved to.
func NewGeneratorFromConfig(ctx context.Context, cfg *config.Config) (Generator, Provider, string, error) {
	prov := Provider(strings.ToLower(cfg.LLM.Provider))
	timeout := time.Duration(cfg.LLM.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	switch prov {
	case ProviderOpenAI:
		openaiCfg := cfg.LLM.OpenAI
		if openaiCfg.APIKey == "" || openaiCfg.Model == "" {
			return nil, prov, openaiCfg.Model, errors.New("openai llm provider is not fully configured")
		}
		return &openAIClient{
			apiKey:  openaiCfg.APIKey,
			baseURL: openaiCfg.BaseURL,
			model:   openaiCfg.Model,
			http:    &http.Client{Timeout: timeout},
		}, prov, openaiCfg.Model, nil
	case ProviderAnthropic:
		anthCfg := cfg.LLM.Anthropic
		if anthCfg.APIKey == "" || anthCfg.Model == "" {
			return nil, prov, anthCfg.Model, errors.New("anthropic llm provider is not fully configured")
		}
		return &anthropicClient{
			apiKey:  anthCfg.APIKey,
			baseURL: anthCfg.BaseURL,
			model:   anthCfg.Model,
			http:    &http.Client{Timeout: timeout},
		}, prov, anthCfg.Model, nil
	case ProviderGoogle:
		googleCfg := cfg.LLM.Google
		if googleCfg.APIKey == "" || googleCfg.Model == "" {
			return nil, prov, googleCfg.Model, errors.New("google llm provider is not fully configured")
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:     googleCfg.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: &http.Client{Timeout: timeout},
		})
		if err != nil {
			return nil, prov, googleCfg.Model, fmt.Errorf("create gemini client: %w", err)
		}
		return &googleClient{models: client.Models, model: googleCfg.Model}, prov, googleCfg.Model, nil
	default:
		return nil, prov, "", fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
}

// openAIClient implements Generator using OpenAI-compatible Chat Completions.
type openAIClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// anthropicClient implements Generator using Anthropic's Messages API.
type anthropicClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// googleClient implements Generator using the Gemini SDK.
type googleClient struct {
	models *genai.Models
	model  string
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
}

type anthropicMessagesRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string                 `json:"role"`
	Content []anthropicTextContent `json:"content"`
}

type anthropicTextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessagesResponse struct {
	Content []anthropicTextContent `json:"content"`
}

func (c *openAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	body := openAIChatRequest{
		Model:       c.model,
		Messages:    []openAIChatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.2,
	}

	endpoint := c.baseURL
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	endpoint = strings.TrimSuffix(endpoint, "/") + "/chat/completions"

	var parsed openAIChatResponse
	err := postJSON(ctx, c.http, ProviderOpenAI, endpoint, body, map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}, &parsed)
	if err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *anthropicClient) Generate(ctx context.Context, prompt string) (string, error) {
	body := anthropicMessagesRequest{
		Model:     c.model,
		MaxTokens: 2048,
		Messages: []anthropicMessage{
			{
				Role:    "user",
				Content: []anthropicTextContent{{Type: "text", Text: prompt}},
			},
		},
	}

	endpoint := c.baseURL
	if endpoint == "" {
		endpoint = "https://api.anthropic.com/v1"
	}
	endpoint = strings.TrimSuffix(endpoint, "/") + "/messages"

	var parsed anthropicMessagesResponse
	err := postJSON(ctx, c.http, ProviderAnthropic, endpoint, body, map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	}, &parsed)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, part := range parsed.Content {
		if part.Type == "text" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

func (c *googleClient) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fromGenaiError(err)
	}
	text := result.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// fromGenaiError maps SDK API errors onto StatusError so the gateway can
// classify every provider the same way.
func fromGenaiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: ProviderGoogle, StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &StatusError{Provider: ProviderGoogle, StatusCode: apiErrPtr.Code, Body: apiErrPtr.Message}
	}
	return fmt.Errorf("gemini generateContent: %w", err)
}

// postJSON sends body as JSON and decodes a 2xx response into out.
func postJSON(ctx context.Context, client *http.Client, prov Provider, endpoint string, body any, headers map[string]string, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encode %s request: %w", ErrInvalidRequest, prov, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build %s request: %w", ErrInvalidRequest, prov, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Provider: prov, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
