package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

type openAIConfig struct {
	APIKey      string `json:"api_key"`
	BaseURL     string `json:"base_url"`
	Dimensions  int    `json:"dimensions"`
	HTTPReferer string `json:"http_referer"`
	XTitle      string `json:"x_title"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type embedRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// openAICompatProvider talks to any endpoint that speaks the OpenAI
// chat/embeddings wire format (OpenAI itself, OpenRouter, local gateways).
type openAICompatProvider struct {
	name       string
	apiKey     string
	baseURL    string
	dimensions int
	headers    map[string]string
	client     *http.Client
}

func newOpenAICompat(name, defaultBaseURL string, args interface{}) (*openAICompatProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	headers := map[string]string{}
	if cfg.HTTPReferer != "" {
		headers["HTTP-Referer"] = cfg.HTTPReferer
	}
	if cfg.XTitle != "" {
		headers["X-Title"] = cfg.XTitle
	}
	return &openAICompatProvider{
		name:       name,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		dimensions: cfg.Dimensions,
		headers:    headers,
		client:     http.DefaultClient,
	}, nil
}

func (p *openAICompatProvider) Name() string {
	return p.name
}

func (p *openAICompatProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	var out chatResponse
	err := p.postJSON(ctx, "/chat/completions", chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%s response has no choices", p.name)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (p *openAICompatProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	_ = taskType
	var out embedResponse
	err := p.postJSON(ctx, "/embeddings", embedRequest{
		Model:      model,
		Input:      text,
		Dimensions: p.dimensions,
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("%s response has no embeddings", p.name)
	}
	return out.Data[0].Embedding, nil
}

func (p *openAICompatProvider) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	if p.apiKey == "" {
		return ErrUnavailable
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s request failed: %s: %s", p.name, resp.Status, strings.TrimSpace(string(raw)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func init() {
	Register("openai", func(args interface{}) (IAIProvider, error) {
		return newOpenAICompat("openai", defaultOpenAIBaseURL, args)
	})
	RegisterEmbed("openai", func(args interface{}) (IEmbedProvider, error) {
		return newOpenAICompat("openai", defaultOpenAIBaseURL, args)
	})
	Register("openrouter", func(args interface{}) (IAIProvider, error) {
		return newOpenAICompat("openrouter", defaultOpenRouterBaseURL, args)
	})
}
