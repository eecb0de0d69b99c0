package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const geminiMaxOutputTokens = 8192

type geminiConfig struct {
	APIKey               string `json:"api_key"`
	Backend              string `json:"backend"`
	Project              string `json:"project"`
	Location             string `json:"location"`
	OutputDimensionality int32  `json:"output_dimensionality"`
}

// geminiProvider holds one client for the process lifetime.
type geminiProvider struct {
	client    *genai.Client
	outputDim int32
}

func newGeminiProvider(args interface{}) (*geminiProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	p := &geminiProvider{outputDim: cfg.OutputDimensionality}
	cc := &genai.ClientConfig{}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "vertex", "vertexai":
		if cfg.Project == "" || cfg.Location == "" {
			return nil, fmt.Errorf("gemini vertex backend needs project and location")
		}
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
	default:
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return p, nil
		}
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = apiKey
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	p.client = client
	return p, nil
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	if p.client == nil {
		return "", ErrUnavailable
	}
	resp, err := p.client.Models.GenerateContent(
		ctx,
		model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}},
		p.generationConfig(),
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (p *geminiProvider) ReadDocument(ctx context.Context, model string, instruction string, data []byte, mimeType string) (string, error) {
	if p.client == nil {
		return "", ErrUnavailable
	}
	parts := []*genai.Part{
		{Text: instruction},
		{InlineData: &genai.Blob{Data: data, MIMEType: mimeType}},
		{Text: "output"},
	}
	resp, err := p.client.Models.GenerateContent(
		ctx,
		model,
		[]*genai.Content{{Role: "user", Parts: parts}},
		p.generationConfig(),
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (p *geminiProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	if p.client == nil {
		return nil, ErrUnavailable
	}
	var config *genai.EmbedContentConfig
	if taskType != "" || p.outputDim > 0 {
		config = &genai.EmbedContentConfig{TaskType: taskType}
		if p.outputDim > 0 {
			config.OutputDimensionality = genai.Ptr(p.outputDim)
		}
	}
	resp, err := p.client.Models.EmbedContent(
		ctx,
		model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		config,
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding values returned")
	}
	return resp.Embeddings[0].Values, nil
}

func (p *geminiProvider) generationConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		MaxOutputTokens: geminiMaxOutputTokens,
		Temperature:     genai.Ptr[float32](1),
		TopP:            genai.Ptr[float32](0.95),
	}
}

func init() {
	Register("gemini", func(args interface{}) (IAIProvider, error) {
		return newGeminiProvider(args)
	})
	RegisterEmbed("gemini", func(args interface{}) (IEmbedProvider, error) {
		return newGeminiProvider(args)
	})
}
