package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// WrapTimeoutGenerator bounds every call and rejects blank answers.
func WrapTimeoutGenerator(g IGenerator, timeout time.Duration) IGenerator {
	if g == nil {
		return nil
	}
	return &timeoutGenerator{next: g, timeout: timeout}
}

type timeoutGenerator struct {
	next    IGenerator
	timeout time.Duration
}

func (t *timeoutGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	resp, err := t.next.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

// WrapTimeoutReader bounds document reads the same way.
func WrapTimeoutReader(r IDocumentReader, timeout time.Duration) IDocumentReader {
	if r == nil || timeout <= 0 {
		return r
	}
	return &timeoutReader{next: r, timeout: timeout}
}

type timeoutReader struct {
	next    IDocumentReader
	timeout time.Duration
}

func (t *timeoutReader) ReadDocument(ctx context.Context, instruction string, data []byte, mimeType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.ReadDocument(ctx, instruction, data, mimeType)
}

// WrapRateLimitEmbedder throttles calls to the embedding backend. Waiting
// honours ctx cancellation.
func WrapRateLimitEmbedder(e IEmbedder, rps float64, burst int) IEmbedder {
	if e == nil || rps <= 0 {
		return e
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimitEmbedder{next: e, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

type rateLimitEmbedder struct {
	next    IEmbedder
	limiter *rate.Limiter
}

func (r *rateLimitEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Embed(ctx, text, taskType)
}

func (r *rateLimitEmbedder) ModelName() string {
	return r.next.ModelName()
}
