package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
)

const FakeDimension = 8

// FakeEmbedder hashes words into a small bag-of-words vector, so texts
// sharing words land close to each other.
type FakeEmbedder struct {
	mu     sync.Mutex
	Err    error
	FailOn string
	calls  int
}

func (f *FakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	err := f.Err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if f.FailOn != "" && strings.Contains(text, f.FailOn) {
		return nil, errors.New("embedding quota exceeded")
	}
	return FakeVector(text), nil
}

func (f *FakeEmbedder) ModelName() string { return "fake-embed" }

func (f *FakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func FakeVector(text string) []float32 {
	vec := make([]float32, FakeDimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(word, ".,;:!?\"'")))
		vec[h.Sum32()%FakeDimension]++
	}
	return vec
}

// FakeGenerator records the last prompt and answers with Answer or Err.
type FakeGenerator struct {
	mu         sync.Mutex
	Answer     string
	Err        error
	LastPrompt string
}

func (f *FakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastPrompt = prompt
	if f.Err != nil {
		return "", f.Err
	}
	return f.Answer, nil
}

func (f *FakeGenerator) Prompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.LastPrompt
}
