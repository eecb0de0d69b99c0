package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// ErrDimensionMismatch is returned when an embedder answers with a vector
// that does not fit the collection.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

// firstAvailable walks the configured entries until one answers. A
// cancelled request stops the walk.
func firstAvailable[T any](ctx context.Context, kind string, names []string, call func(i int) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	logger := logutil.GetLogger(ctx).With(zap.String("kind", kind))
	for i, name := range names {
		if name == "" {
			continue
		}
		res, err := call(i)
		if err == nil {
			if lastErr != nil {
				logger.Info("served by fallback provider", zap.String("name", name), zap.Int("attempt", i+1))
			}
			return res, nil
		}
		lastErr = fmt.Errorf("%s %s: %w", kind, name, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		logger.Warn("provider attempt failed", zap.String("name", name), zap.Int("attempt", i+1), zap.Error(err))
	}
	if lastErr == nil {
		return zero, fmt.Errorf("%s not configured", kind)
	}
	return zero, lastErr
}

type groupGenerator struct {
	items []GeneratorEntry
	names []string
}

// NewGroupGenerator answers with the first generator that produces a
// non-blank completion.
func NewGroupGenerator(items []GeneratorEntry) IGenerator {
	if len(items) == 0 {
		return nil
	}
	if len(items) == 1 && items[0].Generator != nil {
		return items[0].Generator
	}
	return &groupGenerator{items: items, names: entryNames(len(items), func(i int) (string, bool) {
		return items[i].Name, items[i].Generator != nil
	})}
}

func (g *groupGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return firstAvailable(ctx, "generator", g.names, func(i int) (string, error) {
		out, err := g.items[i].Generator.Generate(ctx, prompt)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(out) == "" {
			return "", errors.New("blank completion")
		}
		return out, nil
	})
}

type groupEmbedder struct {
	items     []EmbedderEntry
	names     []string
	dimension int
}

// NewGroupEmbedder falls back across embedders. When dimension is set, a
// vector of any other length counts as a failure so a fallback model can
// never write into a collection sized for another one.
func NewGroupEmbedder(items []EmbedderEntry, dimension int) IEmbedder {
	if len(items) == 0 {
		return nil
	}
	return &groupEmbedder{items: items, dimension: dimension, names: entryNames(len(items), func(i int) (string, bool) {
		return items[i].Name, items[i].Embedder != nil
	})}
}

func (g *groupEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return firstAvailable(ctx, "embedder", g.names, func(i int) ([]float32, error) {
		vec, err := g.items[i].Embedder.Embed(ctx, text, taskType)
		if err != nil {
			return nil, err
		}
		if g.dimension > 0 && len(vec) != g.dimension {
			return nil, fmt.Errorf("%w: got %d, collection uses %d", ErrDimensionMismatch, len(vec), g.dimension)
		}
		return vec, nil
	})
}

// ModelName keys the embedding cache on the whole chain.
func (g *groupEmbedder) ModelName() string {
	names := make([]string, 0, len(g.names))
	for _, name := range g.names {
		if name != "" && name != unnamedEntry {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

const unnamedEntry = "#unnamed"

// entryNames returns one label per entry, empty for entries without a
// client so firstAvailable skips them.
func entryNames(n int, at func(i int) (string, bool)) []string {
	names := make([]string, n)
	for i := range names {
		name, ok := at(i)
		if !ok {
			continue
		}
		if name == "" {
			name = unnamedEntry
		}
		names[i] = name
	}
	return names
}
