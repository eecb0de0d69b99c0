package ai

import (
	"fmt"
	"time"

	"github.com/0xteamCookie/LearnAbility-backend/internal/config"
)

// Clients are built once at startup and shared by ingestion and retrieval.
type Clients struct {
	Generator IGenerator
	Embedder  IEmbedder
	Reader    IDocumentReader
}

// Build wires the configured providers. dimension is the vector store's
// collection size; embedders returning any other length are skipped.
func Build(cfg config.AIConfig, dimension int) (*Clients, error) {
	byName := make(map[string]config.AIProviderConfig, len(cfg.Providers))
	for _, p := range cfg.Providers {
		byName[p.Name] = p
	}
	lookup := func(ref config.ModelRef) (config.AIProviderConfig, error) {
		p, ok := byName[ref.Provider]
		if !ok {
			return config.AIProviderConfig{}, fmt.Errorf("ai provider %q is not configured", ref.Provider)
		}
		return p, nil
	}

	genEntries := make([]GeneratorEntry, 0, len(cfg.Generator))
	for _, ref := range cfg.Generator {
		pc, err := lookup(ref)
		if err != nil {
			return nil, err
		}
		provider, err := NewProvider(pc.Type, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init generator %s: %w", pc.Name, err)
		}
		genEntries = append(genEntries, GeneratorEntry{Name: pc.Name + ":" + ref.Model, Generator: NewGenerator(provider, ref.Model)})
	}

	embEntries := make([]EmbedderEntry, 0, len(cfg.Embedder))
	for _, ref := range cfg.Embedder {
		pc, err := lookup(ref)
		if err != nil {
			return nil, err
		}
		provider, err := NewEmbedProvider(pc.Type, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init embedder %s: %w", pc.Name, err)
		}
		embEntries = append(embEntries, EmbedderEntry{Name: ref.Model, Embedder: NewEmbedder(provider, ref.Model)})
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	clients := &Clients{
		Generator: WrapTimeoutGenerator(NewGroupGenerator(genEntries), timeout),
		Embedder:  WrapRateLimitEmbedder(NewGroupEmbedder(embEntries, dimension), cfg.EmbedRPS, cfg.EmbedBurst),
	}

	if cfg.Extractor.Provider != "" {
		pc, err := lookup(cfg.Extractor)
		if err != nil {
			return nil, err
		}
		provider, err := NewProvider(pc.Type, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init extractor %s: %w", pc.Name, err)
		}
		docProvider, ok := provider.(IDocumentProvider)
		if !ok {
			return nil, fmt.Errorf("ai provider %s cannot read documents", pc.Name)
		}
		clients.Reader = WrapTimeoutReader(NewDocumentReader(docProvider, cfg.Extractor.Model), timeout)
	}
	return clients, nil
}
