package testutil

import (
	"context"

	"github.com/0xteamCookie/LearnAbility-backend/internal/extractor"
)

// GateExtractor holds every extraction until Release is called, so a test
// can act on a document while its ingestion task is mid-flight.
type GateExtractor struct {
	Next    extractor.Extractor
	entered chan struct{}
	release chan struct{}
}

func NewGateExtractor(next extractor.Extractor) *GateExtractor {
	return &GateExtractor{
		Next:    next,
		entered: make(chan struct{}, 64),
		release: make(chan struct{}),
	}
}

func (g *GateExtractor) Extract(ctx context.Context, in extractor.Input) (string, error) {
	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return g.Next.Extract(ctx, in)
}

// Entered is signalled once per extraction that reached the gate.
func (g *GateExtractor) Entered() <-chan struct{} {
	return g.entered
}

func (g *GateExtractor) Release() {
	close(g.release)
}
