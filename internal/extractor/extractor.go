package extractor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmptyFile   = errors.New("empty file")
	ErrUnsupported = errors.New("unsupported file type")
)

type Input struct {
	Name     string
	MimeType string
	Data     []byte
}

type Extractor interface {
	Extract(ctx context.Context, in Input) (string, error)
}

// Handler is an Extractor bound to a set of MIME types. "type/*" and "*"
// act as wildcards; the highest priority match wins.
type Handler interface {
	Extractor
	SupportedMIMETypes() []string
	Priority() int
}

type Registry struct {
	handlers []Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	sorted := append([]Handler(nil), handlers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})
	return &Registry{handlers: sorted}
}

func (r *Registry) Extract(ctx context.Context, in Input) (string, error) {
	if len(in.Data) == 0 {
		return "", ErrEmptyFile
	}
	mimeType := in.MimeType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = DetectMIME(in.Name, in.Data)
	}
	mimeType = baseMIME(mimeType)
	h := r.lookup(mimeType)
	if h == nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, mimeType)
	}
	in.MimeType = mimeType
	return h.Extract(ctx, in)
}

func (r *Registry) lookup(mimeType string) Handler {
	major, _, _ := strings.Cut(mimeType, "/")
	for _, h := range r.handlers {
		for _, supported := range h.SupportedMIMETypes() {
			if supported == "*" || supported == mimeType || supported == major+"/*" {
				return h
			}
		}
	}
	return nil
}
