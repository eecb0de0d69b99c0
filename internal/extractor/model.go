package extractor

import (
	"context"
	"fmt"

	"github.com/0xteamCookie/LearnAbility-backend/internal/ai"
)

// modelHandler sends the raw file to a multimodal model and keeps its text
// rendition. It accepts any MIME type and is used when nothing more
// specific matches.
type modelHandler struct {
	reader ai.IDocumentReader
}

func NewModel(reader ai.IDocumentReader) Handler {
	return &modelHandler{reader: reader}
}

func (h *modelHandler) SupportedMIMETypes() []string {
	return []string{"*"}
}

func (h *modelHandler) Priority() int {
	return 1
}

func (h *modelHandler) Extract(ctx context.Context, in Input) (string, error) {
	if h.reader == nil {
		return "", fmt.Errorf("%w: %s (no document model configured)", ErrUnsupported, in.MimeType)
	}
	return h.reader.ReadDocument(ctx, ai.DocumentParserInstruction, in.Data, in.MimeType)
}
