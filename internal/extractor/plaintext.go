package extractor

import (
	"context"
	"strings"
	"unicode/utf8"
)

type plaintextHandler struct{}

func NewPlaintext() Handler {
	return plaintextHandler{}
}

func (plaintextHandler) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/csv",
		"text/html",
		"text/xml",
		"application/json",
		"application/xml",
	}
}

func (plaintextHandler) Priority() int {
	return 5
}

func (plaintextHandler) Extract(_ context.Context, in Input) (string, error) {
	content := string(in.Data)
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, "")
	}
	return strings.TrimSpace(content), nil
}
