package extractor

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var extensionOverrides = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".csv":      "text/csv",
}

// DetectMIME prefers known text extensions (content sniffing reports them as
// text/plain) and otherwise inspects the leading bytes.
func DetectMIME(name string, data []byte) string {
	if mt, ok := extensionOverrides[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	return baseMIME(mimetype.Detect(data).String())
}

func baseMIME(mt string) string {
	parsed, _, err := mime.ParseMediaType(mt)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mt))
	}
	return parsed
}
