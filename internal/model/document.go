package model

import (
	"path/filepath"
	"strings"
)

type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusCompleted  DocumentStatus = "COMPLETED"
	StatusError      DocumentStatus = "ERROR"
	StatusReady      DocumentStatus = "READY"
)

// Terminal reports whether the status can only change through re-ingestion.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusReady
}

type DocumentType string

const (
	TypePDF   DocumentType = "PDF"
	TypeImage DocumentType = "IMAGE"
	TypeDocs  DocumentType = "DOCS"
	TypeVideo DocumentType = "VIDEO"
	TypeAudio DocumentType = "AUDIO"
	TypeText  DocumentType = "TEXT"
)

var documentTypes = map[DocumentType]struct{}{
	TypePDF: {}, TypeImage: {}, TypeDocs: {}, TypeVideo: {}, TypeAudio: {}, TypeText: {},
}

func ParseDocumentType(s string) (DocumentType, bool) {
	t := DocumentType(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := documentTypes[t]
	return t, ok
}

// DetectDocumentType maps a file name to its declared type by extension.
func DetectDocumentType(name string) DocumentType {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return TypePDF
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return TypeImage
	case ".doc", ".docx", ".txt", ".rtf":
		return TypeDocs
	case ".mp4", ".avi", ".mov", ".wmv":
		return TypeVideo
	case ".mp3", ".wav", ".ogg":
		return TypeAudio
	default:
		return TypeText
	}
}

type Document struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId"`
	SubjectID   string         `json:"subjectId"`
	TopicID     string         `json:"topicId"`
	SessionID   string         `json:"sessionId"`
	Name        string         `json:"name"`
	Type        DocumentType   `json:"type"`
	FileType    string         `json:"fileType"`
	MimeType    string         `json:"mimeType"`
	Size        int64          `json:"size"`
	Source      string         `json:"source"`
	FileKey     string         `json:"-"`
	Description string         `json:"description"`
	Status      DocumentStatus `json:"status"`
	Content     string         `json:"content"`
	Ctime       int64          `json:"createdAt"`
	Mtime       int64          `json:"updatedAt"`
}

// HasFile reports whether the document was submitted as an uploaded file.
func (d *Document) HasFile() bool {
	return d.FileKey != ""
}

type DocumentFilter struct {
	SubjectID string
	TopicID   string
	SessionID string
	Status    DocumentStatus
}
