package model

// VectorRecord is one embedded chunk with its denormalized filter fields.
type VectorRecord struct {
	ID         int64                  `json:"id"`
	Text       string                 `json:"text"`
	Embedding  []float32              `json:"-"`
	OwnerID    string                 `json:"ownerId"`
	SubjectID  string                 `json:"subjectId"`
	TopicID    string                 `json:"topicId"`
	DocumentID string                 `json:"documentId"`
	Metadata   map[string]interface{} `json:"metadata"`
}

type SearchHit struct {
	Text       string                 `json:"text"`
	Score      float32                `json:"score"`
	DocumentID string                 `json:"documentId"`
	SubjectID  string                 `json:"subjectId"`
	TopicID    string                 `json:"topicId"`
	Metadata   map[string]interface{} `json:"metadata"`
}
