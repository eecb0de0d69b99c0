package model

type Subject struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Ctime       int64  `json:"createdAt"`
	Mtime       int64  `json:"updatedAt"`
}

type Topic struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	SubjectID string `json:"subjectId"`
	Name      string `json:"name"`
	Ctime     int64  `json:"createdAt"`
	Mtime     int64  `json:"updatedAt"`
}

// ScopeHints narrow retrieval. DocumentIDs take precedence over the
// subject/topic pair.
type ScopeHints struct {
	SubjectID   string   `json:"subjectId"`
	TopicID     string   `json:"topicId"`
	DocumentIDs []string `json:"documentIds"`
}

func (h ScopeHints) HasScope() bool {
	return h.SubjectID != "" || h.TopicID != ""
}
