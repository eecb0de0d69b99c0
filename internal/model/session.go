package model

type SessionDocument struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Type   DocumentType   `json:"type"`
	Status DocumentStatus `json:"status"`
	Ctime  int64          `json:"createdAt"`
	Mtime  int64          `json:"updatedAt"`
}

type SessionStatus struct {
	SessionID  string            `json:"sessionId"`
	Total      int               `json:"total"`
	Completed  int               `json:"completed"`
	Processing int               `json:"processing"`
	Errored    int               `json:"errored"`
	Ready      int               `json:"ready"`
	IsComplete bool              `json:"isComplete"`
	Documents  []SessionDocument `json:"documents"`
}
