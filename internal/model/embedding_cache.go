package model

type EmbeddingCache struct {
	ModelName   string    `json:"modelName"`
	TaskType    string    `json:"taskType"`
	ContentHash string    `json:"contentHash"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}
