package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/0xteamCookie/LearnAbility-backend/internal/config"
	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
)

const (
	MaxTextLength = 4000
	MaxIDLength   = 128

	hnswM              = 16
	hnswEfConstruction = 200
)

var (
	ErrOwnerRequired     = fmt.Errorf("owner id is required")
	ErrInvalidCollection = fmt.Errorf("invalid collection name")
	ErrDimension         = fmt.Errorf("embedding dimension mismatch")
)

var collectionRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

// Filter narrows a search. OwnerID is mandatory; a non-empty DocumentIDs
// takes precedence over SubjectID/TopicID.
type Filter struct {
	OwnerID     string
	SubjectID   string
	TopicID     string
	DocumentIDs []string
}

// Effective drops the subject/topic pair when document ids are present.
func (f Filter) Effective() Filter {
	if len(f.DocumentIDs) > 0 {
		return Filter{OwnerID: f.OwnerID, DocumentIDs: f.DocumentIDs}
	}
	return Filter{OwnerID: f.OwnerID, SubjectID: f.SubjectID, TopicID: f.TopicID}
}

type Store interface {
	Type() string
	EnsureCollection(ctx context.Context, name string, dimension int) error
	DropCollection(ctx context.Context, name string) error
	Insert(ctx context.Context, records ...model.VectorRecord) error
	Search(ctx context.Context, vector []float32, filter Filter, topK int) ([]model.SearchHit, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	DeleteByScope(ctx context.Context, scopeID string) error
	Close() error
}

// Deps carries shared handles a backend may reuse.
type Deps struct {
	DB *sql.DB
}

type Options struct {
	Collection string
	Dimension  int
	Data       map[string]interface{}
}

type Factory func(deps Deps, opts Options) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = factory
}

func New(deps Deps, cfg config.VectorStoreConfig) (Store, error) {
	if err := ValidateCollection(cfg.Collection); err != nil {
		return nil, err
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}
	registryMu.RLock()
	factory, ok := registry[strings.ToLower(cfg.Type)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.Type)
	}
	return factory(deps, Options{Collection: cfg.Collection, Dimension: cfg.Dimension, Data: cfg.Data})
}

// ValidateCollection rejects names that cannot be used verbatim as a
// table or collection identifier.
func ValidateCollection(name string) error {
	if !collectionRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

func validateRecord(r model.VectorRecord, dimension int) error {
	if r.OwnerID == "" {
		return ErrOwnerRequired
	}
	if len(r.Embedding) != dimension {
		return fmt.Errorf("%w: want %d, got %d", ErrDimension, dimension, len(r.Embedding))
	}
	if r.DocumentID == "" || len(r.DocumentID) > MaxIDLength {
		return fmt.Errorf("invalid document id")
	}
	if len(r.OwnerID) > MaxIDLength || len(r.SubjectID) > MaxIDLength || len(r.TopicID) > MaxIDLength {
		return fmt.Errorf("id exceeds %d characters", MaxIDLength)
	}
	if len([]rune(r.Text)) > MaxTextLength {
		return fmt.Errorf("chunk text exceeds %d characters", MaxTextLength)
	}
	return nil
}

func encodeMetadata(m map[string]interface{}) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(raw), nil
}

func decodeMetadata(raw []byte) map[string]interface{} {
	out := map[string]interface{}{}
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func decodeConfig(args interface{}, dst interface{}) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
