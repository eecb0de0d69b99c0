package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
)

type sqliteConfig struct {
	Path string `json:"path"`
}

// sqliteStore keeps vectors in a single sqlite file and ranks them by
// scanning every candidate row. Suitable for development and tests.
type sqliteStore struct {
	db         *sql.DB
	collection string
	dimension  int

	mu      sync.Mutex
	ensured map[string]bool
}

func newSqliteStore(_ Deps, opts Options) (Store, error) {
	cfg := sqliteConfig{Path: ":memory:"}
	if err := decodeConfig(opts.Data, &cfg); err != nil {
		return nil, fmt.Errorf("decode sqlite config: %w", err)
	}
	dsn := cfg.Path
	if dsn != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a memory database lives and dies with its connection
	db.SetMaxOpenConns(1)
	return &sqliteStore{
		db:         db,
		collection: opts.Collection,
		dimension:  opts.Dimension,
		ensured:    map[string]bool{},
	}, nil
}

func (s *sqliteStore) Type() string { return "sqlite" }

func (s *sqliteStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if err := ValidateCollection(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[name] {
		return nil
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			embedding BLOB NOT NULL,
			dimension INTEGER NOT NULL,
			owner_id TEXT NOT NULL,
			subject_id TEXT NOT NULL DEFAULT '',
			topic_id TEXT NOT NULL DEFAULT '',
			document_id TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}'
		)`, name),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_owner_idx ON %s (owner_id, subject_id, topic_id)`, name, name),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_document_idx ON %s (document_id)`, name, name),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure collection %s: %w", name, err)
		}
	}
	s.ensured[name] = true
	return nil
}

func (s *sqliteStore) DropCollection(ctx context.Context, name string) error {
	if err := ValidateCollection(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ensured, name)
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, name))
	return err
}

func (s *sqliteStore) Insert(ctx context.Context, records ...model.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if err := validateRecord(r, s.dimension); err != nil {
			return err
		}
	}
	return s.withCollection(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		query := fmt.Sprintf(`INSERT INTO %s (text, embedding, dimension, owner_id, subject_id, topic_id, document_id, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.collection)
		for _, r := range records {
			meta, err := encodeMetadata(r.Metadata)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query, r.Text, vectorToBlob(r.Embedding), len(r.Embedding),
				r.OwnerID, r.SubjectID, r.TopicID, r.DocumentID, meta); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func (s *sqliteStore) Search(ctx context.Context, vector []float32, filter Filter, topK int) ([]model.SearchHit, error) {
	if filter.OwnerID == "" {
		return nil, ErrOwnerRequired
	}
	if topK <= 0 || len(vector) == 0 {
		return nil, nil
	}
	var hits []model.SearchHit
	err := s.withCollection(ctx, func() error {
		var err error
		hits, err = s.search(ctx, vector, filter.Effective(), topK)
		return err
	})
	return hits, err
}

func (s *sqliteStore) search(ctx context.Context, vector []float32, f Filter, topK int) ([]model.SearchHit, error) {
	conds := []string{"owner_id = ?"}
	args := []interface{}{f.OwnerID}
	if len(f.DocumentIDs) > 0 {
		conds = append(conds, "document_id IN (?"+strings.Repeat(",?", len(f.DocumentIDs)-1)+")")
		for _, id := range f.DocumentIDs {
			args = append(args, id)
		}
	}
	if f.SubjectID != "" {
		conds = append(conds, "subject_id = ?")
		args = append(args, f.SubjectID)
	}
	if f.TopicID != "" {
		conds = append(conds, "topic_id = ?")
		args = append(args, f.TopicID)
	}
	query := fmt.Sprintf(`SELECT text, embedding, document_id, subject_id, topic_id, metadata FROM %s WHERE %s ORDER BY id`,
		s.collection, strings.Join(conds, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []model.SearchHit
	for rows.Next() {
		var (
			hit  model.SearchHit
			blob []byte
			meta string
		)
		if err := rows.Scan(&hit.Text, &blob, &hit.DocumentID, &hit.SubjectID, &hit.TopicID, &meta); err != nil {
			return nil, err
		}
		vec := blobToVector(blob)
		if len(vec) != len(vector) {
			continue
		}
		hit.Score = cosine(vector, vec)
		hit.Metadata = decodeMetadata([]byte(meta))
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// rows arrive in insertion order, so a stable sort keeps ties that way
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *sqliteStore) DeleteByDocument(ctx context.Context, documentID string) error {
	return s.delete(ctx, "document_id = ?", documentID)
}

func (s *sqliteStore) DeleteByScope(ctx context.Context, scopeID string) error {
	return s.delete(ctx, "(subject_id = ?1 OR topic_id = ?1)", scopeID)
}

func (s *sqliteStore) delete(ctx context.Context, cond, arg string) error {
	if arg == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s`, s.collection, cond), arg)
	if isNoSuchTable(err) {
		return nil
	}
	return err
}

func (s *sqliteStore) withCollection(ctx context.Context, fn func() error) error {
	err := fn()
	if !isNoSuchTable(err) {
		return err
	}
	logutil.GetLogger(ctx).Warn("vector collection missing, recreating", zap.String("collection", s.collection))
	s.mu.Lock()
	delete(s.ensured, s.collection)
	s.mu.Unlock()
	if err := s.EnsureCollection(ctx, s.collection, s.dimension); err != nil {
		return err
	}
	return fn()
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func isNoSuchTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

func vectorToBlob(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func blobToVector(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

func init() {
	Register("sqlite", newSqliteStore)
}
