package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/dbutil"
)

// HNSW candidate list sizes. Filters apply after the index scan; before
// pgvector 0.8 there is no iterative scan, so the list is kept at its max.
const (
	efSearchIterative = 200
	efSearchMax       = 1000
)

type pgvectorStore struct {
	db         *sql.DB
	collection string
	dimension  int

	mu        sync.Mutex
	ensured   map[string]bool
	iterative bool
}

func newPgvectorStore(deps Deps, opts Options) (Store, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("pgvector store requires a database handle")
	}
	return &pgvectorStore{
		db:         deps.DB,
		collection: opts.Collection,
		dimension:  opts.Dimension,
		ensured:    map[string]bool{},
	}, nil
}

func (s *pgvectorStore) Type() string { return "pgvector" }

func (s *pgvectorStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if err := ValidateCollection(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[name] {
		return nil
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			text VARCHAR(%d) NOT NULL,
			embedding vector(%d) NOT NULL,
			owner_id VARCHAR(%d) NOT NULL,
			subject_id VARCHAR(%d) NOT NULL DEFAULT '',
			topic_id VARCHAR(%d) NOT NULL DEFAULT '',
			document_id VARCHAR(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb
		)`, name, MaxTextLength, dimension, MaxIDLength, MaxIDLength, MaxIDLength, MaxIDLength),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d)`,
			name, name, hnswM, hnswEfConstruction),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_owner_idx ON %s (owner_id)`, name, name),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_document_idx ON %s (document_id)`, name, name),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_scope_idx ON %s (owner_id, subject_id, topic_id)`, name, name),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			// concurrent creators race on the catalog; the loser sees a duplicate
			if dbutil.IsDuplicateObject(err) {
				continue
			}
			return fmt.Errorf("ensure collection %s: %w", name, err)
		}
	}
	var version string
	if err := s.db.QueryRowContext(ctx, `SELECT extversion FROM pg_extension WHERE extname = 'vector'`).Scan(&version); err != nil {
		return fmt.Errorf("read pgvector version: %w", err)
	}
	s.iterative = supportsIterativeScan(version)
	s.ensured[name] = true
	return nil
}

// supportsIterativeScan reports whether the extension version is 0.8 or
// later.
func supportsIterativeScan(version string) bool {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}
	return major > 0 || minor >= 8
}

func scanSettings(iterative bool) []string {
	if iterative {
		return []string{
			fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", efSearchIterative),
			"SET LOCAL hnsw.iterative_scan = relaxed_order",
		}
	}
	return []string{fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", efSearchMax)}
}

func (s *pgvectorStore) DropCollection(ctx context.Context, name string) error {
	if err := ValidateCollection(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ensured, name)
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, name))
	return err
}

func (s *pgvectorStore) Insert(ctx context.Context, records ...model.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.withCollection(ctx, func() error { return s.insert(ctx, records) })
}

func (s *pgvectorStore) insert(ctx context.Context, records []model.VectorRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s
		(text, embedding, owner_id, subject_id, topic_id, document_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, s.collection))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range records {
		if err := validateRecord(r, s.dimension); err != nil {
			return err
		}
		meta, err := encodeMetadata(r.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, r.Text, pgvector.NewVector(r.Embedding),
			r.OwnerID, r.SubjectID, r.TopicID, r.DocumentID, meta); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *pgvectorStore) Search(ctx context.Context, vector []float32, filter Filter, topK int) ([]model.SearchHit, error) {
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

func (s *pgvectorStore) search(ctx context.Context, vector []float32, f Filter, topK int) ([]model.SearchHit, error) {
	args := []interface{}{pgvector.NewVector(vector), f.OwnerID}
	conds := []string{"owner_id = $2"}
	if len(f.DocumentIDs) > 0 {
		args = append(args, pq.Array(f.DocumentIDs))
		conds = append(conds, fmt.Sprintf("document_id = ANY($%d)", len(args)))
	}
	if f.SubjectID != "" {
		args = append(args, f.SubjectID)
		conds = append(conds, fmt.Sprintf("subject_id = $%d", len(args)))
	}
	if f.TopicID != "" {
		args = append(args, f.TopicID)
		conds = append(conds, fmt.Sprintf("topic_id = $%d", len(args)))
	}
	args = append(args, topK)
	// distance alone keeps the HNSW index usable; ties are settled below
	query := fmt.Sprintf(`SELECT id, text, document_id, subject_id, topic_id, metadata, 1 - (embedding <=> $1) AS score
		FROM %s WHERE %s ORDER BY embedding <=> $1 LIMIT $%d`,
		s.collection, strings.Join(conds, " AND "), len(args))

	s.mu.Lock()
	iterative := s.iterative
	s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range scanSettings(iterative) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("configure hnsw scan: %w", err)
		}
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var (
		hits []model.SearchHit
		ids  []int64
	)
	for rows.Next() {
		var (
			id    int64
			hit   model.SearchHit
			meta  []byte
			score float64
		)
		if err := rows.Scan(&id, &hit.Text, &hit.DocumentID, &hit.SubjectID, &hit.TopicID, &meta, &score); err != nil {
			return nil, err
		}
		hit.Score = float32(score)
		hit.Metadata = decodeMetadata(meta)
		hits = append(hits, hit)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortHitsByScore(hits, ids)
	return hits, nil
}

// sortHitsByScore orders hits by descending score, equal scores by
// ascending insertion id. relaxed_order scans may return rows slightly out
// of distance order.
func sortHitsByScore(hits []model.SearchHit, ids []int64) {
	idx := make([]int, len(hits))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ha, hb := hits[idx[a]], hits[idx[b]]
		if ha.Score != hb.Score {
			return ha.Score > hb.Score
		}
		return ids[idx[a]] < ids[idx[b]]
	})
	sortedHits := make([]model.SearchHit, len(hits))
	sortedIDs := make([]int64, len(ids))
	for i, j := range idx {
		sortedHits[i] = hits[j]
		sortedIDs[i] = ids[j]
	}
	copy(hits, sortedHits)
	copy(ids, sortedIDs)
}

func (s *pgvectorStore) DeleteByDocument(ctx context.Context, documentID string) error {
	return s.delete(ctx, "document_id = $1", documentID)
}

func (s *pgvectorStore) DeleteByScope(ctx context.Context, scopeID string) error {
	return s.delete(ctx, "(subject_id = $1 OR topic_id = $1)", scopeID)
}

func (s *pgvectorStore) delete(ctx context.Context, cond string, arg string) error {
	if arg == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s`, s.collection, cond), arg)
	if dbutil.IsUndefinedTable(err) {
		return nil
	}
	return err
}

// withCollection runs fn and, if the table has gone missing, creates it
// and runs fn exactly once more.
func (s *pgvectorStore) withCollection(ctx context.Context, fn func() error) error {
	err := fn()
	if !dbutil.IsUndefinedTable(err) {
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

func (s *pgvectorStore) Close() error { return nil }

func init() {
	Register("pgvector", newPgvectorStore)
}
