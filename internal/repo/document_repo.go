package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/dbutil"
	appErr "github.com/0xteamCookie/LearnAbility-backend/internal/pkg/errors"
)

var documentColumns = []string{
	"id", "user_id", "subject_id", "topic_id", "session_id", "name", "type", "file_type",
	"mime_type", "size", "source", "file_key", "description", "status", "content", "ctime", "mtime",
}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":          doc.ID,
		"user_id":     doc.UserID,
		"subject_id":  dbutil.Nullable(doc.SubjectID),
		"topic_id":    dbutil.Nullable(doc.TopicID),
		"session_id":  doc.SessionID,
		"name":        doc.Name,
		"type":        string(doc.Type),
		"file_type":   doc.FileType,
		"mime_type":   doc.MimeType,
		"size":        doc.Size,
		"source":      doc.Source,
		"file_key":    doc.FileKey,
		"description": doc.Description,
		"status":      string(doc.Status),
		"content":     dbutil.Nullable(doc.Content),
		"ctime":       doc.Ctime,
		"mtime":       doc.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

// Get loads a document regardless of owner; ingestion workers use it.
func (r *DocumentRepo) Get(ctx context.Context, docID string) (*model.Document, error) {
	return r.getOne(ctx, map[string]interface{}{"id": docID})
}

func (r *DocumentRepo) GetByID(ctx context.Context, userID, docID string) (*model.Document, error) {
	return r.getOne(ctx, map[string]interface{}{"id": docID, "user_id": userID})
}

func (r *DocumentRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.Document, error) {
	where["_limit"] = []uint{0, 1}
	docs, err := r.query(ctx, where)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, appErr.ErrNotFound
	}
	return docs[0], nil
}

func (r *DocumentRepo) List(ctx context.Context, userID string, filter model.DocumentFilter, offset, limit uint) ([]*model.Document, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"_orderby": "ctime desc, id asc",
	}
	if filter.SubjectID != "" {
		where["subject_id"] = filter.SubjectID
	}
	if filter.TopicID != "" {
		where["topic_id"] = filter.TopicID
	}
	if filter.SessionID != "" {
		where["session_id"] = filter.SessionID
	}
	if filter.Status != "" {
		where["status"] = string(filter.Status)
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	return r.query(ctx, where)
}

func (r *DocumentRepo) ListBySession(ctx context.Context, userID, sessionID string) ([]*model.Document, error) {
	return r.query(ctx, map[string]interface{}{
		"user_id":    userID,
		"session_id": sessionID,
		"_orderby":   "ctime asc, id asc",
	})
}

// ListFileBacked returns the owner's documents that can be re-ingested.
func (r *DocumentRepo) ListFileBacked(ctx context.Context, userID string) ([]*model.Document, error) {
	return r.query(ctx, map[string]interface{}{
		"user_id":     userID,
		"file_key !=": "",
		"_orderby":    "ctime asc, id asc",
	})
}

func (r *DocumentRepo) ListStale(ctx context.Context, before int64, limit uint) ([]*model.Document, error) {
	return r.query(ctx, map[string]interface{}{
		"status":   string(model.StatusProcessing),
		"mtime <":  before,
		"_orderby": "mtime asc",
		"_limit":   []uint{0, limit},
	})
}

func (r *DocumentRepo) query(ctx context.Context, where map[string]interface{}) ([]*model.Document, error) {
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []*model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(rows *sql.Rows) (*model.Document, error) {
	var (
		doc       model.Document
		subjectID sql.NullString
		topicID   sql.NullString
		content   sql.NullString
		docType   string
		status    string
	)
	if err := rows.Scan(
		&doc.ID, &doc.UserID, &subjectID, &topicID, &doc.SessionID, &doc.Name, &docType, &doc.FileType,
		&doc.MimeType, &doc.Size, &doc.Source, &doc.FileKey, &doc.Description, &status, &content, &doc.Ctime, &doc.Mtime,
	); err != nil {
		return nil, err
	}
	doc.SubjectID = subjectID.String
	doc.TopicID = topicID.String
	doc.Content = content.String
	doc.Type = model.DocumentType(docType)
	doc.Status = model.DocumentStatus(status)
	return &doc, nil
}

// MarkProcessing moves a terminal document back to PROCESSING for a new
// ingestion run. A document already PROCESSING yields ErrConflict.
func (r *DocumentRepo) MarkProcessing(ctx context.Context, userID, docID string, mtime int64) error {
	where := map[string]interface{}{
		"id":        docID,
		"user_id":   userID,
		"status !=": string(model.StatusProcessing),
	}
	update := map[string]interface{}{
		"status":  string(model.StatusProcessing),
		"content": sql.NullString{},
		"mtime":   mtime,
	}
	affected, err := r.update(ctx, where, update)
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, userID, docID); err != nil {
			return err
		}
		return appErr.ErrConflict
	}
	return nil
}

// Finish writes the terminal outcome of an ingestion run. Only a document
// still in PROCESSING is updated.
func (r *DocumentRepo) Finish(ctx context.Context, docID string, status model.DocumentStatus, content string, mtime int64) error {
	where := map[string]interface{}{
		"id":     docID,
		"status": string(model.StatusProcessing),
	}
	update := map[string]interface{}{
		"status":  string(status),
		"content": content,
		"mtime":   mtime,
	}
	affected, err := r.update(ctx, where, update)
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrConflict
	}
	return nil
}

func (r *DocumentRepo) Delete(ctx context.Context, userID, docID string) error {
	sqlStr, args, err := builder.BuildDelete("documents", map[string]interface{}{
		"id":      docID,
		"user_id": userID,
	})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) update(ctx context.Context, where, update map[string]interface{}) (int64, error) {
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
