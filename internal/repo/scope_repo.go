package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/dbutil"
	appErr "github.com/0xteamCookie/LearnAbility-backend/internal/pkg/errors"
)

// ScopeRepo stores subjects and the topics nested under them.
type ScopeRepo struct {
	db *sql.DB
}

func NewScopeRepo(db *sql.DB) *ScopeRepo {
	return &ScopeRepo{db: db}
}

func (r *ScopeRepo) CreateSubject(ctx context.Context, s *model.Subject) error {
	return r.insert(ctx, "subjects", map[string]interface{}{
		"id":          s.ID,
		"user_id":     s.UserID,
		"name":        s.Name,
		"description": s.Description,
		"ctime":       s.Ctime,
		"mtime":       s.Mtime,
	})
}

func (r *ScopeRepo) CreateTopic(ctx context.Context, t *model.Topic) error {
	return r.insert(ctx, "topics", map[string]interface{}{
		"id":         t.ID,
		"user_id":    t.UserID,
		"subject_id": t.SubjectID,
		"name":       t.Name,
		"ctime":      t.Ctime,
		"mtime":      t.Mtime,
	})
}

func (r *ScopeRepo) GetSubject(ctx context.Context, userID, id string) (*model.Subject, error) {
	items, err := r.listSubjects(ctx, map[string]interface{}{"id": id, "user_id": userID, "_limit": []uint{0, 1}})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, appErr.ErrNotFound
	}
	return items[0], nil
}

func (r *ScopeRepo) ListSubjects(ctx context.Context, userID string) ([]*model.Subject, error) {
	return r.listSubjects(ctx, map[string]interface{}{"user_id": userID, "_orderby": "ctime asc"})
}

func (r *ScopeRepo) listSubjects(ctx context.Context, where map[string]interface{}) ([]*model.Subject, error) {
	sqlStr, args, err := builder.BuildSelect("subjects", where, []string{"id", "user_id", "name", "description", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Subject
	for rows.Next() {
		var s model.Subject
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &s.Description, &s.Ctime, &s.Mtime); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *ScopeRepo) GetTopic(ctx context.Context, userID, id string) (*model.Topic, error) {
	items, err := r.listTopics(ctx, map[string]interface{}{"id": id, "user_id": userID, "_limit": []uint{0, 1}})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, appErr.ErrNotFound
	}
	return items[0], nil
}

func (r *ScopeRepo) ListTopics(ctx context.Context, userID, subjectID string) ([]*model.Topic, error) {
	return r.listTopics(ctx, map[string]interface{}{"user_id": userID, "subject_id": subjectID, "_orderby": "ctime asc"})
}

func (r *ScopeRepo) listTopics(ctx context.Context, where map[string]interface{}) ([]*model.Topic, error) {
	sqlStr, args, err := builder.BuildSelect("topics", where, []string{"id", "user_id", "subject_id", "name", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Topic
	for rows.Next() {
		var t model.Topic
		if err := rows.Scan(&t.ID, &t.UserID, &t.SubjectID, &t.Name, &t.Ctime, &t.Mtime); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *ScopeRepo) DeleteSubject(ctx context.Context, userID, id string) error {
	return r.delete(ctx, "subjects", userID, id)
}

func (r *ScopeRepo) DeleteTopic(ctx context.Context, userID, id string) error {
	return r.delete(ctx, "topics", userID, id)
}

func (r *ScopeRepo) insert(ctx context.Context, table string, data map[string]interface{}) error {
	sqlStr, args, err := builder.BuildInsert(table, []map[string]interface{}{data})
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

func (r *ScopeRepo) delete(ctx context.Context, table, userID, id string) error {
	sqlStr, args, err := builder.BuildDelete(table, map[string]interface{}{"id": id, "user_id": userID})
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
