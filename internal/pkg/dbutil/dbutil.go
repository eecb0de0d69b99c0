package dbutil

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var limitRegex = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize turns a gendry statement into postgres syntax.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	loc := limitRegex.FindStringIndex(query)
	if loc != nil {
		prefix := query[:loc[0]]
		qCount := strings.Count(prefix, "?")
		if qCount+1 < len(args) {
			args[qCount], args[qCount+1] = args[qCount+1], args[qCount]
			query = limitRegex.ReplaceAllString(query, "LIMIT ? OFFSET ?")
		}
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

func pqCode(err error) string {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return string(pgErr.Code)
	}
	return ""
}

func IsConflict(err error) bool {
	return pqCode(err) == "23505"
}

func IsUndefinedTable(err error) bool {
	return pqCode(err) == "42P01"
}

func IsDuplicateObject(err error) bool {
	switch pqCode(err) {
	case "42P07", "42710", "23505":
		return true
	}
	return err != nil && strings.Contains(err.Error(), "already exists")
}

// Nullable maps an empty string to SQL NULL.
func Nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
