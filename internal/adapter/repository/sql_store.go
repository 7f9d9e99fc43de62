package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/eslsoft/tafsirnet/internal/entity"
	"github.com/eslsoft/tafsirnet/internal/repository"
)

var _ repository.CorpusStore = (*SQLStore)(nil)

const commentaryTable = "commentaries"

var commentaryColumns = []string{
	"surah_number",
	"ayah_number",
	"surah_name",
	"surah_name_local",
	"ayah_range",
	"source_text",
	"translation",
	"commentary",
	"keywords",
	"topics",
}

// SQLStore persists the corpus in SQLite or PostgreSQL. Queries are built
// with ent's dialect-aware SQL builder.
type SQLStore struct {
	db      *sql.DB
	dialect string
	cleanup func()
}

// NewSQLStore wraps an open database. cleanup may be nil.
func NewSQLStore(db *sql.DB, dialect string, cleanup func()) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, cleanup: cleanup}
}

// Migrate creates the commentary table when it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	query, args := entsql.Dialect(s.dialect).
		CreateTable(commentaryTable).
		IfNotExists().
		Columns(commentarySchema()...).
		PrimaryKey("surah_number", "ayah_number").
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create %s: %w", commentaryTable, err)
	}
	return nil
}

// LoadAll returns every stored entry ordered by verse.
func (s *SQLStore) LoadAll(ctx context.Context) ([]*entity.CommentaryEntry, error) {
	query, args := entsql.Dialect(s.dialect).
		Select(commentaryColumns...).
		From(entsql.Table(commentaryTable)).
		OrderBy("surah_number", "ayah_number").
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", commentaryTable, err)
	}
	defer rows.Close()

	var out []*entity.CommentaryEntry
	for rows.Next() {
		var (
			e                      entity.CommentaryEntry
			rawKeywords, rawTopics string
		)
		if err := rows.Scan(
			&e.SurahNumber,
			&e.AyahNumber,
			&e.SurahName,
			&e.SurahNameLocalScript,
			&e.AyahRange,
			&e.SourceText,
			&e.Translation,
			&e.Commentary,
			&rawKeywords,
			&rawTopics,
		); err != nil {
			return nil, fmt.Errorf("scan commentary row: %w", err)
		}
		if e.Keywords, err = decodeList(rawKeywords); err != nil {
			return nil, fmt.Errorf("decode keywords for %s: %w", e.Ref(), err)
		}
		if e.Topics, err = decodeList(rawTopics); err != nil {
			return nil, fmt.Errorf("decode topics for %s: %w", e.Ref(), err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert writes entries in one transaction, replacing rows that share a verse key.
func (s *SQLStore) Upsert(ctx context.Context, entries []*entity.CommentaryEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	written := 0
	for _, e := range entries {
		if e == nil || !e.Ref().Valid() {
			return 0, fmt.Errorf("%w: cannot store entry", entity.ErrInvalidEntry)
		}
		keywords, err := encodeList(e.Keywords)
		if err != nil {
			return 0, err
		}
		topics, err := encodeList(e.Topics)
		if err != nil {
			return 0, err
		}
		query, args := entsql.Dialect(s.dialect).
			Insert(commentaryTable).
			Columns(commentaryColumns...).
			Values(
				e.SurahNumber,
				e.AyahNumber,
				e.SurahName,
				e.SurahNameLocalScript,
				e.AyahRange,
				e.SourceText,
				e.Translation,
				e.Commentary,
				keywords,
				topics,
			).
			OnConflict(
				entsql.ConflictColumns("surah_number", "ayah_number"),
				entsql.ResolveWithNewValues(),
			).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("upsert %s: %w", e.Ref(), err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

func (s *SQLStore) Close() error {
	if s.cleanup != nil {
		s.cleanup()
		return nil
	}
	return s.db.Close()
}

func commentarySchema() []*entsql.ColumnBuilder {
	return []*entsql.ColumnBuilder{
		entsql.Column("surah_number").Type("integer").Attr("NOT NULL"),
		entsql.Column("ayah_number").Type("integer").Attr("NOT NULL"),
		entsql.Column("surah_name").Type("text").Attr("NOT NULL DEFAULT ''"),
		entsql.Column("surah_name_local").Type("text").Attr("NOT NULL DEFAULT ''"),
		entsql.Column("ayah_range").Type("text").Attr("NOT NULL DEFAULT ''"),
		entsql.Column("source_text").Type("text").Attr("NOT NULL DEFAULT ''"),
		entsql.Column("translation").Type("text").Attr("NOT NULL DEFAULT ''"),
		entsql.Column("commentary").Type("text").Attr("NOT NULL DEFAULT ''"),
		entsql.Column("keywords").Type("text").Attr("NOT NULL DEFAULT '[]'"),
		entsql.Column("topics").Type("text").Attr("NOT NULL DEFAULT '[]'"),
	}
}

func encodeList(in []string) (string, error) {
	if in == nil {
		in = []string{}
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(raw), nil
}

func decodeList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
