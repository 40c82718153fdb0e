package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteScorer scores queries with an FTS5 table in a private in-memory
// database. Row IDs are ordinal+1.
type SQLiteScorer struct {
	db *sql.DB
	n  int
}

// NewSQLiteScorer loads texts into an in-memory FTS5 table.
func NewSQLiteScorer(ctx context.Context, texts []string) (*SQLiteScorer, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteScorer{db: db, n: len(texts)}
	if err := s.load(ctx, texts); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteScorer) load(ctx context.Context, texts []string) error {
	schema := `CREATE VIRTUAL TABLE chunks USING fts5(
		text,
		tokenize='unicode61 remove_diacritics 0'
	)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks(rowid, text) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer stmt.Close()

	for i, text := range texts {
		if _, err := stmt.ExecContext(ctx, i+1, text); err != nil {
			return fmt.Errorf("failed to index chunk %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// matchExpression quotes each whitespace token as an FTS5 string and joins
// them with OR. Tokens with no letter or digit are dropped since the
// unicode61 tokenizer would reduce them to nothing.
func matchExpression(query string) string {
	var terms []string
	for _, tok := range Tokenize(query) {
		if !strings.ContainsFunc(tok, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(tok, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " OR ")
}

// Len returns the corpus size.
func (s *SQLiteScorer) Len() int { return s.n }

// Scores negates FTS5 bm25(), which is lower for better matches.
func (s *SQLiteScorer) Scores(ctx context.Context, query string) ([]float64, error) {
	scores := make([]float64, s.n)
	expr := matchExpression(query)
	if expr == "" {
		return scores, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, bm25(chunks) FROM chunks WHERE chunks MATCH ?`, expr)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rowid int64
		var score float64
		if err := rows.Scan(&rowid, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		ord := int(rowid - 1)
		if ord >= 0 && ord < s.n {
			scores[ord] = -score
		}
	}
	return scores, rows.Err()
}

// Close closes the database.
func (s *SQLiteScorer) Close() error {
	return s.db.Close()
}

var _ SparseScorer = (*SQLiteScorer)(nil)
