package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/returnagent/extract"
	_ "modernc.org/sqlite"
)

var _ retriever.Retriever = (*SQLiteStore)(nil)

const (
	sqliteSchema = `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		order_number TEXT,
		source TEXT NOT NULL,
		content TEXT NOT NULL,
		ingested_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_number ON orders(order_number);
	`

	sqliteUpsertOrder = `
		INSERT INTO orders (id, order_number, source, content, ingested_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			order_number = excluded.order_number,
			source = excluded.source,
			content = excluded.content,
			ingested_at = excluded.ingested_at`

	sqliteSelectByNumber = `
		SELECT id, order_number, source, content FROM orders
		WHERE order_number = ?
		ORDER BY id LIMIT ?`

	sqliteSelectByContent = `
		SELECT id, order_number, source, content FROM orders
		WHERE content LIKE ? ESCAPE '\'
		ORDER BY id LIMIT ?`

	sqliteCountOrders = `SELECT COUNT(*) FROM orders`
)

// SQLiteStore keeps order chunks in SQLite and serves them as an eino retriever.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Ingest upserts docs keyed by their ID. The order number is taken from the
// metadata when present and extracted from the content otherwise.
func (s *SQLiteStore) Ingest(ctx context.Context, docs []*schema.Document) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin ingest: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertOrder)
	if err != nil {
		return 0, fmt.Errorf("prepare ingest: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	var n int
	for _, doc := range docs {
		if doc == nil || strings.TrimSpace(doc.Content) == "" {
			continue
		}
		number, _ := doc.MetaData[MetaOrderNumber].(string)
		if number == "" {
			number = extract.EmbeddedOrderNumber(doc.Content)
		}
		source, _ := doc.MetaData[MetaSource].(string)
		if source == "" {
			source = doc.ID
		}
		if _, err := stmt.ExecContext(ctx, doc.ID, nullString(number), source, doc.Content, now); err != nil {
			return n, fmt.Errorf("insert %s: %w", doc.ID, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit ingest: %w", err)
	}
	return n, nil
}

// Retrieve returns exact order-number hits first and falls back to a substring
// match on the content.
func (s *SQLiteStore) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	options := retriever.GetCommonOptions(&retriever.Options{TopK: intPtr(defaultTopK)}, opts...)
	limit := defaultTopK
	if options.TopK != nil && *options.TopK > 0 {
		limit = *options.TopK
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	if number := extract.Order(query); number != "" {
		docs, err := s.query(ctx, sqliteSelectByNumber, 1.0, number, limit)
		if err != nil {
			return nil, err
		}
		if len(docs) > 0 {
			return docs, nil
		}
	}
	return s.query(ctx, sqliteSelectByContent, 0.5, "%"+escapeLike(query)+"%", limit)
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, sqliteCountOrders).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) query(ctx context.Context, q string, score float64, arg string, limit int) ([]*schema.Document, error) {
	rows, err := s.db.QueryContext(ctx, q, arg, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var docs []*schema.Document
	for rows.Next() {
		var (
			id, source, content string
			number              sql.NullString
		)
		if err := rows.Scan(&id, &number, &source, &content); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		meta := map[string]any{MetaSource: source}
		if number.Valid {
			meta[MetaOrderNumber] = number.String
		}
		doc := &schema.Document{ID: id, Content: content, MetaData: meta}
		docs = append(docs, doc.WithScore(score))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return docs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
