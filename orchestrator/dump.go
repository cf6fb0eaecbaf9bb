package orchestrator

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"html"
	"time"

	"github.com/yuin/goldmark"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "modernc.org/sqlite"             // pure-Go SQLite driver, matches store/sqlite's driver choice
)

// DumpStore persists point-in-time Conversation snapshots for offline
// inspection (§6, §12 "Conversation dump persistence"). Grounded on
// store/sqlite/sqlite.go's single-connection SQLite pattern, generalized
// from the framework's document/chunk/thread schema to one append-only
// dumps table keyed by conversation id and timestamp. Backed by SQLite by
// default; NewPostgresDumpStore swaps in pgx for multi-process deployments
// that need a shared dump store (§11: jackc/pgx/v5 wiring).
type DumpStore struct {
	db       *sql.DB
	postgres bool
}

// NewDumpStore opens (creating if necessary) a SQLite-backed DumpStore at
// dbPath. A dbPath of ":memory:" is valid for tests.
func NewDumpStore(dbPath string) (*DumpStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open dump store: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &DumpStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresDumpStore opens a DumpStore backed by Postgres at dsn, using
// pgx's database/sql driver registration (pgxstdlib). Intended for a
// multi-replica deployment where dumps must outlive any single process,
// unlike the single-connection SQLite default.
func NewPostgresDumpStore(dsn string) (*DumpStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open postgres dump store: %w", err)
	}
	s := &DumpStore{db: db, postgres: true}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DumpStore) init() error {
	schema := `CREATE TABLE IF NOT EXISTS conversation_dumps (
		conversation_id TEXT NOT NULL,
		created_at      BIGINT NOT NULL,
		format          TEXT NOT NULL,
		body            TEXT NOT NULL
	)`
	if !s.postgres {
		schema = `CREATE TABLE IF NOT EXISTS conversation_dumps (
			conversation_id TEXT NOT NULL,
			created_at      INTEGER NOT NULL,
			format          TEXT NOT NULL,
			body            TEXT NOT NULL
		)`
	}
	_, err := s.db.Exec(schema)
	return err
}

// placeholders returns the positional-parameter markers for n args in this
// store's SQL dialect ("?" for SQLite, "$1 $2 ..." for Postgres).
func (s *DumpStore) placeholders(n int) []string {
	out := make([]string, n)
	for i := range out {
		if s.postgres {
			out[i] = fmt.Sprintf("$%d", i+1)
		} else {
			out[i] = "?"
		}
	}
	return out
}

// Close releases the underlying database handle.
func (s *DumpStore) Close() error { return s.db.Close() }

// Save persists a rendered dump (JSON or HTML body) for later retrieval.
func (s *DumpStore) Save(ctx context.Context, id ConversationID, format, body string) error {
	ph := s.placeholders(4)
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO conversation_dumps (conversation_id, created_at, format, body) VALUES (%s, %s, %s, %s)`, ph[0], ph[1], ph[2], ph[3]),
		id, time.Now().Unix(), format, body)
	return err
}

// Latest returns the most recently saved dump of the given format for id.
func (s *DumpStore) Latest(ctx context.Context, id ConversationID, format string) (string, bool, error) {
	ph := s.placeholders(2)
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT body FROM conversation_dumps WHERE conversation_id = %s AND format = %s ORDER BY created_at DESC LIMIT 1`, ph[0], ph[1]),
		id, format)
	var body string
	if err := row.Scan(&body); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return body, true, nil
}

// DumpJSON renders a pretty-printed JSON snapshot of c (§6 dump format
// "json").
func DumpJSON(c Conversation) (string, error) {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DumpHTML renders a static, human-browsable HTML page of c's per-agent
// Context (§6 dump format "html"). Content messages of every role are
// rendered as Markdown via goldmark (escaped plain text if that fails); tool
// results are escaped inside <pre>, and image messages become <img> tags.
// This is the intended home for goldmark in this module — rendering
// Markdown message bodies to HTML for the dump viewer, not content
// extraction (that direction belongs to the fetch tool's readability path).
func DumpHTML(c Conversation) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("<!doctype html><html><head><meta charset=\"utf-8\"><title>conversation ")
	buf.WriteString(html.EscapeString(c.ID))
	buf.WriteString("</title></head><body>\n")

	for _, agent := range c.Workflow.Agents {
		ctx := c.Contexts[agent.ID]
		buf.WriteString(fmt.Sprintf("<section><h2>%s</h2>\n", html.EscapeString(agent.ID)))
		for _, m := range ctx {
			switch m.Kind {
			case MessageContent:
				buf.WriteString(fmt.Sprintf("<article class=%q>\n", string(m.Role)))
				var rendered bytes.Buffer
				if err := goldmark.Convert([]byte(m.Text), &rendered); err != nil {
					buf.WriteString(html.EscapeString(m.Text))
				} else {
					buf.Write(rendered.Bytes())
				}
				buf.WriteString("</article>\n")
			case MessageToolResult:
				if m.ToolResult != nil {
					buf.WriteString(fmt.Sprintf("<pre class=\"tool-result\">%s</pre>\n", html.EscapeString(m.ToolResult.Content)))
				}
			case MessageImage:
				buf.WriteString(fmt.Sprintf("<img src=%q>\n", m.ImageURL))
			}
		}
		buf.WriteString("</section>\n")
	}

	buf.WriteString("</body></html>\n")
	return buf.String(), nil
}
