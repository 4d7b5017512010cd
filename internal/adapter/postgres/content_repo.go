package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS content_nodes (
	path        TEXT PRIMARY KEY,
	parent_path TEXT NOT NULL,
	properties  JSONB NOT NULL DEFAULT '{}'::jsonb,
	position    BIGSERIAL
);
CREATE INDEX IF NOT EXISTS content_nodes_parent_idx ON content_nodes (parent_path, position);
INSERT INTO content_nodes (path, parent_path) VALUES ('/', '') ON CONFLICT (path) DO NOTHING;
`

// ContentRepo keeps the content tree in a single PostgreSQL table, one row per node.
// Every write is committed before the call returns.
type ContentRepo struct {
	db *pgxpool.Pool
}

// NewContentRepo connects to connStr.
func NewContentRepo(ctx context.Context, connStr string) (*ContentRepo, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &ContentRepo{db: db}, nil
}

// EnsureSchema creates the nodes table and the root node when missing.
func (r *ContentRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schema)
	return err
}

func (r *ContentRepo) Close() {
	r.db.Close()
}

func (r *ContentRepo) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrRepositoryUnavailable, err)
	}
	return nil
}

func (r *ContentRepo) Exists(ctx context.Context, p string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM content_nodes WHERE path = $1)`, clean(p),
	).Scan(&exists)
	return exists, err
}

func (r *ContentRepo) GetNode(ctx context.Context, p string) (*entity.Node, error) {
	p = clean(p)
	var props map[string]any
	err := r.db.QueryRow(ctx,
		`SELECT properties FROM content_nodes WHERE path = $1`, p,
	).Scan(&props)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", p, repository.ErrNodeNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &entity.Node{Path: p, Properties: normalize(props)}, nil
}

func (r *ContentRepo) ListChildren(ctx context.Context, p string) ([]*entity.Node, error) {
	p = clean(p)
	exists, err := r.Exists(ctx, p)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", p, repository.ErrNodeNotFound)
	}

	rows, err := r.db.Query(ctx,
		`SELECT path, properties FROM content_nodes WHERE parent_path = $1 ORDER BY position`, p)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []*entity.Node
	for rows.Next() {
		var n entity.Node
		var props map[string]any
		if err := rows.Scan(&n.Path, &props); err != nil {
			return nil, err
		}
		n.Properties = normalize(props)
		nodes = append(nodes, &n)
	}
	return nodes, rows.Err()
}

func (r *ContentRepo) SetProperty(ctx context.Context, p, name string, value any) error {
	p = clean(p)
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode property %s: %w", name, err)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE content_nodes SET properties = jsonb_set(properties, ARRAY[$2::text], $3::jsonb, true)
		 WHERE path = $1`,
		p, name, string(raw))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", p, repository.ErrNodeNotFound)
	}
	return nil
}

// PutNode creates missing ancestors and upserts the node within one transaction.
func (r *ContentRepo) PutNode(ctx context.Context, node *entity.Node) error {
	p := clean(node.Path)
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("node path must be absolute, got %q", node.Path)
	}
	props := node.Properties
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("encode properties of %s: %w", p, err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, a := range ancestors(p) {
		batch.Queue(`INSERT INTO content_nodes (path, parent_path) VALUES ($1, $2)
		             ON CONFLICT (path) DO NOTHING`, a, parentOf(a))
	}
	batch.Queue(`INSERT INTO content_nodes (path, parent_path, properties) VALUES ($1, $2, $3::jsonb)
	             ON CONFLICT (path) DO UPDATE SET properties = EXCLUDED.properties`,
		p, parentOf(p), string(raw))
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ContentRepo) DeleteNode(ctx context.Context, p string) error {
	p = clean(p)
	if p == "/" {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`DELETE FROM content_nodes WHERE path = $1 OR starts_with(path, $1 || '/')`, p)
	return err
}

// ancestors lists the proper ancestors of p from the top down, root excluded.
func ancestors(p string) []string {
	var out []string
	for a := path.Dir(p); a != "/" && a != "."; a = path.Dir(a) {
		out = append([]string{a}, out...)
	}
	return out
}

func parentOf(p string) string {
	if p == "/" {
		return ""
	}
	return path.Dir(p)
}

func clean(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean(p)
}

func normalize(props map[string]any) map[string]any {
	if props == nil {
		return map[string]any{}
	}
	for k, v := range props {
		props[k] = entity.NormalizeValue(v)
	}
	return props
}
