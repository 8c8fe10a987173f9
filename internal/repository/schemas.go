package repository

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

var ErrSchemaNotFound = errors.New("schema not found")

const createSchemasTable = `
CREATE TABLE IF NOT EXISTS game_schemas (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	fingerprint TEXT NOT NULL UNIQUE,
	document    JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// StoredSchema is a saved document.
type StoredSchema struct {
	ID          string
	Name        string
	Fingerprint string
	Rules       *schema.GameRules
	CreatedAt   time.Time
}

// Fingerprint is the hex BLAKE2b-256 of the normalized document's canonical
// JSON. Documents that normalize identically share a fingerprint.
func Fingerprint(rules *schema.GameRules) (string, error) {
	data, err := schema.CanonicalJSON(schema.Normalize(rules))
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// SchemaRepository stores game documents keyed by id and fingerprint.
type SchemaRepository struct {
	db     *DB
	logger *zap.Logger
}

func NewSchemaRepository(db *DB, logger *zap.Logger) *SchemaRepository {
	return &SchemaRepository{db: db, logger: logger}
}

// EnsureSchema creates the table if needed.
func (r *SchemaRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.pool.Exec(ctx, createSchemasTable); err != nil {
		return fmt.Errorf("create game_schemas: %w", err)
	}
	return nil
}

// Save stores rules. Saving a document whose fingerprint already exists
// returns the existing row with its name refreshed.
func (r *SchemaRepository) Save(ctx context.Context, rules *schema.GameRules) (*StoredSchema, error) {
	normalized := schema.Normalize(rules)
	doc, err := schema.CanonicalJSON(normalized)
	if err != nil {
		return nil, err
	}
	fp, err := Fingerprint(normalized)
	if err != nil {
		return nil, err
	}

	out := &StoredSchema{Name: normalized.Name, Fingerprint: fp, Rules: normalized}
	err = r.db.pool.QueryRow(ctx, `
		INSERT INTO game_schemas (id, name, fingerprint, document)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (fingerprint) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, created_at`,
		uuid.NewString(), normalized.Name, fp, doc,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("save schema %q: %w", normalized.Name, err)
	}

	if r.logger != nil {
		r.logger.Debug("schema saved",
			zap.String("schema_id", out.ID),
			zap.String("name", out.Name),
			zap.String("fingerprint", fp),
		)
	}
	return out, nil
}

// Get loads a document by id.
func (r *SchemaRepository) Get(ctx context.Context, id string) (*StoredSchema, error) {
	return r.one(ctx, `SELECT id, name, fingerprint, document, created_at FROM game_schemas WHERE id = $1`, id)
}

// GetByFingerprint loads a document by fingerprint.
func (r *SchemaRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*StoredSchema, error) {
	return r.one(ctx, `SELECT id, name, fingerprint, document, created_at FROM game_schemas WHERE fingerprint = $1`, fingerprint)
}

// List returns the newest documents first.
func (r *SchemaRepository) List(ctx context.Context, limit int) ([]*StoredSchema, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.pool.Query(ctx,
		`SELECT id, name, fingerprint, document, created_at FROM game_schemas ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	var out []*StoredSchema
	for rows.Next() {
		s, err := scanSchema(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SchemaRepository) one(ctx context.Context, query, arg string) (*StoredSchema, error) {
	s, err := scanSchema(r.db.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, arg)
	}
	return s, err
}

func scanSchema(row pgx.Row) (*StoredSchema, error) {
	var (
		s   StoredSchema
		doc []byte
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Fingerprint, &doc, &s.CreatedAt); err != nil {
		return nil, err
	}
	var rules schema.GameRules
	if err := json.Unmarshal(doc, &rules); err != nil {
		return nil, fmt.Errorf("decode stored schema %s: %w", s.ID, err)
	}
	s.Rules = schema.Normalize(&rules)
	return &s, nil
}
