package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/truecam/internal/dbx"
	"github.com/dmitrijs2005/truecam/internal/remote/ledger/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Open connects to the ledger database and applies pending migrations.
func Open(ctx context.Context, dsn string) (*sql.DB, *PostgresRepository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}
	return db, NewPostgresRepository(db), nil
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// InsertEvidence writes row keyed by evidence_id. A second write for the same
// id replaces the mutable columns; hash and created_at are kept.
func (r *PostgresRepository) InsertEvidence(ctx context.Context, row EvidenceRow) error {
	query := `
		INSERT INTO evidence (evidence_id, actor_id, hash, created_at, location_lat, location_lon, location_accuracy, storage_path, seal_status, audit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (evidence_id)
		DO UPDATE SET
			storage_path = EXCLUDED.storage_path,
			seal_status = EXCLUDED.seal_status,
			audit = EXCLUDED.audit;
	`
	var lat, lon, acc sql.NullFloat64
	if row.Location != nil {
		lat = sql.NullFloat64{Float64: row.Location.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: row.Location.Longitude, Valid: true}
		acc = sql.NullFloat64{Float64: row.Location.Accuracy, Valid: true}
	}
	audit := row.Audit
	if len(audit) == 0 {
		audit = []byte("{}")
	}

	res, err := r.db.ExecContext(ctx, query,
		row.EvidenceID, row.ActorID, strings.ToLower(row.Hash), row.CreatedAt.UTC(),
		lat, lon, acc, row.StoragePath, row.SealStatus, string(audit))
	if err != nil {
		return fmt.Errorf("insert evidence[%s]: %w", row.EvidenceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}

func (r *PostgresRepository) FindByHash(ctx context.Context, hash string) (*Match, error) {
	query := `SELECT id, verified_at, location_lat, location_lon FROM verify_evidence_hash($1)`

	var (
		m        Match
		lat, lon sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, query, strings.ToLower(hash)).Scan(&m.EvidenceID, &m.VerifiedAt, &lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("verify evidence hash: %w", err)
	}
	if lat.Valid {
		m.Latitude = &lat.Float64
	}
	if lon.Valid {
		m.Longitude = &lon.Float64
	}
	return &m, nil
}
