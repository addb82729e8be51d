package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"miniswap/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS deployments (
	network     TEXT PRIMARY KEY,
	chain_id    BIGINT NOT NULL,
	pool        TEXT NOT NULL,
	token_a     TEXT NOT NULL,
	token_b     TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for the deployment registry.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertDeployments inserts or replaces deployments keyed by network.
func (s *Store) UpsertDeployments(ctx context.Context, deployments []model.Deployment) error {
	if len(deployments) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range deployments {
		if d.Network == "" {
			return fmt.Errorf("deployment network required")
		}
		batch.Queue(`
			INSERT INTO deployments (network, chain_id, pool, token_a, token_b, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
			ON CONFLICT (network)
			DO UPDATE SET
				chain_id = EXCLUDED.chain_id,
				pool = EXCLUDED.pool,
				token_a = EXCLUDED.token_a,
				token_b = EXCLUDED.token_b,
				updated_at = now()
		`,
			d.Network,
			int64(d.ChainID),
			d.Pool,
			d.AssetA,
			d.AssetB,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range deployments {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadDeployment returns the deployment registered for network.
func (s *Store) LoadDeployment(ctx context.Context, network string) (model.Deployment, bool, error) {
	if network == "" {
		return model.Deployment{}, false, fmt.Errorf("deployment network required")
	}
	var (
		d       model.Deployment
		chainID int64
	)
	row := s.pool.QueryRow(ctx, `SELECT network, chain_id, pool, token_a, token_b FROM deployments WHERE network=$1`, network)
	if err := row.Scan(&d.Network, &chainID, &d.Pool, &d.AssetA, &d.AssetB); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Deployment{}, false, nil
		}
		return model.Deployment{}, false, err
	}
	d.ChainID = uint64(chainID)
	return d, true, nil
}

// Ping checks connectivity within timeout.
func (s *Store) Ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.pool.Ping(ctx)
}
