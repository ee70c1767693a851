package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"subgraphMonitor/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS subgraph_verdicts (
	id          BIGSERIAL PRIMARY KEY,
	job         TEXT        NOT NULL,
	version     TEXT        NOT NULL,
	ok          BOOLEAN     NOT NULL,
	degraded    BOOLEAN     NOT NULL,
	reason      TEXT        NOT NULL DEFAULT '',
	network     TEXT        NOT NULL DEFAULT '',
	job_block   NUMERIC,
	head_block  NUMERIC,
	checked_at  TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS subgraph_verdicts_job_version_idx
	ON subgraph_verdicts (job, version, checked_at DESC);
`

// Store keeps a history of verdicts in Postgres.
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

// EnsureSchema creates the verdict table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// InsertVerdicts appends verdicts in one batch.
func (s *Store) InsertVerdicts(ctx context.Context, verdicts []model.Verdict) error {
	if len(verdicts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, v := range verdicts {
		batch.Queue(`
			INSERT INTO subgraph_verdicts (
				job, version, ok, degraded, reason, network, job_block, head_block, checked_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9)
		`,
			v.Job,
			string(v.Version),
			v.OK,
			v.Degraded,
			v.Reason,
			v.Network,
			numericText(v.JobBlock),
			numericText(v.HeadBlock),
			v.CheckedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range verdicts {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LastVerdict returns the most recent verdict for a job version.
func (s *Store) LastVerdict(ctx context.Context, job string, version model.Version) (model.Verdict, bool, error) {
	if job == "" {
		return model.Verdict{}, false, fmt.Errorf("job name required")
	}

	var (
		v                   model.Verdict
		jobBlock, headBlock *string
		checkedAt           time.Time
	)
	row := s.pool.QueryRow(ctx, `
		SELECT ok, degraded, reason, network, job_block::text, head_block::text, checked_at
		FROM subgraph_verdicts
		WHERE job = $1 AND version = $2
		ORDER BY checked_at DESC
		LIMIT 1
	`, job, string(version))
	if err := row.Scan(&v.OK, &v.Degraded, &v.Reason, &v.Network, &jobBlock, &headBlock, &checkedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Verdict{}, false, nil
		}
		return model.Verdict{}, false, err
	}

	v.Job = job
	v.Version = version
	v.CheckedAt = checkedAt
	v.JobBlock = parseNumeric(jobBlock)
	v.HeadBlock = parseNumeric(headBlock)
	if v.JobBlock != nil && v.HeadBlock != nil {
		v.Drift = new(big.Int).Sub(v.HeadBlock, v.JobBlock)
	}
	return v, true, nil
}

// Sink adapts the store to storage.Storage for one run.
type Sink struct {
	Ctx   context.Context
	Store *Store
}

func (s Sink) PutVerdicts(verdicts []model.Verdict) error {
	return s.Store.InsertVerdicts(s.Ctx, verdicts)
}

func numericText(n *big.Int) *string {
	if n == nil {
		return nil
	}
	text := n.String()
	return &text
}

func parseNumeric(text *string) *big.Int {
	if text == nil {
		return nil
	}
	n, ok := new(big.Int).SetString(*text, 10)
	if !ok {
		return nil
	}
	return n
}
