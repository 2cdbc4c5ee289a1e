package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/portwatch/internal/domain"
	"github.com/hamed0406/portwatch/internal/repo"
)

var _ repo.EndpointStore = (*Store)(nil)
var _ repo.StatusStore = (*Store)(nil)

// Schema is applied by EnsureSchema; safe to run on every start.
const Schema = `
CREATE TABLE IF NOT EXISTS endpoints (
  host                TEXT        NOT NULL,
  port                INTEGER     NOT NULL,
  polling_interval_ms BIGINT      NOT NULL,
  grace_period_ms     BIGINT      NOT NULL,
  outage_start        TIMESTAMPTZ NULL,
  outage_end          TIMESTAMPTZ NULL,
  created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (host, port)
);

CREATE TABLE IF NOT EXISTS endpoint_status (
  host        TEXT        NOT NULL,
  port        INTEGER     NOT NULL,
  status      TEXT        NOT NULL,
  from_status TEXT        NOT NULL,
  changed_at  TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (host, port)
);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ---- EndpointStore ----

func (s *Store) Save(ctx context.Context, spec domain.EndpointSpec) error {
	if spec.CreatedAt.IsZero() {
		spec.CreatedAt = time.Now().UTC()
	}
	var start, end *time.Time
	if spec.Outage != nil {
		start, end = &spec.Outage.Start, &spec.Outage.End
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO endpoints
		   (host, port, polling_interval_ms, grace_period_ms, outage_start, outage_end, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (host, port) DO UPDATE SET
		   polling_interval_ms = EXCLUDED.polling_interval_ms,
		   grace_period_ms     = EXCLUDED.grace_period_ms,
		   outage_start        = EXCLUDED.outage_start,
		   outage_end          = EXCLUDED.outage_end`,
		spec.Endpoint.Host, spec.Endpoint.Port,
		spec.PollingInterval.Milliseconds(), spec.GracePeriod.Milliseconds(),
		start, end, spec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save endpoint: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, ep domain.Endpoint) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM endpoint_status WHERE host=$1 AND port=$2`, ep.Host, ep.Port); err != nil {
		return fmt.Errorf("delete status: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM endpoints WHERE host=$1 AND port=$2`, ep.Host, ep.Port); err != nil {
		return fmt.Errorf("delete endpoint: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) List(ctx context.Context) ([]domain.EndpointSpec, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT host, port, polling_interval_ms, grace_period_ms, outage_start, outage_end, created_at
		   FROM endpoints
		  ORDER BY created_at, host, port`)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer rows.Close()

	var out []domain.EndpointSpec
	for rows.Next() {
		var (
			host        string
			port        int
			intervalMS  int64
			graceMS     int64
			outageStart *time.Time
			outageEnd   *time.Time
			createdAt   time.Time
		)
		if err := rows.Scan(&host, &port, &intervalMS, &graceMS, &outageStart, &outageEnd, &createdAt); err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		spec := domain.EndpointSpec{
			Endpoint:        domain.Endpoint{Host: host, Port: port},
			PollingInterval: time.Duration(intervalMS) * time.Millisecond,
			GracePeriod:     time.Duration(graceMS) * time.Millisecond,
			CreatedAt:       createdAt,
		}
		if outageStart != nil && outageEnd != nil {
			spec.Outage = &domain.OutageWindow{Start: *outageStart, End: *outageEnd}
		}
		out = append(out, spec)
	}
	return out, rows.Err()
}
