package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hamed0406/portwatch/internal/domain"
	"github.com/hamed0406/portwatch/internal/repo"
)

func (s *Store) Get(ctx context.Context, ep domain.Endpoint) (*repo.StatusRecord, error) {
	const q = `SELECT status, from_status, changed_at FROM endpoint_status WHERE host=$1 AND port=$2`
	var (
		to, from  string
		changedAt time.Time
	)
	err := s.pool.QueryRow(ctx, q, ep.Host, ep.Port).Scan(&to, &from, &changedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	toStatus, err := domain.ParseStatus(to)
	if err != nil {
		return nil, fmt.Errorf("status column: %w", err)
	}
	fromStatus, err := domain.ParseStatus(from)
	if err != nil {
		return nil, fmt.Errorf("from_status column: %w", err)
	}
	return &repo.StatusRecord{
		Endpoint: ep,
		Status:   toStatus,
		LastTransition: domain.Transition{
			Endpoint: ep,
			From:     fromStatus,
			To:       toStatus,
			At:       changedAt,
		},
	}, nil
}

func (s *Store) Set(ctx context.Context, tr domain.Transition) error {
	const q = `
		INSERT INTO endpoint_status (host, port, status, from_status, changed_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (host, port)
		DO UPDATE SET status=EXCLUDED.status, from_status=EXCLUDED.from_status, changed_at=EXCLUDED.changed_at
	`
	_, err := s.pool.Exec(ctx, q, tr.Endpoint.Host, tr.Endpoint.Port, tr.To.String(), tr.From.String(), tr.At)
	return err
}
