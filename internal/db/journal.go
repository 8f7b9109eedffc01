package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vdavid/vmail-lite/internal/models"
)

// Journal writes delivery outcomes to the delivery_log table.
type Journal struct {
	pool *pgxpool.Pool
}

func NewJournal(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool}
}

// Record inserts one delivery outcome. Records are never updated.
func (j *Journal) Record(ctx context.Context, rec models.DeliveryRecord) error {
	recipients := rec.Recipients
	if recipients == nil {
		recipients = []string{}
	}

	_, err := j.pool.Exec(ctx, `
		INSERT INTO delivery_log (id, address, recipients, attempt, delivered, delivery_error, archival_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.Address, recipients, rec.Attempt, rec.Delivered, rec.DeliveryError, rec.ArchivalError, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert delivery record: %w", err)
	}

	return nil
}

// Recent returns the latest outcomes for an address, newest first.
func (j *Journal) Recent(ctx context.Context, address string, limit int) ([]models.DeliveryRecord, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT id::text, address, recipients, attempt, delivered, delivery_error, archival_error, created_at
		FROM delivery_log
		WHERE address = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, address, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery records: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DeliveryRecord, error) {
		var rec models.DeliveryRecord
		err := row.Scan(&rec.ID, &rec.Address, &rec.Recipients, &rec.Attempt, &rec.Delivered,
			&rec.DeliveryError, &rec.ArchivalError, &rec.CreatedAt)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan delivery records: %w", err)
	}

	return records, nil
}
