// Package repo defines storage contracts for probe result records.
package repo

import (
	"context"

	"github.com/pkiops/pkihealth/internal/domain"
)

// RecordStore holds the result records of monitoring passes for later
// retrieval over the API.
type RecordStore interface {
	// Append stores one result record.
	Append(ctx context.Context, rec domain.Record) error
	// List returns all stored records in insertion order.
	List(ctx context.Context) ([]domain.Record, error)
}
