package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/btangonan/calm-productivity-app-sub002/internal/domain"
)

// ErrNotFound is returned when no credential row exists for an email.
var ErrNotFound = errors.New("credential not found")

// RowTable abstracts the external tabular store holding credential rows.
// Rows are data rows only; the header row is the implementation's concern.
// Row layout: [internalId, email, refreshToken].
type RowTable interface {
	ReadRows(ctx context.Context) ([][]string, error)
	AppendRow(ctx context.Context, row []string) error
	UpdateRow(ctx context.Context, index int, row []string) error
}

// CredentialRepository defines persistence access for refresh credentials.
type CredentialRepository interface {
	Upsert(ctx context.Context, record domain.CredentialRecord) error
	Lookup(ctx context.Context, email string) (string, error)
}

type credentialRepository struct {
	table RowTable
}

// NewCredentialRepository returns a row-table-backed implementation.
func NewCredentialRepository(table RowTable) CredentialRepository {
	return &credentialRepository{table: table}
}

// Upsert overwrites the first row matching the record's email, or appends a
// new row when none exists. The scan is O(n) in user count; the underlying
// store does not enforce uniqueness, so updating the first match keeps the
// operation idempotent and never appends a duplicate for a known email.
func (r *credentialRepository) Upsert(ctx context.Context, record domain.CredentialRecord) error {
	rows, err := r.table.ReadRows(ctx)
	if err != nil {
		return err
	}

	for i, row := range rows {
		if len(row) < 2 || !strings.EqualFold(row[1], record.Email) {
			continue
		}
		updated := []string{cell(row, 0), cell(row, 1), record.RefreshToken}
		if updated[0] == "" {
			updated[0] = record.InternalID
		}
		return r.table.UpdateRow(ctx, i, updated)
	}

	return r.table.AppendRow(ctx, []string{record.InternalID, record.Email, record.RefreshToken})
}

// Lookup returns the stored refresh token for an email.
func (r *credentialRepository) Lookup(ctx context.Context, email string) (string, error) {
	rows, err := r.table.ReadRows(ctx)
	if err != nil {
		return "", err
	}

	for _, row := range rows {
		if len(row) < 2 || !strings.EqualFold(row[1], email) {
			continue
		}
		if token := cell(row, 2); token != "" {
			return token, nil
		}
		return "", ErrNotFound
	}
	return "", ErrNotFound
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
