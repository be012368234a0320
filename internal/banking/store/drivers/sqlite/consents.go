package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hoope/openbanking/internal/banking/domain"
	"github.com/hoope/openbanking/internal/banking/store"
)

type consentsRepo struct {
	db dbtx
}

func (r *consentsRepo) CreateConsent(ctx context.Context, c domain.Consent) error {
	var instructionJSON sql.NullString
	if c.Instruction != nil {
		raw, err := json.Marshal(c.Instruction)
		if err != nil {
			return fmt.Errorf("marshal instruction: %w", err)
		}
		instructionJSON = sql.NullString{String: string(raw), Valid: true}
	}

	now := time.Now().UTC()
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO consents (id, kind, status, scope, permissions, instruction_json, idempotency_key, created_at, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.Kind), c.Status, c.Scope,
		strings.Join(c.Permissions, " "), instructionJSON, c.IdempotencyKey,
		createdAt, mapTimeNull(c.ExpiresAt), updatedAt)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("consent %s: %w", c.ID, store.ErrAlreadyExists)
	}
	return err
}

func (r *consentsRepo) GetConsentByID(ctx context.Context, id string) (domain.Consent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, status, scope, permissions, instruction_json, idempotency_key, created_at, expires_at, updated_at
		FROM consents
		WHERE id = ?`, id)

	c, err := scanConsent(row)
	if err != nil {
		return domain.Consent{}, mapNotFound(err)
	}
	return c, nil
}

func (r *consentsRepo) UpdateConsentStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE consents SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *consentsRepo) ListConsentsByKind(ctx context.Context, kind domain.ConsentKind) ([]domain.Consent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, status, scope, permissions, instruction_json, idempotency_key, created_at, expires_at, updated_at
		FROM consents
		WHERE kind = ?
		ORDER BY created_at DESC`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Consent
	for rows.Next() {
		c, err := scanConsent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *consentsRepo) ExpireConsentsBefore(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE consents SET status = ?, updated_at = ?
		WHERE expires_at IS NOT NULL AND expires_at < ?
		  AND status IN (?, ?)`,
		domain.ConsentStatusExpired, now.UTC(), now.UTC(),
		domain.ConsentStatusAwaitingAuthorisation, domain.ConsentStatusAuthorised)
	return err
}

func (r *consentsRepo) DeleteConsentsBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM consents
		WHERE updated_at < ?
		  AND status IN (?, ?, ?, ?)`,
		cutoff.UTC(),
		domain.ConsentStatusConsumed, domain.ConsentStatusRejected,
		domain.ConsentStatusRevoked, domain.ConsentStatusExpired)
	return err
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanConsent(row scanner) (domain.Consent, error) {
	var (
		c               domain.Consent
		kind            string
		permissions     string
		instructionJSON sql.NullString
		expiresAt       sql.NullTime
	)
	err := row.Scan(&c.ID, &kind, &c.Status, &c.Scope, &permissions,
		&instructionJSON, &c.IdempotencyKey, &c.CreatedAt, &expiresAt, &c.UpdatedAt)
	if err != nil {
		return domain.Consent{}, err
	}

	c.Kind = domain.ConsentKind(kind)
	if permissions != "" {
		c.Permissions = strings.Fields(permissions)
	}
	c.ExpiresAt = mapNullTime(expiresAt)

	if instructionJSON.Valid {
		var instr domain.PaymentInstruction
		if err := json.Unmarshal([]byte(instructionJSON.String), &instr); err != nil {
			return domain.Consent{}, fmt.Errorf("unmarshal instruction: %w", err)
		}
		c.Instruction = &instr
	}

	return c, nil
}
