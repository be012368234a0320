package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hoope/openbanking/internal/banking/domain"
	"github.com/hoope/openbanking/pkg/cryptox"
)

// tokensRepo persists the single current token record. Token values are
// sealed before they hit disk and opened on the way out, so a copied
// database file leaks nothing usable on its own.
type tokensRepo struct {
	db dbtx
}

const currentTokenID = 1

func (r *tokensRepo) GetCurrent(ctx context.Context) (domain.TokenRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT access_token_enc, refresh_token_enc, scope, expires_at, updated_at
		FROM token_records
		WHERE id = ?`, currentTokenID)

	var (
		accessEnc  []byte
		refreshEnc []byte
		rec        domain.TokenRecord
	)
	err := row.Scan(&accessEnc, &refreshEnc, &rec.Scope, &rec.ExpiresAt, &rec.UpdatedAt)
	if err != nil {
		return domain.TokenRecord{}, mapNotFound(err)
	}

	access, err := cryptox.Open(accessEnc)
	if err != nil {
		return domain.TokenRecord{}, fmt.Errorf("open access token: %w", err)
	}
	rec.AccessToken = string(access)

	if len(refreshEnc) > 0 {
		refresh, err := cryptox.Open(refreshEnc)
		if err != nil {
			return domain.TokenRecord{}, fmt.Errorf("open refresh token: %w", err)
		}
		rec.RefreshToken = string(refresh)
	}

	return rec, nil
}

func (r *tokensRepo) ReplaceCurrent(ctx context.Context, rec domain.TokenRecord) error {
	accessEnc, err := cryptox.Seal([]byte(rec.AccessToken))
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}

	var refreshEnc []byte
	if rec.RefreshToken != "" {
		refreshEnc, err = cryptox.Seal([]byte(rec.RefreshToken))
		if err != nil {
			return fmt.Errorf("seal refresh token: %w", err)
		}
	}

	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO token_records (id, access_token_enc, refresh_token_enc, scope, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token_enc  = excluded.access_token_enc,
			refresh_token_enc = excluded.refresh_token_enc,
			scope             = excluded.scope,
			expires_at        = excluded.expires_at,
			updated_at        = excluded.updated_at`,
		currentTokenID, accessEnc, nullBytes(refreshEnc), rec.Scope, rec.ExpiresAt, updatedAt)
	return err
}

func (r *tokensRepo) DeleteCurrent(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM token_records WHERE id = ?`, currentTokenID)
	return err
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return sql.NullString{} // stores NULL
	}
	return b
}
