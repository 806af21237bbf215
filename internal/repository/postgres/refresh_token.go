package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/authkeeper-server/internal/model"
)

var _ model.RefreshTokenStore = (*RefreshTokenRepository)(nil)

const refreshTokenColumns = `jti, user_id, revoked, issued_at, expires_at, ip_address, user_agent, rotated_from_jti, created_at, updated_at`

const (
	insertRefreshTokenQuery = `
        INSERT INTO refresh_tokens (
            jti, user_id, revoked, issued_at, expires_in, expires_at, ip_address, user_agent, rotated_from_jti
        ) VALUES ($1, $2, FALSE, $3, $4, $5, $6, $7, $8)
    `
	revokeRefreshTokenQuery = `
        UPDATE refresh_tokens SET revoked = TRUE, updated_at = NOW()
        WHERE jti = $1 AND revoked = FALSE
    `
	revokeUserRefreshTokensQuery = `
        UPDATE refresh_tokens SET revoked = TRUE, updated_at = NOW()
        WHERE user_id = $1 AND revoked = FALSE
    `
)

// RefreshTokenRepository is the Postgres revocation ledger. The conditional
// UPDATE ... WHERE revoked = FALSE is the compare-and-swap every revocation
// goes through; concurrent callers serialize on the row lock and only one
// observes an affected row.
type RefreshTokenRepository struct {
	db *sql.DB
}

func NewRefreshTokenRepository(db *sql.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token model.RefreshToken) error {
	return insertRefreshToken(ctx, r.db, token)
}

func (r *RefreshTokenRepository) GetActiveByJTI(ctx context.Context, jti string) (model.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE jti = $1 AND revoked = FALSE`

	rt, err := scanRefreshToken(r.db.QueryRowContext(ctx, query, jti))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, model.ErrNotFound
		}
		return model.RefreshToken{}, fmt.Errorf("failed to get active refresh token: %w", err)
	}
	return rt, nil
}

func (r *RefreshTokenRepository) GetByJTI(ctx context.Context, jti string) (model.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE jti = $1`

	rt, err := scanRefreshToken(r.db.QueryRowContext(ctx, query, jti))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, model.ErrNotFound
		}
		return model.RefreshToken{}, fmt.Errorf("failed to get refresh token by jti: %w", err)
	}
	return rt, nil
}

func (r *RefreshTokenRepository) RevokeByJTI(ctx context.Context, jti string) (int64, error) {
	res, err := r.db.ExecContext(ctx, revokeRefreshTokenQuery, jti)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func (r *RefreshTokenRepository) RevokeAllByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, revokeUserRefreshTokensQuery, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens by user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldJTI string, next model.RefreshToken) error {
	err := withTx(ctx, r.db, func(tx DBTX) error {
		res, err := tx.ExecContext(ctx, revokeRefreshTokenQuery, oldJTI)
		if err != nil {
			return fmt.Errorf("failed to revoke rotated refresh token: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n != 1 {
			return model.ErrTokenRevoked
		}

		return insertRefreshToken(ctx, tx, next)
	})
	if err != nil {
		if errors.Is(err, model.ErrTokenRevoked) || errors.Is(err, model.ErrDuplicateIdentity) {
			return err
		}
		return fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return nil
}

func insertRefreshToken(ctx context.Context, db DBTX, token model.RefreshToken) error {
	_, err := db.ExecContext(ctx, insertRefreshTokenQuery,
		token.JTI, token.UserID, token.IssuedAt, token.ExpiresIn(), token.ExpiresAt,
		nullString(token.IPAddress), nullString(token.UserAgent), token.RotatedFromJTI,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", model.ErrDuplicateIdentity, token.JTI)
		}
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

func scanRefreshToken(row *sql.Row) (model.RefreshToken, error) {
	var (
		rt        model.RefreshToken
		ipAddress sql.NullString
		userAgent sql.NullString
	)
	err := row.Scan(
		&rt.JTI, &rt.UserID, &rt.Revoked, &rt.IssuedAt, &rt.ExpiresAt,
		&ipAddress, &userAgent, &rt.RotatedFromJTI, &rt.CreatedAt, &rt.UpdatedAt,
	)
	if err != nil {
		return model.RefreshToken{}, err
	}
	rt.IPAddress = ipAddress.String
	rt.UserAgent = userAgent.String
	return rt, nil
}
