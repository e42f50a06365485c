package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RevokeToken records a logged-out session's JTI so the token stops working
// before its natural expiry. The expiry is stored alongside so the row can be
// dropped once the token would have died anyway.
func RevokeToken(ctx context.Context, db *sql.DB, jti string, expiresAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (jti, expires_at) VALUES (?, ?)`,
		jti, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}

	sweepExpiredRevocations(ctx, db)
	return nil
}

// IsTokenRevoked reports whether the JTI belongs to a logged-out session.
func IsTokenRevoked(ctx context.Context, db *sql.DB, jti string) (bool, error) {
	var found int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`, jti,
	).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return found > 0, nil
}

// sweepExpiredRevocations drops revocations for tokens that have expired on
// their own. Piggybacked on logout; a failed sweep only delays cleanup, so
// the error is dropped.
func sweepExpiredRevocations(ctx context.Context, db *sql.DB) {
	_, _ = db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, time.Now(),
	)
}
