package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gefarm-api/internal/domain"
)

// CodeRepository persiste los códigos de un solo uso y ejecuta los consumos
// transaccionales junto con la mutación de usuario que autorizan.
type CodeRepository interface {
	// Upsert inserta o reemplaza el código de (user, purpose) en una sola
	// sentencia; devuelve false sin tocar la fila si el código existente fue
	// emitido hace menos de cooldown.
	Upsert(ctx context.Context, code domain.OneTimeCode, cooldown time.Duration) (bool, error)
	Get(ctx context.Context, userID string, purpose domain.CodePurpose) (domain.OneTimeCode, error)
	// ConsumeAndVerifyEmail marca el código de verificación como usado y el
	// usuario como verificado dentro de la misma transacción.
	ConsumeAndVerifyEmail(ctx context.Context, userID, code string, now time.Time) error
	// ConsumeAndUpdatePassword marca el código de reset como usado y reemplaza
	// el hash de password dentro de la misma transacción.
	ConsumeAndUpdatePassword(ctx context.Context, userID, code, passwordHash string, now time.Time) error
}

// PgCodeRepository implementa CodeRepository usando pgxpool.
type PgCodeRepository struct {
	pool *pgxpool.Pool
}

func NewPgCodeRepository(pool *pgxpool.Pool) *PgCodeRepository {
	return &PgCodeRepository{pool: pool}
}

func (r *PgCodeRepository) Upsert(ctx context.Context, code domain.OneTimeCode, cooldown time.Duration) (bool, error) {
	// El WHERE del ON CONFLICT hace el check de cooldown y el reemplazo en una
	// única sentencia atómica: dos Upsert concurrentes nunca dejan dos códigos
	// válidos ni reemplazan dentro de la ventana.
	const query = `
		INSERT INTO gefarm_one_time_codes (user_id, purpose, code, issued_at, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		ON CONFLICT (user_id, purpose) DO UPDATE
		SET code = EXCLUDED.code,
		    issued_at = EXCLUDED.issued_at,
		    expires_at = EXCLUDED.expires_at,
		    used = FALSE
		WHERE gefarm_one_time_codes.issued_at <= $6
	`
	cutoff := code.IssuedAt.Add(-cooldown)
	tag, err := r.pool.Exec(ctx, query,
		code.UserID,
		code.Purpose,
		code.Code,
		code.IssuedAt,
		code.ExpiresAt,
		cutoff,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgCodeRepository) Get(ctx context.Context, userID string, purpose domain.CodePurpose) (domain.OneTimeCode, error) {
	const query = `
		SELECT user_id, purpose, code, issued_at, expires_at, used
		FROM gefarm_one_time_codes
		WHERE user_id = $1 AND purpose = $2
	`
	var c domain.OneTimeCode
	err := r.pool.QueryRow(ctx, query, userID, purpose).Scan(
		&c.UserID,
		&c.Purpose,
		&c.Code,
		&c.IssuedAt,
		&c.ExpiresAt,
		&c.Used,
	)
	if err != nil {
		return domain.OneTimeCode{}, err
	}
	return c, nil
}

func (r *PgCodeRepository) ConsumeAndVerifyEmail(ctx context.Context, userID, code string, now time.Time) error {
	return r.consume(ctx, userID, domain.PurposeVerify, code, now,
		`UPDATE gefarm_users SET email_verified = TRUE, updated_at = now() WHERE id = $1`, userID)
}

func (r *PgCodeRepository) ConsumeAndUpdatePassword(ctx context.Context, userID, code, passwordHash string, now time.Time) error {
	return r.consume(ctx, userID, domain.PurposeReset, code, now,
		`UPDATE gefarm_users SET password_hash = $2, updated_at = now() WHERE id = $1`, userID, passwordHash)
}

// consume ejecuta el flip de used junto con la mutación dependiente; si
// cualquiera de las dos no afecta filas, la transacción se revierte completa.
func (r *PgCodeRepository) consume(ctx context.Context, userID string, purpose domain.CodePurpose, code string, now time.Time, userQuery string, userArgs ...any) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const markUsed = `
		UPDATE gefarm_one_time_codes
		SET used = TRUE
		WHERE user_id = $1 AND purpose = $2 AND code = $3 AND used = FALSE AND expires_at > $4
	`
	tag, err := tx.Exec(ctx, markUsed, userID, purpose, code, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Consumido o reemplazado por una petición concurrente.
		return pgx.ErrNoRows
	}

	tag, err = tx.Exec(ctx, userQuery, userArgs...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("consume code: user %s not updated", userID)
	}

	return tx.Commit(ctx)
}
