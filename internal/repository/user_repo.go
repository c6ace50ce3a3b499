package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"gefarm-api/internal/domain"
)

var (
	// ErrEmailTaken indica violación del índice único sobre lower(email).
	ErrEmailTaken = errors.New("email already registered")
	// ErrDeviceExists indica violación del índice único sobre device_id.
	ErrDeviceExists = errors.New("device already registered")
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) error
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
}

// ProfileUpdate contiene los campos de perfil modificables; nil deja el valor actual.
type ProfileUpdate struct {
	Nome        *string
	Cognome     *string
	AvatarPath  *string
	AvatarColor *string
}

const userColumns = `id, email, password_hash, nome, cognome, avatar_path, avatar_color,
		email_verified, last_login, created_at, updated_at`

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO gefarm_users (id, email, password_hash, nome, cognome, avatar_color, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Nome,
		user.Cognome,
		user.AvatarColor,
		user.EmailVerified,
		user.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM gefarm_users WHERE id = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	// Comparación case-insensitive; el valor almacenado conserva el casing original.
	const query = `SELECT ` + userColumns + ` FROM gefarm_users WHERE lower(email) = lower($1)`
	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PgUserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE gefarm_users SET last_login = $2, updated_at = now() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, at)
	return err
}

func (r *PgUserRepository) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) error {
	const query = `
		UPDATE gefarm_users
		SET nome = COALESCE($2, nome),
		    cognome = COALESCE($3, cognome),
		    avatar_path = COALESCE($4, avatar_path),
		    avatar_color = COALESCE($5, avatar_color),
		    updated_at = now()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, upd.Nome, upd.Cognome, upd.AvatarPath, upd.AvatarColor)
	return err
}

func (r *PgUserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	const query = `UPDATE gefarm_users SET password_hash = $2, updated_at = now() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, passwordHash)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PgUserRepository) scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Nome,
		&u.Cognome,
		&u.AvatarPath,
		&u.AvatarColor,
		&u.EmailVerified,
		&u.LastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}
