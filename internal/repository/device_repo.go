package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gefarm-api/internal/domain"
)

// DeviceRepository define el contrato de persistencia para dispositivos y sus
// asociaciones con usuarios.
type DeviceRepository interface {
	Create(ctx context.Context, device domain.Device) error
	GetByID(ctx context.Context, id string) (domain.Device, error)
	GetByDeviceID(ctx context.Context, deviceID string) (domain.Device, error)
	AddToUser(ctx context.Context, assoc domain.UserDevice) error
	GetUserDevice(ctx context.Context, userID, deviceID string) (domain.UserDevice, error)
	UserDevices(ctx context.Context, userID string) ([]domain.UserDeviceView, error)
	UpdateDataplate(ctx context.Context, id string, du, k1, k2, fiv *string, syncedAt time.Time) error
	UpdateLastSeen(ctx context.Context, deviceID string, at time.Time) error
}

const deviceColumns = `id, device_id, device_family, device_type, nome_dispositivo, ssid_ap, ssid_password,
		first_setup_completed, chain2_active, firmware_version, last_seen,
		du, k1, k2, fiv, dataplate_synced_at, created_at, updated_at`

// PgDeviceRepository implementa DeviceRepository usando pgxpool.
type PgDeviceRepository struct {
	pool *pgxpool.Pool
}

func NewPgDeviceRepository(pool *pgxpool.Pool) *PgDeviceRepository {
	return &PgDeviceRepository{pool: pool}
}

func (r *PgDeviceRepository) Create(ctx context.Context, device domain.Device) error {
	const query = `
		INSERT INTO gefarm_devices
			(id, device_id, device_family, device_type, nome_dispositivo, ssid_ap, ssid_password,
			 chain2_active, firmware_version, du, k1, k2, fiv, dataplate_synced_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
	`
	_, err := r.pool.Exec(ctx, query,
		device.ID,
		device.DeviceID,
		device.DeviceFamily,
		device.DeviceType,
		device.NomeDispositivo,
		device.SSIDAp,
		device.SSIDPassword,
		device.Chain2Active,
		device.FirmwareVersion,
		device.DU,
		device.K1,
		device.K2,
		device.FIV,
		device.DataplateSyncedAt,
		device.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDeviceExists
	}
	return err
}

func (r *PgDeviceRepository) GetByID(ctx context.Context, id string) (domain.Device, error) {
	const query = `SELECT ` + deviceColumns + ` FROM gefarm_devices WHERE id = $1`
	return r.scanDevice(r.pool.QueryRow(ctx, query, id))
}

func (r *PgDeviceRepository) GetByDeviceID(ctx context.Context, deviceID string) (domain.Device, error) {
	const query = `SELECT ` + deviceColumns + ` FROM gefarm_devices WHERE device_id = $1`
	return r.scanDevice(r.pool.QueryRow(ctx, query, deviceID))
}

func (r *PgDeviceRepository) AddToUser(ctx context.Context, assoc domain.UserDevice) error {
	const query = `
		INSERT INTO gefarm_user_devices (user_id, device_id, role, nickname, is_meter_owner, added_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, device_id) DO UPDATE
		SET role = EXCLUDED.role,
		    nickname = EXCLUDED.nickname,
		    is_meter_owner = EXCLUDED.is_meter_owner
	`
	_, err := r.pool.Exec(ctx, query,
		assoc.UserID,
		assoc.DeviceID,
		assoc.Role,
		assoc.Nickname,
		assoc.IsMeterOwner,
		assoc.AddedAt,
	)
	return err
}

func (r *PgDeviceRepository) GetUserDevice(ctx context.Context, userID, deviceID string) (domain.UserDevice, error) {
	const query = `
		SELECT user_id, device_id, role, nickname, is_favorite, is_meter_owner, added_at
		FROM gefarm_user_devices
		WHERE user_id = $1 AND device_id = $2
	`
	var ud domain.UserDevice
	err := r.pool.QueryRow(ctx, query, userID, deviceID).Scan(
		&ud.UserID,
		&ud.DeviceID,
		&ud.Role,
		&ud.Nickname,
		&ud.IsFavorite,
		&ud.IsMeterOwner,
		&ud.AddedAt,
	)
	if err != nil {
		return domain.UserDevice{}, err
	}
	return ud, nil
}

func (r *PgDeviceRepository) UserDevices(ctx context.Context, userID string) ([]domain.UserDeviceView, error) {
	const query = `
		SELECT d.id, d.device_id, d.device_family, d.device_type, d.nome_dispositivo, d.ssid_ap, d.ssid_password,
		       d.first_setup_completed, d.chain2_active, d.firmware_version, d.last_seen,
		       d.du, d.k1, d.k2, d.fiv, d.dataplate_synced_at, d.created_at, d.updated_at,
		       ud.role, ud.nickname, ud.is_favorite, ud.is_meter_owner
		FROM gefarm_devices d
		INNER JOIN gefarm_user_devices ud ON d.id = ud.device_id
		WHERE ud.user_id = $1
		ORDER BY ud.is_favorite DESC, ud.added_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []domain.UserDeviceView
	for rows.Next() {
		var v domain.UserDeviceView
		err := rows.Scan(
			&v.ID, &v.DeviceID, &v.DeviceFamily, &v.DeviceType, &v.NomeDispositivo, &v.SSIDAp, &v.SSIDPassword,
			&v.FirstSetupCompleted, &v.Chain2Active, &v.FirmwareVersion, &v.LastSeen,
			&v.DU, &v.K1, &v.K2, &v.FIV, &v.DataplateSyncedAt, &v.CreatedAt, &v.UpdatedAt,
			&v.Role, &v.Nickname, &v.IsFavorite, &v.IsMeterOwner,
		)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func (r *PgDeviceRepository) UpdateDataplate(ctx context.Context, id string, du, k1, k2, fiv *string, syncedAt time.Time) error {
	const query = `
		UPDATE gefarm_devices
		SET du = COALESCE($2, du),
		    k1 = COALESCE($3, k1),
		    k2 = COALESCE($4, k2),
		    fiv = COALESCE($5, fiv),
		    dataplate_synced_at = $6,
		    updated_at = now()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, du, k1, k2, fiv, syncedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgDeviceRepository) UpdateLastSeen(ctx context.Context, deviceID string, at time.Time) error {
	const query = `UPDATE gefarm_devices SET last_seen = $2 WHERE device_id = $1`
	_, err := r.pool.Exec(ctx, query, deviceID, at)
	return err
}

func (r *PgDeviceRepository) scanDevice(row rowScanner) (domain.Device, error) {
	var d domain.Device
	err := row.Scan(
		&d.ID, &d.DeviceID, &d.DeviceFamily, &d.DeviceType, &d.NomeDispositivo, &d.SSIDAp, &d.SSIDPassword,
		&d.FirstSetupCompleted, &d.Chain2Active, &d.FirmwareVersion, &d.LastSeen,
		&d.DU, &d.K1, &d.K2, &d.FIV, &d.DataplateSyncedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return domain.Device{}, err
	}
	return d, nil
}
