package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"gefarm-api/internal/domain"
)

// MeterRepository persiste los registros de titularidad chain2.
// El campo cf llega ya cifrado desde el servicio.
type MeterRepository interface {
	// ReplaceActive desactiva el registro activo del dispositivo e inserta el
	// nuevo dentro de la misma transacción.
	ReplaceActive(ctx context.Context, rec domain.MeterData) error
	GetActiveByDeviceID(ctx context.Context, deviceID string) (domain.MeterData, error)
	GetAllByDeviceID(ctx context.Context, deviceID string) ([]domain.MeterData, error)
}

const meterColumns = `id, device_id, inserted_by_user_id, cf, nome, cognome, indirizzo,
		zip_code, citta, provincia, pod, email, telefono, is_active, valid_from, valid_to, created_at`

// PgMeterRepository implementa MeterRepository usando pgxpool.
type PgMeterRepository struct {
	pool *pgxpool.Pool
}

func NewPgMeterRepository(pool *pgxpool.Pool) *PgMeterRepository {
	return &PgMeterRepository{pool: pool}
}

func (r *PgMeterRepository) ReplaceActive(ctx context.Context, rec domain.MeterData) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const deactivate = `
		UPDATE gefarm_device_meter_data
		SET is_active = FALSE, valid_to = now()
		WHERE device_id = $1 AND is_active = TRUE
	`
	if _, err := tx.Exec(ctx, deactivate, rec.DeviceID); err != nil {
		return err
	}

	const insert = `
		INSERT INTO gefarm_device_meter_data
			(id, device_id, inserted_by_user_id, cf, nome, cognome, indirizzo,
			 zip_code, citta, provincia, pod, email, telefono, is_active, valid_from, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, TRUE, $14, $14)
	`
	_, err = tx.Exec(ctx, insert,
		rec.ID,
		rec.DeviceID,
		rec.InsertedByUserID,
		rec.CF,
		rec.Nome,
		rec.Cognome,
		rec.Indirizzo,
		rec.ZipCode,
		rec.Citta,
		rec.Provincia,
		rec.POD,
		rec.Email,
		rec.Telefono,
		rec.CreatedAt,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PgMeterRepository) GetActiveByDeviceID(ctx context.Context, deviceID string) (domain.MeterData, error) {
	const query = `
		SELECT ` + meterColumns + `
		FROM gefarm_device_meter_data
		WHERE device_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanMeter(r.pool.QueryRow(ctx, query, deviceID))
}

func (r *PgMeterRepository) GetAllByDeviceID(ctx context.Context, deviceID string) ([]domain.MeterData, error) {
	const query = `
		SELECT ` + meterColumns + `
		FROM gefarm_device_meter_data
		WHERE device_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.MeterData
	for rows.Next() {
		rec, err := r.scanMeter(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PgMeterRepository) scanMeter(row rowScanner) (domain.MeterData, error) {
	var m domain.MeterData
	err := row.Scan(
		&m.ID, &m.DeviceID, &m.InsertedByUserID, &m.CF, &m.Nome, &m.Cognome, &m.Indirizzo,
		&m.ZipCode, &m.Citta, &m.Provincia, &m.POD, &m.Email, &m.Telefono,
		&m.IsActive, &m.ValidFrom, &m.ValidTo, &m.CreatedAt,
	)
	if err != nil {
		return domain.MeterData{}, err
	}
	return m, nil
}
