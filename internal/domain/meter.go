package domain

import "time"

// MeterData es el registro de titularidad chain2 de un dispositivo.
// CF viaja en claro por el dominio; el repositorio lo persiste cifrado.
type MeterData struct {
	ID               string     `json:"id"`
	DeviceID         string     `json:"device_id"`
	InsertedByUserID *string    `json:"inserted_by_user_id,omitempty"`
	CF               string     `json:"cf"`
	Nome             string     `json:"nome"`
	Cognome          string     `json:"cognome"`
	Indirizzo        string     `json:"indirizzo"`
	ZipCode          string     `json:"zip_code"`
	Citta            string     `json:"citta"`
	Provincia        string     `json:"provincia"`
	POD              *string    `json:"pod,omitempty"`
	Email            string     `json:"email"`
	Telefono         *string    `json:"telefono,omitempty"`
	IsActive         bool       `json:"is_active"`
	ValidFrom        time.Time  `json:"valid_from"`
	ValidTo          *time.Time `json:"valid_to,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
