package domain

import "time"

type Device struct {
	ID                  string     `json:"id"`
	DeviceID            string     `json:"device_id"`
	DeviceFamily        string     `json:"device_family"`
	DeviceType          string     `json:"device_type"`
	NomeDispositivo     string     `json:"nome_dispositivo"`
	SSIDAp              *string    `json:"ssid_ap,omitempty"`
	SSIDPassword        *string    `json:"-"`
	FirstSetupCompleted bool       `json:"first_setup_completed"`
	Chain2Active        bool       `json:"chain2_active"`
	FirmwareVersion     *string    `json:"firmware_version,omitempty"`
	LastSeen            *time.Time `json:"last_seen,omitempty"`

	// Campos dataplate del contador.
	DU                *string    `json:"du,omitempty"`
	K1                *string    `json:"k1,omitempty"`
	K2                *string    `json:"k2,omitempty"`
	FIV               *string    `json:"fiv,omitempty"`
	DataplateSyncedAt *time.Time `json:"dataplate_synced_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserDevice es la asociación usuario-dispositivo con su rol y metadatos.
type UserDevice struct {
	UserID       string    `json:"user_id"`
	DeviceID     string    `json:"device_id"`
	Role         string    `json:"role"`
	Nickname     *string   `json:"nickname,omitempty"`
	IsFavorite   bool      `json:"is_favorite"`
	IsMeterOwner bool      `json:"is_meter_owner"`
	AddedAt      time.Time `json:"added_at"`
}

// UserDeviceView combina el dispositivo con los metadatos de la asociación.
type UserDeviceView struct {
	Device
	Role         string  `json:"role"`
	Nickname     *string `json:"nickname,omitempty"`
	IsFavorite   bool    `json:"is_favorite"`
	IsMeterOwner bool    `json:"is_meter_owner"`
}
