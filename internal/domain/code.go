package domain

import "time"

// CodePurpose distingue los códigos de verificación de email y de reset de password.
type CodePurpose string

const (
	PurposeVerify CodePurpose = "verify"
	PurposeReset  CodePurpose = "reset"
)

// OneTimeCode es un secreto numérico de un solo uso ligado a un usuario y un propósito.
// Por (user_id, purpose) existe a lo sumo una fila; emitir de nuevo la reemplaza.
type OneTimeCode struct {
	UserID    string      `json:"-"`
	Purpose   CodePurpose `json:"-"`
	Code      string      `json:"-"`
	IssuedAt  time.Time   `json:"issued_at"`
	ExpiresAt time.Time   `json:"expires_at"`
	Used      bool        `json:"-"`
}
