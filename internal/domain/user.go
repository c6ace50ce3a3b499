package domain

import "time"

type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Nome          string     `json:"nome"`
	Cognome       string     `json:"cognome"`
	AvatarPath    *string    `json:"avatar_path,omitempty"`
	AvatarColor   string     `json:"avatar_color"`
	PasswordHash  string     `json:"-"`
	EmailVerified bool       `json:"email_verified"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
