package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gefarm-api/internal/domain"
	"gefarm-api/internal/service"
)

// AuthHandler mantiene las dependencias de los endpoints /auth.
type AuthHandler struct {
	logger   *zap.Logger
	accounts *service.AccountService
	jwtServ  *service.JWTService
}

func NewAuthHandler(logger *zap.Logger, accounts *service.AccountService, jwtServ *service.JWTService) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		accounts: accounts,
		jwtServ:  jwtServ,
	}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required"`
		Password    string `json:"password" binding:"required"`
		Nome        string `json:"nome" binding:"required"`
		Cognome     string `json:"cognome" binding:"required"`
		AvatarColor string `json:"avatar_color"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Richiesta non valida")
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), service.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		Nome:        req.Nome,
		Cognome:     req.Cognome,
		AvatarColor: req.AvatarColor,
	})
	if err != nil {
		failWith(c, h.logger, err)
		return
	}

	data, err := h.withToken(user)
	if err != nil {
		failWith(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, "Registrazione completata. Controlla la tua email per il codice di verifica", data)
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Richiesta non valida")
		return
	}

	user, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failWith(c, h.logger, err)
		return
	}

	data, err := h.withToken(user)
	if err != nil {
		failWith(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Login effettuato", data)
}

// VerifyEmail maneja POST /auth/verify_email.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Richiesta non valida")
		return
	}

	user, err := h.accounts.VerifyEmail(c.Request.Context(), req.Email, req.Token)
	if err != nil {
		failWith(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Email verificata", gin.H{"user": user})
}

// ResendVerification maneja POST /auth/resend_verification.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Richiesta non valida")
		return
	}

	code, err := h.accounts.ResendVerification(c.Request.Context(), req.Email)
	if err != nil {
		failWith(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Codice di verifica inviato", gin.H{
		"expires_at": code.ExpiresAt.Format(timestampLayout),
	})
}

// RequestPasswordReset maneja POST /auth/password_reset_request.
// La respuesta es idéntica exista o no la cuenta.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Richiesta non valida")
		return
	}

	if err := h.accounts.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		failWith(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Se l'email è registrata riceverai un codice di reset", nil)
}

// ConfirmPasswordReset maneja POST /auth/password_reset_confirm.
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required"`
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Richiesta non valida")
		return
	}

	if err := h.accounts.ConfirmPasswordReset(c.Request.Context(), req.Email, req.Token, req.NewPassword); err != nil {
		failWith(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Password aggiornata", nil)
}

func (h *AuthHandler) withToken(user domain.User) (gin.H, error) {
	token, expiresAt, err := h.jwtServ.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return gin.H{
		"user":       user,
		"token":      token,
		"expires_at": expiresAt.Format(timestampLayout),
	}, nil
}
