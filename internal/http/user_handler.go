package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gefarm-api/internal/service"
)

// UserHandler mantiene las dependencias de los endpoints /user.
type UserHandler struct {
	logger   *zap.Logger
	accounts *service.AccountService
}

func NewUserHandler(logger *zap.Logger, accounts *service.AccountService) *UserHandler {
	return &UserHandler{logger: logger, accounts: accounts}
}

// Profile maneja GET /user/profile.
func (h *UserHandler) Profile(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Token non valido")
		return
	}

	user, err := h.accounts.Profile(c.Request.Context(), claims.Subject)
	if err != nil {
		failWith(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"user": user})
}

// UpdateProfile maneja PUT /user/profile. Sólo modifica los campos presentes.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Token non valido")
		return
	}

	var req struct {
		Nome        *string `json:"nome"`
		Cognome     *string `json:"cognome"`
		AvatarPath  *string `json:"avatar_path"`
		AvatarColor *string `json:"avatar_color"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Richiesta non valida")
		return
	}

	user, err := h.accounts.UpdateProfile(c.Request.Context(), claims.Subject, service.ProfileUpdateInput{
		Nome:        req.Nome,
		Cognome:     req.Cognome,
		AvatarPath:  req.AvatarPath,
		AvatarColor: req.AvatarColor,
	})
	if err != nil {
		failWith(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Profilo aggiornato", gin.H{"user": user})
}

// ChangePassword maneja PUT /user/password.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Token non valido")
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Richiesta non valida")
		return
	}

	if err := h.accounts.ChangePassword(c.Request.Context(), claims.Subject, req.CurrentPassword, req.NewPassword); err != nil {
		failWith(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Password aggiornata", nil)
}
