package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gefarm-api/internal/service"
)

const timestampLayout = "2006-01-02 15:04:05"

// envelope es el sobre JSON común a todas las respuestas.
type envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{
		Success:   status < http.StatusBadRequest,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC().Format(timestampLayout),
	})
}

func respondError(c *gin.Context, status int, message string) {
	respond(c, status, message, nil)
}

// statusFor traduce errores de servicio a status + mensaje para el cliente.
// Es el único lugar donde se decide el mapeo error → HTTP.
func statusFor(err error) (int, string) {
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, vErr.Message
	}
	var rlErr *service.RateLimitedError
	if errors.As(err, &rlErr) {
		secs := int(rlErr.RetryAfter.Seconds())
		if secs > 0 {
			return http.StatusTooManyRequests, fmt.Sprintf("Troppe richieste. Riprova tra %d secondi", secs)
		}
		return http.StatusTooManyRequests, "Troppe richieste. Riprova più tardi"
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Credenziali non valide"
	case errors.Is(err, service.ErrNotVerified):
		return http.StatusForbidden, "Email non verificata"
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "Email già registrata"
	case errors.Is(err, service.ErrAlreadyVerified):
		return http.StatusConflict, "Email già verificata"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "Utente non trovato"
	case errors.Is(err, service.ErrCodeExpired):
		return http.StatusGone, "Codice scaduto. Richiedine uno nuovo"
	case errors.Is(err, service.ErrCodeMismatch),
		errors.Is(err, service.ErrCodeNotFound):
		return http.StatusUnauthorized, "Codice non valido"
	case errors.Is(err, service.ErrEmailSendFailure):
		return http.StatusInternalServerError, "Invio email non riuscito. Riprova più tardi"
	case errors.Is(err, service.ErrDeviceExists):
		return http.StatusConflict, "Dispositivo già registrato"
	case errors.Is(err, service.ErrDeviceNotFound):
		return http.StatusNotFound, "Dispositivo non trovato"
	case errors.Is(err, service.ErrDeviceNotAssociated):
		return http.StatusForbidden, "Dispositivo non associato all'utente"
	case errors.Is(err, service.ErrMeterDataNotFound):
		return http.StatusNotFound, "Nessun dato contatore attivo"
	default:
		return http.StatusInternalServerError, "Errore interno del server"
	}
}

// failWith responde según statusFor y registra el detalle sólo para errores
// internos: el cliente nunca ve el texto del error de storage.
func failWith(c *gin.Context, logger *zap.Logger, err error) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.Error(err),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
	}
	respondError(c, status, message)
}
