package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gefarm-api/internal/service"
)

// MeterHandler mantiene las dependencias de los endpoints /meter.
type MeterHandler struct {
	logger  *zap.Logger
	devices *service.DeviceService
}

func NewMeterHandler(logger *zap.Logger, devices *service.DeviceService) *MeterHandler {
	return &MeterHandler{logger: logger, devices: devices}
}

// Submit maneja POST /meter/submit.
func (h *MeterHandler) Submit(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Token non valido")
		return
	}

	var req struct {
		DeviceID  string  `json:"device_id" binding:"required"`
		CF        string  `json:"cf" binding:"required"`
		Nome      string  `json:"nome" binding:"required"`
		Cognome   string  `json:"cognome" binding:"required"`
		Indirizzo string  `json:"indirizzo" binding:"required"`
		ZipCode   string  `json:"zip_code" binding:"required"`
		Citta     string  `json:"citta" binding:"required"`
		Provincia string  `json:"provincia" binding:"required"`
		POD       *string `json:"pod"`
		Email     string  `json:"email" binding:"required"`
		Telefono  *string `json:"telefono"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Richiesta non valida")
		return
	}

	rec, err := h.devices.SubmitMeterData(c.Request.Context(), claims.Subject, service.MeterDataInput{
		DeviceID:  req.DeviceID,
		CF:        req.CF,
		Nome:      req.Nome,
		Cognome:   req.Cognome,
		Indirizzo: req.Indirizzo,
		ZipCode:   req.ZipCode,
		Citta:     req.Citta,
		Provincia: req.Provincia,
		POD:       req.POD,
		Email:     req.Email,
		Telefono:  req.Telefono,
	})
	if err != nil {
		failWith(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, "Dati contatore registrati", gin.H{"meter_data": rec})
}

// Active maneja GET /meter/active?device_id=.
func (h *MeterHandler) Active(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Token non valido")
		return
	}

	deviceID := c.Query("device_id")
	if deviceID == "" {
		respondError(c, http.StatusBadRequest, "Parametro device_id obbligatorio")
		return
	}

	rec, err := h.devices.ActiveMeterData(c.Request.Context(), claims.Subject, deviceID)
	if err != nil {
		failWith(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"meter_data": rec})
}
