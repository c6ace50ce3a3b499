package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gefarm-api/internal/domain"
	"gefarm-api/internal/service"
)

// DeviceHandler mantiene las dependencias de los endpoints /devices.
type DeviceHandler struct {
	logger  *zap.Logger
	devices *service.DeviceService
}

func NewDeviceHandler(logger *zap.Logger, devices *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{logger: logger, devices: devices}
}

// Register maneja POST /devices/register.
func (h *DeviceHandler) Register(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Token non valido")
		return
	}

	var req struct {
		DeviceID        string  `json:"device_id" binding:"required"`
		DeviceFamily    string  `json:"device_family" binding:"required"`
		DeviceType      string  `json:"device_type" binding:"required"`
		NomeDispositivo string  `json:"nome_dispositivo" binding:"required"`
		SSIDAp          *string `json:"ssid_ap"`
		SSIDPassword    *string `json:"ssid_password"`
		Chain2Active    bool    `json:"chain2_active"`
		FirmwareVersion *string `json:"firmware_version"`
		DU              *string `json:"du"`
		K1              *string `json:"k1"`
		K2              *string `json:"k2"`
		FIV             *string `json:"fiv"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Richiesta non valida")
		return
	}

	device, err := h.devices.RegisterDevice(c.Request.Context(), claims.Subject, service.RegisterDeviceInput{
		DeviceID:        req.DeviceID,
		DeviceFamily:    req.DeviceFamily,
		DeviceType:      req.DeviceType,
		NomeDispositivo: req.NomeDispositivo,
		SSIDAp:          req.SSIDAp,
		SSIDPassword:    req.SSIDPassword,
		Chain2Active:    req.Chain2Active,
		FirmwareVersion: req.FirmwareVersion,
		DU:              req.DU,
		K1:              req.K1,
		K2:              req.K2,
		FIV:             req.FIV,
	})
	if err != nil {
		failWith(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, "Dispositivo registrato", gin.H{"device": device})
}

// Add maneja POST /devices/add.
func (h *DeviceHandler) Add(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Token non valido")
		return
	}

	var req struct {
		DeviceID string  `json:"device_id" binding:"required"`
		Role     string  `json:"role"`
		Nickname *string `json:"nickname"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Richiesta non valida")
		return
	}

	device, err := h.devices.AddDevice(c.Request.Context(), claims.Subject, service.AddDeviceInput{
		DeviceID: req.DeviceID,
		Role:     req.Role,
		Nickname: req.Nickname,
	})
	if err != nil {
		failWith(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Dispositivo associato", gin.H{"device": device})
}

// List maneja GET /devices/user.
func (h *DeviceHandler) List(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Token non valido")
		return
	}

	views, err := h.devices.UserDevices(c.Request.Context(), claims.Subject)
	if err != nil {
		failWith(c, h.logger, err)
		return
	}
	if views == nil {
		views = []domain.UserDeviceView{}
	}
	respond(c, http.StatusOK, "", gin.H{"devices": views})
}

// Details maneja GET /devices/:device_id.
func (h *DeviceHandler) Details(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Token non valido")
		return
	}

	device, err := h.devices.DeviceDetails(c.Request.Context(), claims.Subject, c.Param("device_id"))
	if err != nil {
		failWith(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"device": device})
}

// UpdateDataplate maneja PUT /devices/:device_id/dataplate.
func (h *DeviceHandler) UpdateDataplate(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Token non valido")
		return
	}

	var req struct {
		DU  *string `json:"du"`
		K1  *string `json:"k1"`
		K2  *string `json:"k2"`
		FIV *string `json:"fiv"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Richiesta non valida")
		return
	}

	device, err := h.devices.UpdateDataplate(c.Request.Context(), claims.Subject, c.Param("device_id"), service.DataplateInput{
		DU:  req.DU,
		K1:  req.K1,
		K2:  req.K2,
		FIV: req.FIV,
	})
	if err != nil {
		failWith(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Targa aggiornata", gin.H{"device": device})
}
