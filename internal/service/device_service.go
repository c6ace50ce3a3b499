package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"gefarm-api/internal/crypto"
	"gefarm-api/internal/domain"
	"gefarm-api/internal/repository"
)

var (
	deviceIDPattern = regexp.MustCompile(`^emcengine-[0-9]{6}$`)

	deviceFamilies = map[string]bool{
		"uno":     true,
		"duo":     true,
		"caricar": true,
		"emc":     true,
	}
	deviceTypes = map[string]bool{
		"emcengine":   true,
		"emcinverter": true,
		"emcbox":      true,
	}
)

// DeviceService gestiona el registro de dispositivos, sus asociaciones con
// usuarios y los datos de titularidad chain2.
type DeviceService struct {
	logger  *zap.Logger
	devices repository.DeviceRepository
	meters  repository.MeterRepository
	cipher  *crypto.FieldCipher
	now     func() time.Time
}

func NewDeviceService(logger *zap.Logger, devices repository.DeviceRepository, meters repository.MeterRepository, cipher *crypto.FieldCipher) *DeviceService {
	return &DeviceService{
		logger:  logger,
		devices: devices,
		meters:  meters,
		cipher:  cipher,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type RegisterDeviceInput struct {
	DeviceID        string
	DeviceFamily    string
	DeviceType      string
	NomeDispositivo string
	SSIDAp          *string
	SSIDPassword    *string
	Chain2Active    bool
	FirmwareVersion *string
	DU              *string
	K1              *string
	K2              *string
	FIV             *string
}

// RegisterDevice da de alta el dispositivo y lo asocia al usuario que lo
// registra como owner.
func (s *DeviceService) RegisterDevice(ctx context.Context, userID string, input RegisterDeviceInput) (domain.Device, error) {
	deviceID := strings.ToLower(strings.TrimSpace(input.DeviceID))
	if !deviceIDPattern.MatchString(deviceID) {
		return domain.Device{}, &ValidationError{Field: "device_id", Message: "ID dispositivo non valido (formato emcengine-NNNNNN)"}
	}
	family := strings.ToLower(strings.TrimSpace(input.DeviceFamily))
	if !deviceFamilies[family] {
		return domain.Device{}, &ValidationError{Field: "device_family", Message: "Famiglia dispositivo non valida"}
	}
	deviceType := strings.ToLower(strings.TrimSpace(input.DeviceType))
	if !deviceTypes[deviceType] {
		return domain.Device{}, &ValidationError{Field: "device_type", Message: "Tipo dispositivo non valido"}
	}
	if err := validateLength(input.NomeDispositivo, 1, 100, "Nome dispositivo"); err != nil {
		return domain.Device{}, err
	}

	now := s.now()
	device := domain.Device{
		ID:              uuid.NewString(),
		DeviceID:        deviceID,
		DeviceFamily:    family,
		DeviceType:      deviceType,
		NomeDispositivo: strings.TrimSpace(input.NomeDispositivo),
		SSIDAp:          input.SSIDAp,
		SSIDPassword:    input.SSIDPassword,
		Chain2Active:    input.Chain2Active,
		FirmwareVersion: input.FirmwareVersion,
		DU:              input.DU,
		K1:              input.K1,
		K2:              input.K2,
		FIV:             input.FIV,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if input.DU != nil || input.K1 != nil || input.K2 != nil || input.FIV != nil {
		device.DataplateSyncedAt = &now
	}

	if err := s.devices.Create(ctx, device); err != nil {
		if errors.Is(err, repository.ErrDeviceExists) {
			return domain.Device{}, ErrDeviceExists
		}
		return domain.Device{}, err
	}

	assoc := domain.UserDevice{
		UserID:       userID,
		DeviceID:     device.ID,
		Role:         "owner",
		IsMeterOwner: true,
		AddedAt:      now,
	}
	if err := s.devices.AddToUser(ctx, assoc); err != nil {
		return domain.Device{}, err
	}

	return device, nil
}

type AddDeviceInput struct {
	DeviceID string
	Role     string
	Nickname *string
}

// AddDevice asocia un dispositivo ya registrado al usuario. Repetir la
// asociación actualiza rol y nickname en vez de fallar.
func (s *DeviceService) AddDevice(ctx context.Context, userID string, input AddDeviceInput) (domain.Device, error) {
	deviceID := strings.ToLower(strings.TrimSpace(input.DeviceID))
	if deviceID == "" {
		return domain.Device{}, &ValidationError{Field: "device_id", Message: "ID dispositivo obbligatorio"}
	}

	device, err := s.devices.GetByDeviceID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Device{}, ErrDeviceNotFound
		}
		return domain.Device{}, err
	}

	role := strings.ToLower(strings.TrimSpace(input.Role))
	if role == "" {
		role = "guest"
	}

	assoc := domain.UserDevice{
		UserID:   userID,
		DeviceID: device.ID,
		Role:     role,
		Nickname: input.Nickname,
		AddedAt:  s.now(),
	}
	if err := s.devices.AddToUser(ctx, assoc); err != nil {
		return domain.Device{}, err
	}

	return device, nil
}

// UserDevices lista los dispositivos del usuario con los metadatos de la
// asociación, favoritos primero.
func (s *DeviceService) UserDevices(ctx context.Context, userID string) ([]domain.UserDeviceView, error) {
	return s.devices.UserDevices(ctx, userID)
}

// DeviceDetails devuelve el dispositivo sólo si el usuario está asociado.
func (s *DeviceService) DeviceDetails(ctx context.Context, userID, deviceID string) (domain.Device, error) {
	device, err := s.findAssociated(ctx, userID, deviceID)
	if err != nil {
		return domain.Device{}, err
	}
	return device, nil
}

type DataplateInput struct {
	DU  *string
	K1  *string
	K2  *string
	FIV *string
}

// UpdateDataplate actualiza los campos de targa presentes y sella
// dataplate_synced_at.
func (s *DeviceService) UpdateDataplate(ctx context.Context, userID, deviceID string, input DataplateInput) (domain.Device, error) {
	device, err := s.findAssociated(ctx, userID, deviceID)
	if err != nil {
		return domain.Device{}, err
	}

	now := s.now()
	if err := s.devices.UpdateDataplate(ctx, device.ID, input.DU, input.K1, input.K2, input.FIV, now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Device{}, ErrDeviceNotFound
		}
		return domain.Device{}, err
	}

	// Los valores de targa se leen del dispositivo durante la sincronización:
	// el dispositivo estuvo en línea.
	if err := s.devices.UpdateLastSeen(ctx, device.DeviceID, now); err != nil {
		s.logger.Warn("update last seen failed", zap.Error(err), zap.String("device_id", device.ID))
	}

	return s.devices.GetByID(ctx, device.ID)
}

type MeterDataInput struct {
	DeviceID  string
	CF        string
	Nome      string
	Cognome   string
	Indirizzo string
	ZipCode   string
	Citta     string
	Provincia string
	POD       *string
	Email     string
	Telefono  *string
}

// SubmitMeterData registra la titolarità chain2 del contador: valida los
// campos, cifra el codice fiscale y reemplaza el registro activo.
func (s *DeviceService) SubmitMeterData(ctx context.Context, userID string, input MeterDataInput) (domain.MeterData, error) {
	device, err := s.findAssociated(ctx, userID, input.DeviceID)
	if err != nil {
		return domain.MeterData{}, err
	}

	if err := validateCodiceFiscale(input.CF); err != nil {
		return domain.MeterData{}, err
	}
	if err := validateLength(input.Nome, 2, 100, "Nome"); err != nil {
		return domain.MeterData{}, err
	}
	if err := validateLength(input.Cognome, 2, 100, "Cognome"); err != nil {
		return domain.MeterData{}, err
	}
	if err := validateLength(input.Indirizzo, 2, 200, "Indirizzo"); err != nil {
		return domain.MeterData{}, err
	}
	if err := validateZipCode(input.ZipCode); err != nil {
		return domain.MeterData{}, err
	}
	if err := validateLength(input.Citta, 2, 100, "Città"); err != nil {
		return domain.MeterData{}, err
	}
	if err := validateLength(input.Provincia, 2, 2, "Provincia"); err != nil {
		return domain.MeterData{}, err
	}
	if input.POD != nil {
		if err := validatePOD(*input.POD); err != nil {
			return domain.MeterData{}, err
		}
	}
	if !isValidEmail(input.Email) {
		return domain.MeterData{}, &ValidationError{Field: "email", Message: "Email non valida"}
	}

	encryptedCF, err := s.cipher.Encrypt(strings.ToUpper(strings.TrimSpace(input.CF)))
	if err != nil {
		return domain.MeterData{}, err
	}

	now := s.now()
	rec := domain.MeterData{
		ID:               uuid.NewString(),
		DeviceID:         device.ID,
		InsertedByUserID: &userID,
		CF:               encryptedCF,
		Nome:             strings.TrimSpace(input.Nome),
		Cognome:          strings.TrimSpace(input.Cognome),
		Indirizzo:        strings.TrimSpace(input.Indirizzo),
		ZipCode:          strings.TrimSpace(input.ZipCode),
		Citta:            strings.TrimSpace(input.Citta),
		Provincia:        strings.ToUpper(strings.TrimSpace(input.Provincia)),
		POD:              input.POD,
		Email:            normalizeEmail(input.Email),
		Telefono:         input.Telefono,
		IsActive:         true,
		ValidFrom:        now,
		CreatedAt:        now,
	}

	if err := s.meters.ReplaceActive(ctx, rec); err != nil {
		return domain.MeterData{}, err
	}

	rec.CF = strings.ToUpper(strings.TrimSpace(input.CF))
	return rec, nil
}

// ActiveMeterData devuelve el registro activo del dispositivo con el codice
// fiscale descifrado.
func (s *DeviceService) ActiveMeterData(ctx context.Context, userID, deviceID string) (domain.MeterData, error) {
	device, err := s.findAssociated(ctx, userID, deviceID)
	if err != nil {
		return domain.MeterData{}, err
	}

	rec, err := s.meters.GetActiveByDeviceID(ctx, device.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MeterData{}, ErrMeterDataNotFound
		}
		return domain.MeterData{}, err
	}

	plainCF, err := s.cipher.Decrypt(rec.CF)
	if err != nil {
		// El registro existe pero no se puede descifrar: clave rotada o dato corrupto.
		s.logger.Error("decrypt meter cf failed", zap.Error(err), zap.String("device_id", device.ID))
		return domain.MeterData{}, err
	}
	rec.CF = plainCF

	return rec, nil
}

// findAssociated resuelve el dispositivo por device_id externo y verifica la
// asociación con el usuario.
func (s *DeviceService) findAssociated(ctx context.Context, userID, deviceID string) (domain.Device, error) {
	deviceID = strings.ToLower(strings.TrimSpace(deviceID))
	if deviceID == "" {
		return domain.Device{}, &ValidationError{Field: "device_id", Message: "ID dispositivo obbligatorio"}
	}

	device, err := s.devices.GetByDeviceID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Device{}, ErrDeviceNotFound
		}
		return domain.Device{}, err
	}

	if _, err := s.devices.GetUserDevice(ctx, userID, device.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Device{}, ErrDeviceNotAssociated
		}
		return domain.Device{}, err
	}

	return device, nil
}
