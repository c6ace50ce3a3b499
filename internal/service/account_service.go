package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"gefarm-api/internal/domain"
	"gefarm-api/internal/email"
	"gefarm-api/internal/repository"
)

const defaultAvatarColor = "#00853d"

// AccountTiming agrupa TTLs y cooldowns de los códigos de cuenta.
type AccountTiming struct {
	VerifyTTL      time.Duration
	ResetTTL       time.Duration
	VerifyCooldown time.Duration
	ResetCooldown  time.Duration
}

func (t AccountTiming) withDefaults() AccountTiming {
	if t.VerifyTTL <= 0 {
		t.VerifyTTL = 24 * time.Hour
	}
	if t.ResetTTL <= 0 {
		t.ResetTTL = time.Hour
	}
	if t.VerifyCooldown <= 0 {
		t.VerifyCooldown = 2 * time.Minute
	}
	if t.ResetCooldown <= 0 {
		t.ResetCooldown = 5 * time.Minute
	}
	return t
}

// AccountService orquesta el ciclo de vida de la cuenta: registro,
// verificación de email, login y reset de password.
type AccountService struct {
	logger  *zap.Logger
	users   repository.UserRepository
	codes   repository.CodeRepository
	codeSvc *CodeService
	hasher  *PasswordHasher
	sender  email.Sender
	limiter RequestRateLimiter
	timing  AccountTiming
	now     func() time.Time
}

func NewAccountService(
	logger *zap.Logger,
	users repository.UserRepository,
	codes repository.CodeRepository,
	codeSvc *CodeService,
	hasher *PasswordHasher,
	sender email.Sender,
	limiter RequestRateLimiter,
	timing AccountTiming,
) *AccountService {
	return &AccountService{
		logger:  logger,
		users:   users,
		codes:   codes,
		codeSvc: codeSvc,
		hasher:  hasher,
		sender:  sender,
		limiter: limiter,
		timing:  timing.withDefaults(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	Nome        string
	Cognome     string
	AvatarColor string
}

// Register crea el usuario sin verificar, emite el código de verificación y
// lo envía por email. El fallo de envío no aborta el registro: el usuario
// puede pedir el reenvío.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	emailAddr := strings.TrimSpace(input.Email)
	if !isValidEmail(emailAddr) {
		return domain.User{}, &ValidationError{Field: "email", Message: "Email non valida"}
	}
	if err := validatePassword(input.Password); err != nil {
		return domain.User{}, err
	}
	if err := validateLength(input.Nome, 2, 100, "Nome"); err != nil {
		return domain.User{}, err
	}
	if err := validateLength(input.Cognome, 2, 100, "Cognome"); err != nil {
		return domain.User{}, err
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.User{}, err
	}

	avatarColor := strings.TrimSpace(input.AvatarColor)
	if avatarColor == "" {
		avatarColor = defaultAvatarColor
	}

	now := s.now()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		Nome:         strings.TrimSpace(input.Nome),
		Cognome:      strings.TrimSpace(input.Cognome),
		AvatarColor:  avatarColor,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}

	code, err := s.codeSvc.Issue(ctx, user.ID, domain.PurposeVerify, s.timing.VerifyTTL, s.timing.VerifyCooldown)
	if err != nil {
		return domain.User{}, err
	}

	if err := s.sender.SendVerificationCode(ctx, user.Email, user.Nome, code.Code, code.ExpiresAt); err != nil {
		s.logger.Warn("send verification code failed",
			zap.Error(err), zap.String("user_id", user.ID))
	}

	return user, nil
}

// Login responde con el mismo error genérico tanto para email desconocido
// como para password incorrecta; sólo distingue la cuenta sin verificar.
func (s *AccountService) Login(ctx context.Context, emailAddr, password string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	password = strings.TrimSpace(password)
	if emailAddr == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return domain.User{}, ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return domain.User{}, ErrNotVerified
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("update last login failed", zap.Error(err), zap.String("user_id", user.ID))
	} else {
		user.LastLogin = &now
	}

	return user, nil
}

// VerifyEmail consume el código de verificación y marca el usuario como
// verificado en una sola transacción.
func (s *AccountService) VerifyEmail(ctx context.Context, emailAddr, code string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	code = strings.TrimSpace(code)
	if !isNumericCode(code, s.codeSvc.Length()) {
		return domain.User{}, &ValidationError{
			Field:   "token",
			Message: fmt.Sprintf("Il codice di verifica deve essere un numero a %d cifre", s.codeSvc.Length()),
		}
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	if user.EmailVerified {
		return domain.User{}, ErrAlreadyVerified
	}

	if err := s.codeSvc.Check(ctx, user.ID, domain.PurposeVerify, code); err != nil {
		return domain.User{}, err
	}

	if err := s.codes.ConsumeAndVerifyEmail(ctx, user.ID, code, s.now()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Consumido por una petición concurrente entre Check y el UPDATE.
			return domain.User{}, ErrCodeNotFound
		}
		return domain.User{}, err
	}

	return s.users.GetByID(ctx, user.ID)
}

// ResendVerification emite un nuevo código de verificación respetando el
// cooldown y lo envía por email.
func (s *AccountService) ResendVerification(ctx context.Context, emailAddr string) (domain.OneTimeCode, error) {
	emailAddr = normalizeEmail(emailAddr)
	if !isValidEmail(emailAddr) {
		return domain.OneTimeCode{}, &ValidationError{Field: "email", Message: "Email non valida"}
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OneTimeCode{}, ErrUserNotFound
		}
		return domain.OneTimeCode{}, err
	}
	if user.EmailVerified {
		return domain.OneTimeCode{}, ErrAlreadyVerified
	}

	if s.limiter != nil && !s.limiter.Allow(emailAddr) {
		return domain.OneTimeCode{}, &RateLimitedError{}
	}

	code, err := s.codeSvc.Issue(ctx, user.ID, domain.PurposeVerify, s.timing.VerifyTTL, s.timing.VerifyCooldown)
	if err != nil {
		return domain.OneTimeCode{}, err
	}

	if err := s.sender.SendVerificationCode(ctx, user.Email, user.Nome, code.Code, code.ExpiresAt); err != nil {
		s.logger.Error("send verification code failed",
			zap.Error(err), zap.String("user_id", user.ID))
		return domain.OneTimeCode{}, ErrEmailSendFailure
	}

	return code, nil
}

// RequestPasswordReset responde igual exista o no el usuario: cualquier
// diferencia observable permitiría enumerar cuentas registradas. El único
// error visible con usuario existente es el rate limit.
func (s *AccountService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if !isValidEmail(emailAddr) {
		return &ValidationError{Field: "email", Message: "Email non valida"}
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	if s.limiter != nil && !s.limiter.Allow(emailAddr) {
		return &RateLimitedError{}
	}

	code, err := s.codeSvc.Issue(ctx, user.ID, domain.PurposeReset, s.timing.ResetTTL, s.timing.ResetCooldown)
	if err != nil {
		return err
	}

	if err := s.sender.SendPasswordResetCode(ctx, user.Email, user.Nome, code.Code, code.ExpiresAt); err != nil {
		// Se registra pero no se propaga: un 500 aquí delataría que el email existe.
		s.logger.Error("send password reset code failed",
			zap.Error(err), zap.String("user_id", user.ID))
	}

	return nil
}

// ConfirmPasswordReset consume el código de reset y reemplaza el hash de
// password en una sola transacción.
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, emailAddr, code, newPassword string) error {
	emailAddr = normalizeEmail(emailAddr)
	code = strings.TrimSpace(code)
	if !isNumericCode(code, s.codeSvc.Length()) {
		return &ValidationError{
			Field:   "token",
			Message: fmt.Sprintf("Il codice deve essere un numero a %d cifre", s.codeSvc.Length()),
		}
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.codeSvc.Check(ctx, user.ID, domain.PurposeReset, code); err != nil {
		return err
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.codes.ConsumeAndUpdatePassword(ctx, user.ID, code, passwordHash, s.now()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCodeNotFound
		}
		return err
	}

	if err := s.sender.SendPasswordChanged(ctx, user.Email, user.Nome); err != nil {
		s.logger.Warn("send password changed notice failed",
			zap.Error(err), zap.String("user_id", user.ID))
	}

	return nil
}

// Profile devuelve el usuario autenticado.
func (s *AccountService) Profile(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

type ProfileUpdateInput struct {
	Nome        *string
	Cognome     *string
	AvatarPath  *string
	AvatarColor *string
}

// UpdateProfile modifica sólo los campos presentes.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, input ProfileUpdateInput) (domain.User, error) {
	if input.Nome != nil {
		if err := validateLength(*input.Nome, 2, 100, "Nome"); err != nil {
			return domain.User{}, err
		}
	}
	if input.Cognome != nil {
		if err := validateLength(*input.Cognome, 2, 100, "Cognome"); err != nil {
			return domain.User{}, err
		}
	}

	upd := repository.ProfileUpdate{
		Nome:        input.Nome,
		Cognome:     input.Cognome,
		AvatarPath:  input.AvatarPath,
		AvatarColor: input.AvatarColor,
	}
	if err := s.users.UpdateProfile(ctx, userID, upd); err != nil {
		return domain.User{}, err
	}
	return s.Profile(ctx, userID)
}

// ChangePassword reemplaza la password verificando antes la actual.
func (s *AccountService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, passwordHash)
}
