package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"gefarm-api/internal/domain"
	"gefarm-api/internal/repository"
)

type mockUserRepo struct {
	usersByID    map[string]domain.User
	usersByEmail map[string]string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	key := strings.ToLower(user.Email)
	if _, taken := m.usersByEmail[key]; taken {
		return repository.ErrEmailTaken
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[key] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	id, ok := m.usersByEmail[strings.ToLower(email)]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(context.Background(), id)
}

func (m *mockUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.LastLogin = &at
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id string, upd repository.ProfileUpdate) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if upd.Nome != nil {
		user.Nome = *upd.Nome
	}
	if upd.Cognome != nil {
		user.Cognome = *upd.Cognome
	}
	if upd.AvatarPath != nil {
		user.AvatarPath = upd.AvatarPath
	}
	if upd.AvatarColor != nil {
		user.AvatarColor = *upd.AvatarColor
	}
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id string, passwordHash string) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	m.usersByID[id] = user
	return nil
}

// mockCodeRepo replica la semántica del upsert con cooldown y del consumo
// transaccional sobre mapas en memoria.
type mockCodeRepo struct {
	users *mockUserRepo
	codes map[string]domain.OneTimeCode
}

func newMockCodeRepo(users *mockUserRepo) *mockCodeRepo {
	return &mockCodeRepo{users: users, codes: make(map[string]domain.OneTimeCode)}
}

func codeKey(userID string, purpose domain.CodePurpose) string {
	return userID + "|" + string(purpose)
}

func (m *mockCodeRepo) Upsert(_ context.Context, code domain.OneTimeCode, cooldown time.Duration) (bool, error) {
	key := codeKey(code.UserID, code.Purpose)
	if prev, ok := m.codes[key]; ok && code.IssuedAt.Before(prev.IssuedAt.Add(cooldown)) {
		return false, nil
	}
	m.codes[key] = code
	return true, nil
}

func (m *mockCodeRepo) Get(_ context.Context, userID string, purpose domain.CodePurpose) (domain.OneTimeCode, error) {
	code, ok := m.codes[codeKey(userID, purpose)]
	if !ok {
		return domain.OneTimeCode{}, pgx.ErrNoRows
	}
	return code, nil
}

func (m *mockCodeRepo) consume(userID string, purpose domain.CodePurpose, candidate string, now time.Time) error {
	key := codeKey(userID, purpose)
	code, ok := m.codes[key]
	if !ok || code.Used || code.Code != candidate || !now.Before(code.ExpiresAt) {
		return pgx.ErrNoRows
	}
	code.Used = true
	m.codes[key] = code
	return nil
}

func (m *mockCodeRepo) ConsumeAndVerifyEmail(_ context.Context, userID, code string, now time.Time) error {
	if err := m.consume(userID, domain.PurposeVerify, code, now); err != nil {
		return err
	}
	user, ok := m.users.usersByID[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.EmailVerified = true
	m.users.usersByID[userID] = user
	return nil
}

func (m *mockCodeRepo) ConsumeAndUpdatePassword(_ context.Context, userID, code, passwordHash string, now time.Time) error {
	if err := m.consume(userID, domain.PurposeReset, code, now); err != nil {
		return err
	}
	user, ok := m.users.usersByID[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	m.users.usersByID[userID] = user
	return nil
}

type mockEmailSender struct {
	verifyTo      string
	verifyCode    string
	verifyExpires time.Time
	resetTo       string
	resetCode     string
	changedTo     string
	verifyErr     error
	resetErr      error
}

func (m *mockEmailSender) SendVerificationCode(_ context.Context, to, _ string, code string, expiresAt time.Time) error {
	m.verifyTo = to
	m.verifyCode = code
	m.verifyExpires = expiresAt
	return m.verifyErr
}

func (m *mockEmailSender) SendPasswordResetCode(_ context.Context, to, _ string, code string, _ time.Time) error {
	m.resetTo = to
	m.resetCode = code
	return m.resetErr
}

func (m *mockEmailSender) SendPasswordChanged(_ context.Context, to, _ string) error {
	m.changedTo = to
	return nil
}

type mockLimiter struct {
	allow bool
}

func (m *mockLimiter) Allow(_ string) bool {
	return m.allow
}

type accountFixture struct {
	users  *mockUserRepo
	codes  *mockCodeRepo
	sender *mockEmailSender
	svc    *AccountService
}

func newAccountFixture(limiter RequestRateLimiter) *accountFixture {
	users := newMockUserRepo()
	codes := newMockCodeRepo(users)
	sender := &mockEmailSender{}
	codeSvc := NewCodeService(codes, 6)
	hasher := NewPasswordHasher(bcrypt.MinCost)
	svc := NewAccountService(zap.NewNop(), users, codes, codeSvc, hasher, sender, limiter, AccountTiming{})
	return &accountFixture{users: users, codes: codes, sender: sender, svc: svc}
}

func TestAccountRegister_Success(t *testing.T) {
	f := newAccountFixture(nil)

	user, err := f.svc.Register(context.Background(), RegisterInput{
		Email:    "mario@example.com",
		Password: "Password1",
		Nome:     "Mario",
		Cognome:  "Rossi",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID == "" || user.EmailVerified {
		t.Fatalf("expected unverified user with id, got %+v", user)
	}
	if user.AvatarColor == "" {
		t.Fatalf("expected default avatar color")
	}
	if f.sender.verifyTo != "mario@example.com" || len(f.sender.verifyCode) != 6 {
		t.Fatalf("expected 6-digit verification code sent, got %q to %q", f.sender.verifyCode, f.sender.verifyTo)
	}
	if f.sender.verifyExpires.Before(time.Now().UTC().Add(23 * time.Hour)) {
		t.Fatalf("expected verify code expiry around 24h, got %v", f.sender.verifyExpires)
	}
}

func TestAccountRegister_EmailTaken(t *testing.T) {
	f := newAccountFixture(nil)

	input := RegisterInput{Email: "mario@example.com", Password: "Password1", Nome: "Mario", Cognome: "Rossi"}
	if _, err := f.svc.Register(context.Background(), input); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	_, err := f.svc.Register(context.Background(), input)
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAccountRegister_EmailSendFailureDoesNotAbort(t *testing.T) {
	f := newAccountFixture(nil)
	f.sender.verifyErr = errors.New("smtp down")

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Email: "mario@example.com", Password: "Password1", Nome: "Mario", Cognome: "Rossi",
	})
	if err != nil {
		t.Fatalf("expected register to succeed despite smtp failure, got %v", err)
	}
}

func TestAccountRegister_WeakPassword(t *testing.T) {
	f := newAccountFixture(nil)

	cases := []string{"corta1A", "tuttaminuscola1", "TUTTAMAIUSCOLA1", "SenzaNumeri"}
	for _, password := range cases {
		_, err := f.svc.Register(context.Background(), RegisterInput{
			Email: "mario@example.com", Password: password, Nome: "Mario", Cognome: "Rossi",
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.Field != "password" {
			t.Fatalf("password %q: expected password ValidationError, got %v", password, err)
		}
	}
}

func registerVerified(t *testing.T, f *accountFixture, email, password string) domain.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), RegisterInput{
		Email: email, Password: password, Nome: "Mario", Cognome: "Rossi",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	verified, err := f.svc.VerifyEmail(context.Background(), email, f.sender.verifyCode)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !verified.EmailVerified {
		t.Fatalf("expected verified user")
	}
	return user
}

func TestAccountLogin_Success(t *testing.T) {
	f := newAccountFixture(nil)
	registerVerified(t, f, "mario@example.com", "Password1")

	user, err := f.svc.Login(context.Background(), "Mario@Example.com", "Password1")
	if err != nil {
		t.Fatalf("expected login success, got %v", err)
	}
	if user.LastLogin == nil {
		t.Fatalf("expected last login stamped")
	}
}

func TestAccountLogin_GenericErrorForUnknownAndWrongPassword(t *testing.T) {
	f := newAccountFixture(nil)
	registerVerified(t, f, "mario@example.com", "Password1")

	// Mismo error para email desconocido y password incorrecta.
	_, errUnknown := f.svc.Login(context.Background(), "nessuno@example.com", "Password1")
	_, errWrongPass := f.svc.Login(context.Background(), "mario@example.com", "Sbagliata1")
	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrongPass, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", errUnknown, errWrongPass)
	}
}

func TestAccountLogin_UnverifiedOnlyAfterPasswordCheck(t *testing.T) {
	f := newAccountFixture(nil)
	if _, err := f.svc.Register(context.Background(), RegisterInput{
		Email: "mario@example.com", Password: "Password1", Nome: "Mario", Cognome: "Rossi",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// Password incorrecta sobre cuenta sin verificar: genérico, no 403.
	_, err := f.svc.Login(context.Background(), "mario@example.com", "Sbagliata1")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	_, err = f.svc.Login(context.Background(), "mario@example.com", "Password1")
	if !errors.Is(err, ErrNotVerified) {
		t.Fatalf("expected ErrNotVerified, got %v", err)
	}
}

func TestAccountVerifyEmail_WrongCode(t *testing.T) {
	f := newAccountFixture(nil)
	if _, err := f.svc.Register(context.Background(), RegisterInput{
		Email: "mario@example.com", Password: "Password1", Nome: "Mario", Cognome: "Rossi",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	wrong := "000000"
	if wrong == f.sender.verifyCode {
		wrong = "000001"
	}
	_, err := f.svc.VerifyEmail(context.Background(), "mario@example.com", wrong)
	if !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected ErrCodeMismatch, got %v", err)
	}
}

func TestAccountVerifyEmail_BadFormatAndUnknownUser(t *testing.T) {
	f := newAccountFixture(nil)

	var vErr *ValidationError
	_, err := f.svc.VerifyEmail(context.Background(), "mario@example.com", "12345")
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for short code, got %v", err)
	}
	_, err = f.svc.VerifyEmail(context.Background(), "mario@example.com", "abc123")
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for non-numeric code, got %v", err)
	}
	_, err = f.svc.VerifyEmail(context.Background(), "nessuno@example.com", "123456")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAccountVerifyEmail_AlreadyVerified(t *testing.T) {
	f := newAccountFixture(nil)
	registerVerified(t, f, "mario@example.com", "Password1")

	_, err := f.svc.VerifyEmail(context.Background(), "mario@example.com", f.sender.verifyCode)
	if !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
}

func TestAccountVerifyEmail_ExpiredCode(t *testing.T) {
	f := newAccountFixture(nil)
	if _, err := f.svc.Register(context.Background(), RegisterInput{
		Email: "mario@example.com", Password: "Password1", Nome: "Mario", Cognome: "Rossi",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// Avanza el reloj del servicio de códigos más allá del TTL de verificación.
	f.svc.codeSvc.now = func() time.Time { return time.Now().UTC().Add(25 * time.Hour) }

	_, err := f.svc.VerifyEmail(context.Background(), "mario@example.com", f.sender.verifyCode)
	if !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
}

func TestAccountResendVerification_CooldownAndLimiter(t *testing.T) {
	f := newAccountFixture(nil)
	if _, err := f.svc.Register(context.Background(), RegisterInput{
		Email: "mario@example.com", Password: "Password1", Nome: "Mario", Cognome: "Rossi",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// Dentro del cooldown persistido de 2 minutos.
	_, err := f.svc.ResendVerification(context.Background(), "mario@example.com")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited within cooldown, got %v", err)
	}
	var rlErr *RateLimitedError
	if !errors.As(err, &rlErr) || rlErr.RetryAfter <= 0 {
		t.Fatalf("expected RetryAfter > 0, got %v", err)
	}

	// Cooldown vencido: nuevo código.
	f.svc.codeSvc.now = func() time.Time { return time.Now().UTC().Add(3 * time.Minute) }
	code, err := f.svc.ResendVerification(context.Background(), "mario@example.com")
	if err != nil {
		t.Fatalf("expected resend success after cooldown, got %v", err)
	}
	if code.ExpiresAt.IsZero() || f.sender.verifyCode != code.Code {
		t.Fatalf("expected new code sent")
	}
}

func TestAccountResendVerification_LimiterDenies(t *testing.T) {
	f := newAccountFixture(&mockLimiter{allow: false})
	if _, err := f.svc.Register(context.Background(), RegisterInput{
		Email: "mario@example.com", Password: "Password1", Nome: "Mario", Cognome: "Rossi",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, err := f.svc.ResendVerification(context.Background(), "mario@example.com")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited from limiter, got %v", err)
	}
}

func TestAccountResendVerification_EmailSendFailure(t *testing.T) {
	f := newAccountFixture(nil)
	if _, err := f.svc.Register(context.Background(), RegisterInput{
		Email: "mario@example.com", Password: "Password1", Nome: "Mario", Cognome: "Rossi",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	f.svc.codeSvc.now = func() time.Time { return time.Now().UTC().Add(3 * time.Minute) }
	f.sender.verifyErr = errors.New("smtp down")

	_, err := f.svc.ResendVerification(context.Background(), "mario@example.com")
	if !errors.Is(err, ErrEmailSendFailure) {
		t.Fatalf("expected ErrEmailSendFailure, got %v", err)
	}
}

func TestAccountRequestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	f := newAccountFixture(nil)

	if err := f.svc.RequestPasswordReset(context.Background(), "nessuno@example.com"); err != nil {
		t.Fatalf("expected silent success for unknown email, got %v", err)
	}
	if f.sender.resetTo != "" {
		t.Fatalf("expected no reset email for unknown account")
	}
}

func TestAccountRequestPasswordReset_SendFailureIsSilent(t *testing.T) {
	f := newAccountFixture(nil)
	registerVerified(t, f, "mario@example.com", "Password1")
	f.sender.resetErr = errors.New("smtp down")

	if err := f.svc.RequestPasswordReset(context.Background(), "mario@example.com"); err != nil {
		t.Fatalf("expected silent success despite smtp failure, got %v", err)
	}
}

func TestAccountPasswordReset_FullFlow(t *testing.T) {
	f := newAccountFixture(nil)
	registerVerified(t, f, "mario@example.com", "Password1")

	if err := f.svc.RequestPasswordReset(context.Background(), "mario@example.com"); err != nil {
		t.Fatalf("request reset failed: %v", err)
	}
	if len(f.sender.resetCode) != 6 {
		t.Fatalf("expected 6-digit reset code, got %q", f.sender.resetCode)
	}

	err := f.svc.ConfirmPasswordReset(context.Background(), "mario@example.com", f.sender.resetCode, "NuovaPassword1")
	if err != nil {
		t.Fatalf("confirm reset failed: %v", err)
	}
	if f.sender.changedTo != "mario@example.com" {
		t.Fatalf("expected password changed notice")
	}

	if _, err := f.svc.Login(context.Background(), "mario@example.com", "Password1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, err := f.svc.Login(context.Background(), "mario@example.com", "NuovaPassword1"); err != nil {
		t.Fatalf("expected login with new password, got %v", err)
	}

	// El código es de un solo uso.
	err = f.svc.ConfirmPasswordReset(context.Background(), "mario@example.com", f.sender.resetCode, "AltraPassword1")
	if !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound on reuse, got %v", err)
	}
}

func TestAccountUpdateProfile_PartialFields(t *testing.T) {
	f := newAccountFixture(nil)
	user := registerVerified(t, f, "mario@example.com", "Password1")

	nome := "Luigi"
	updated, err := f.svc.UpdateProfile(context.Background(), user.ID, ProfileUpdateInput{Nome: &nome})
	if err != nil {
		t.Fatalf("update profile failed: %v", err)
	}
	if updated.Nome != "Luigi" || updated.Cognome != "Rossi" {
		t.Fatalf("expected only nome changed, got %+v", updated)
	}
}

func TestAccountChangePassword_RequiresCurrent(t *testing.T) {
	f := newAccountFixture(nil)
	user := registerVerified(t, f, "mario@example.com", "Password1")

	err := f.svc.ChangePassword(context.Background(), user.ID, "Sbagliata1", "NuovaPassword1")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if err := f.svc.ChangePassword(context.Background(), user.ID, "Password1", "NuovaPassword1"); err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	if _, err := f.svc.Login(context.Background(), "mario@example.com", "NuovaPassword1"); err != nil {
		t.Fatalf("expected login with new password, got %v", err)
	}
}
