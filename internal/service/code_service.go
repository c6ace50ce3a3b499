package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"

	"gefarm-api/internal/domain"
	"gefarm-api/internal/repository"
)

// CodeService emite y valida los códigos numéricos de un solo uso.
// El consumo atómico (used=true + mutación de usuario) queda en el
// repositorio; aquí vive la generación, el cooldown y la comparación.
type CodeService struct {
	codes  repository.CodeRepository
	length int
	now    func() time.Time
}

func NewCodeService(codes repository.CodeRepository, length int) *CodeService {
	if length <= 0 {
		length = 6
	}
	return &CodeService{
		codes:  codes,
		length: length,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue genera un código aleatorio uniforme de N dígitos y reemplaza el
// anterior para (user, purpose). Si el anterior fue emitido hace menos de
// cooldown devuelve RateLimitedError con el tiempo de espera restante y deja
// el código existente intacto.
func (s *CodeService) Issue(ctx context.Context, userID string, purpose domain.CodePurpose, ttl, cooldown time.Duration) (domain.OneTimeCode, error) {
	value, err := s.generate()
	if err != nil {
		return domain.OneTimeCode{}, err
	}

	now := s.now()
	code := domain.OneTimeCode{
		UserID:    userID,
		Purpose:   purpose,
		Code:      value,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	stored, err := s.codes.Upsert(ctx, code, cooldown)
	if err != nil {
		return domain.OneTimeCode{}, err
	}
	if !stored {
		prev, err := s.codes.Get(ctx, userID, purpose)
		if err != nil {
			return domain.OneTimeCode{}, err
		}
		retry := prev.IssuedAt.Add(cooldown).Sub(now)
		if retry < 0 {
			retry = 0
		}
		return domain.OneTimeCode{}, &RateLimitedError{RetryAfter: retry}
	}

	return code, nil
}

// Check valida el candidato contra el código almacenado sin consumirlo.
// El consumo real se hace junto con la mutación dependiente, re-verificando
// las mismas condiciones dentro de la transacción.
func (s *CodeService) Check(ctx context.Context, userID string, purpose domain.CodePurpose, candidate string) error {
	code, err := s.codes.Get(ctx, userID, purpose)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCodeNotFound
		}
		return err
	}

	if code.Used {
		return ErrCodeNotFound
	}
	if !s.now().Before(code.ExpiresAt) {
		return ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(code.Code), []byte(candidate)) != 1 {
		return ErrCodeMismatch
	}
	return nil
}

// Length devuelve la cantidad de dígitos configurada.
func (s *CodeService) Length() int {
	return s.length
}

func (s *CodeService) generate() (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(s.length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", s.length, n), nil
}
