// Package verify issues and checks one-time phone verification codes
// for the public join flow.
package verify

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nicoespa/MesaYa/internal/database"
	"github.com/nicoespa/MesaYa/internal/metrics"
	"github.com/nicoespa/MesaYa/internal/models"
	"github.com/nicoespa/MesaYa/internal/notify"
	"github.com/nicoespa/MesaYa/internal/phone"
	"github.com/nicoespa/MesaYa/internal/ratelimit"
)

// Throttling windows for code sends.
const (
	ipLimit     = 5
	ipWindow    = 15 * time.Minute
	phoneLimit  = 3
	phoneWindow = 5 * time.Minute

	codeTTL = 10 * time.Minute
)

// RateLimitedError tells the caller when to retry.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many verification requests, retry in %s", e.RetryAfter.Round(time.Second))
}

// Store persists verification records.
type Store interface {
	CreateVerification(ctx context.Context, v *models.PhoneVerification) error
	LatestMatchingVerification(ctx context.Context, normalizedPhone, code string, now time.Time) (*models.PhoneVerification, error)
	MarkVerified(ctx context.Context, id string) error
}

// CodeSender delivers the code over SMS. WhatsApp is never used for
// verification.
type CodeSender interface {
	SendVerificationCode(ctx context.Context, to, code string) (notify.ProviderReceipt, error)
}

// Service issues and confirms codes.
type Service struct {
	store   Store
	sender  CodeSender
	limiter ratelimit.Limiter
	region  string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService wires the verification flow.
func NewService(store Store, sender CodeSender, limiter ratelimit.Limiter, region string, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		sender:  sender,
		limiter: limiter,
		region:  region,
		logger:  logger.With().Str("component", "verify").Logger(),
		now:     time.Now,
	}
}

// SendCode generates a fresh code for the phone and delivers it by
// SMS. Returns the code validity in seconds. Throttled per caller IP
// and per phone; the phone key uses the raw input so limit probing
// cannot be dodged by reformatting after a denial.
func (s *Service) SendCode(ctx context.Context, clientIP, rawPhone string) (int, error) {
	if err := s.checkLimit(ctx, ratelimit.Key("verify_ip", clientIP), ipLimit, ipWindow); err != nil {
		return 0, err
	}
	if err := s.checkLimit(ctx, ratelimit.Key("verify_phone", rawPhone), phoneLimit, phoneWindow); err != nil {
		return 0, err
	}

	normalized, err := phone.Normalize(rawPhone, s.region)
	if err != nil {
		return 0, err
	}

	code, err := newCode()
	if err != nil {
		return 0, fmt.Errorf("generate code: %w", err)
	}

	now := s.now().UTC()
	record := &models.PhoneVerification{
		ID:        uuid.NewString(),
		Phone:     normalized,
		Code:      code,
		ExpiresAt: now.Add(codeTTL),
		CreatedAt: now,
	}
	if err := s.store.CreateVerification(ctx, record); err != nil {
		return 0, err
	}

	if _, err := s.sender.SendVerificationCode(ctx, normalized, code); err != nil {
		metrics.IncVerification("send_failed")
		return 0, fmt.Errorf("send verification code: %w", err)
	}

	metrics.IncVerification("sent")
	s.logger.Info().Str("phone", normalized).Msg("verification code sent")

	return int(codeTTL.Seconds()), nil
}

// ConfirmCode checks a submitted code. The phone is normalized the
// same way as on send, so formatting differences between the two
// requests never cause a mismatch. Returns false for a wrong, expired
// or already-used code.
func (s *Service) ConfirmCode(ctx context.Context, rawPhone, code string) (bool, error) {
	normalized, err := phone.Normalize(rawPhone, s.region)
	if err != nil {
		return false, err
	}

	record, err := s.store.LatestMatchingVerification(ctx, normalized, code, s.now().UTC())
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			metrics.IncVerification("rejected")
			return false, nil
		}
		return false, err
	}

	if err := s.store.MarkVerified(ctx, record.ID); err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			// Lost the race to another confirm with the same code.
			metrics.IncVerification("rejected")
			return false, nil
		}
		return false, err
	}

	metrics.IncVerification("confirmed")
	return true, nil
}

func (s *Service) checkLimit(ctx context.Context, key string, limit int, window time.Duration) error {
	result, err := s.limiter.Check(ctx, key, limit, window)
	if err != nil {
		// Fail open: a broken limiter backend must not block joins.
		s.logger.Error().Err(err).Str("key", key).Msg("rate limit check failed")
		return nil
	}
	if !result.Allowed {
		metrics.IncVerification("rate_limited")
		return &RateLimitedError{RetryAfter: result.Reset.Sub(s.now())}
	}
	return nil
}

// newCode returns a uniformly random 6-digit code, leading zeros
// included.
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
