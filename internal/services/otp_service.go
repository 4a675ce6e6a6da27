package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/fraudshield/backend/internal/repositories"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	otpDigits = 6
	// maxOTPAttempts wrong guesses burn the outstanding code.
	maxOTPAttempts = 5
)

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)
	codePattern  = regexp.MustCompile(`^[0-9]{6}$`)
)

type OTPStore interface {
	Save(ctx context.Context, phone string, codeHash []byte, ttl time.Duration) error
	Get(ctx context.Context, phone string) ([]byte, error)
	// RecordFailure counts a wrong guess and returns the total so far.
	RecordFailure(ctx context.Context, phone string, ttl time.Duration) (int64, error)
	// Delete reports whether a code was actually removed.
	Delete(ctx context.Context, phone string) (bool, error)
}

type OTPSender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// OTPService issues single-use numeric codes. Only a bcrypt hash of the code
// is stored, and it expires after ttl.
type OTPService struct {
	store  OTPStore
	sender OTPSender
	ttl    time.Duration
	cost   int
	log    *zap.Logger
}

func NewOTPService(store OTPStore, sender OTPSender, ttl time.Duration, log *zap.Logger) *OTPService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &OTPService{store: store, sender: sender, ttl: ttl, cost: bcrypt.DefaultCost, log: log}
}

func normalizePhone(phone string) (string, error) {
	p := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))
	if !phonePattern.MatchString(p) {
		return "", invalid("phone", "must be 8 to 15 digits")
	}
	return p, nil
}

func (s *OTPService) Generate(ctx context.Context, phone string) error {
	p, err := normalizePhone(phone)
	if err != nil {
		return err
	}

	code, err := randomCode(otpDigits)
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}

	if err := s.store.Save(ctx, p, hash, s.ttl); err != nil {
		return err
	}
	if err := s.sender.SendOTP(ctx, p, code); err != nil {
		_, _ = s.store.Delete(ctx, p)
		return fmt.Errorf("deliver otp: %w", err)
	}

	s.log.Info("otp issued", zap.Duration("ttl", s.ttl))
	return nil
}

// Verify reports whether code matches the outstanding code for phone. A
// matching code is consumed, and so is one that has seen maxOTPAttempts
// wrong guesses.
func (s *OTPService) Verify(ctx context.Context, phone, code string) (bool, error) {
	p, err := normalizePhone(phone)
	if err != nil {
		return false, err
	}
	code = strings.TrimSpace(code)
	if !codePattern.MatchString(code) {
		return false, invalid("code", "must be %d digits", otpDigits)
	}

	hash, err := s.store.Get(ctx, p)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if bcrypt.CompareHashAndPassword(hash, []byte(code)) != nil {
		return false, s.recordFailure(ctx, p)
	}
	// A concurrent Verify may have consumed the code first.
	return s.store.Delete(ctx, p)
}

func (s *OTPService) recordFailure(ctx context.Context, phone string) error {
	n, err := s.store.RecordFailure(ctx, phone, s.ttl)
	if err != nil {
		return err
	}
	if n < maxOTPAttempts {
		return nil
	}
	if _, err := s.store.Delete(ctx, phone); err != nil {
		return err
	}
	s.log.Warn("otp burned after failed attempts", zap.Int64("attempts", n))
	return nil
}

func randomCode(digits int) (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < digits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}
