package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fraudshield/backend/internal/repositories"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeOTPStore struct {
	mu       sync.Mutex
	hashes   map[string][]byte
	ttls     map[string]time.Duration
	failures map[string]int64
}

func newFakeOTPStore() *fakeOTPStore {
	return &fakeOTPStore{
		hashes:   map[string][]byte{},
		ttls:     map[string]time.Duration{},
		failures: map[string]int64{},
	}
}

func (s *fakeOTPStore) Save(ctx context.Context, phone string, codeHash []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[phone] = codeHash
	s.ttls[phone] = ttl
	delete(s.failures, phone)
	return nil
}

func (s *fakeOTPStore) RecordFailure(ctx context.Context, phone string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[phone]++
	return s.failures[phone], nil
}

func (s *fakeOTPStore) Get(ctx context.Context, phone string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[phone]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return h, nil
}

func (s *fakeOTPStore) Delete(ctx context.Context, phone string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.hashes[phone]
	delete(s.hashes, phone)
	delete(s.failures, phone)
	return ok, nil
}

type fakeSender struct {
	codes map[string]string
	err   error
}

func (s *fakeSender) SendOTP(ctx context.Context, phone, code string) error {
	if s.err != nil {
		return s.err
	}
	s.codes[phone] = code
	return nil
}

func newOTP(store *fakeOTPStore, sender *fakeSender) *OTPService {
	s := NewOTPService(store, sender, 2*time.Minute, zap.NewNop())
	s.cost = bcrypt.MinCost
	return s
}

func TestOTPGenerateAndVerify(t *testing.T) {
	store := newFakeOTPStore()
	sender := &fakeSender{codes: map[string]string{}}
	svc := newOTP(store, sender)
	ctx := context.Background()

	if err := svc.Generate(ctx, "+91 98765-43210"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	code := sender.codes["+919876543210"]
	if len(code) != otpDigits {
		t.Fatalf("code %q is not %d digits", code, otpDigits)
	}
	if string(store.hashes["+919876543210"]) == code {
		t.Fatal("code stored in plaintext")
	}
	if store.ttls["+919876543210"] != 2*time.Minute {
		t.Errorf("ttl = %v", store.ttls["+919876543210"])
	}

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	ok, err := svc.Verify(ctx, "+919876543210", wrong)
	if err != nil || ok {
		t.Fatalf("wrong code: ok=%v err=%v", ok, err)
	}

	ok, err = svc.Verify(ctx, "+919876543210", code)
	if err != nil || !ok {
		t.Fatalf("right code: ok=%v err=%v", ok, err)
	}

	ok, err = svc.Verify(ctx, "+919876543210", code)
	if err != nil || ok {
		t.Fatalf("code must be single-use: ok=%v err=%v", ok, err)
	}
}

func TestOTPBurnedAfterRepeatedWrongGuesses(t *testing.T) {
	store := newFakeOTPStore()
	sender := &fakeSender{codes: map[string]string{}}
	svc := newOTP(store, sender)
	ctx := context.Background()
	const phone = "9876543210"

	if err := svc.Generate(ctx, phone); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	code := sender.codes[phone]
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 1; i < maxOTPAttempts; i++ {
		if ok, err := svc.Verify(ctx, phone, wrong); ok || err != nil {
			t.Fatalf("guess %d: ok=%v err=%v", i, ok, err)
		}
		if _, live := store.hashes[phone]; !live {
			t.Fatalf("code burned after %d guesses, want %d", i, maxOTPAttempts)
		}
	}
	if ok, err := svc.Verify(ctx, phone, wrong); ok || err != nil {
		t.Fatalf("last guess: ok=%v err=%v", ok, err)
	}
	if _, live := store.hashes[phone]; live {
		t.Fatal("code still live after max wrong guesses")
	}

	ok, err := svc.Verify(ctx, phone, code)
	if err != nil || ok {
		t.Errorf("right code after burn: ok=%v err=%v, want rejected", ok, err)
	}

	// A fresh code starts a fresh count.
	if err := svc.Generate(ctx, phone); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if store.failures[phone] != 0 {
		t.Errorf("failures = %d after new code, want 0", store.failures[phone])
	}
	if ok, err := svc.Verify(ctx, phone, sender.codes[phone]); err != nil || !ok {
		t.Errorf("new code: ok=%v err=%v", ok, err)
	}
}

func TestOTPValidation(t *testing.T) {
	svc := newOTP(newFakeOTPStore(), &fakeSender{codes: map[string]string{}})
	var verr *ValidationError

	if err := svc.Generate(context.Background(), "12ab"); !errors.As(err, &verr) {
		t.Errorf("bad phone: expected ValidationError, got %v", err)
	}
	if _, err := svc.Verify(context.Background(), "9876543210", "12"); !errors.As(err, &verr) {
		t.Errorf("bad code: expected ValidationError, got %v", err)
	}
}

func TestOTPDeliveryFailureDiscardsCode(t *testing.T) {
	store := newFakeOTPStore()
	svc := newOTP(store, &fakeSender{err: errors.New("gateway down")})

	if err := svc.Generate(context.Background(), "9876543210"); err == nil {
		t.Fatal("expected delivery error")
	}
	if _, ok := store.hashes["9876543210"]; ok {
		t.Error("undelivered code left in store")
	}
}

func TestRandomCodeIsZeroPadded(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := randomCode(otpDigits)
		if err != nil {
			t.Fatalf("randomCode: %v", err)
		}
		if !codePattern.MatchString(code) {
			t.Fatalf("code %q does not match %s", code, codePattern)
		}
	}
}
