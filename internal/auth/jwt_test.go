package auth

import (
	"testing"
	"time"

	"github.com/fraudshield/backend/internal/rbac"
	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParseJWT(t *testing.T) {
	token, err := GenerateJWT("secret", "officer.rao", rbac.RoleSeniorOfficer, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	claims, err := ParseJWT("secret", token)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.OfficerName != "officer.rao" || claims.Role != rbac.RoleSeniorOfficer {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseJWTRejects(t *testing.T) {
	good, _ := GenerateJWT("secret", "officer.rao", rbac.RoleSupervisor, time.Hour)
	expired, _ := GenerateJWT("secret", "officer.rao", rbac.RoleSupervisor, time.Nanosecond)
	time.Sleep(time.Millisecond)

	noRole := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		OfficerName:      "ghost",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer},
	})
	noRoleStr, _ := noRole.SignedString([]byte("secret"))

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", good},
		{"expired", "secret", expired},
		{"garbage", "secret", "not.a.jwt"},
		{"missing role", "secret", noRoleStr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseJWT(tt.secret, tt.token); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGenerateJWTValidatesInput(t *testing.T) {
	if _, err := GenerateJWT("secret", "", rbac.RoleSupervisor, time.Hour); err == nil {
		t.Error("empty officer name accepted")
	}
	if _, err := GenerateJWT("secret", "a", "JANITOR", time.Hour); err == nil {
		t.Error("unknown role accepted")
	}
}
