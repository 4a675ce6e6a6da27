package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fraudshield/backend/internal/rbac"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "fraudshield"

type Claims struct {
	OfficerName string `json:"officer_name"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateJWT signs an officer token. expiration <= 0 means 12h.
func GenerateJWT(secret, officerName, role string, expiration time.Duration) (string, error) {
	officerName = strings.TrimSpace(officerName)
	if officerName == "" {
		return "", errors.New("officer name is required")
	}
	if !rbac.IsKnownRole(role) {
		return "", fmt.Errorf("unknown role %q", role)
	}
	if expiration <= 0 {
		expiration = 12 * time.Hour
	}

	now := time.Now()
	claims := Claims{
		OfficerName: officerName,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   officerName,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseJWT(secret string, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.OfficerName == "" || !rbac.IsKnownRole(claims.Role) {
		return nil, fmt.Errorf("token carries no officer role")
	}
	return claims, nil
}
