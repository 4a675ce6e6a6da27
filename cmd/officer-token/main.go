// Command officer-token mints a signed officer JWT for local use and ops.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fraudshield/backend/internal/auth"
	"github.com/fraudshield/backend/internal/config"
	"github.com/fraudshield/backend/internal/rbac"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	name := flag.String("name", "", "officer name recorded as the audit actor")
	role := flag.String("role", rbac.RoleFraudOfficer, "FRAUD_OFFICER, SENIOR_OFFICER or SUPERVISOR")
	ttl := flag.Duration("ttl", 0, "token lifetime (default JWT_EXPIRATION_HOURS)")
	flag.Parse()

	cfg := config.Load()
	expiration := cfg.JWTExpiration
	if *ttl > 0 {
		expiration = *ttl
	}

	token, err := auth.GenerateJWT(cfg.JWTSecret, *name, *role, expiration)
	if err != nil {
		fmt.Fprintln(os.Stderr, "officer-token:", err)
		flag.Usage()
		os.Exit(2)
	}

	log.Info("officer token issued",
		zap.String("officer", *name),
		zap.String("role", *role),
		zap.Time("expires_at", time.Now().Add(expiration)),
	)
	fmt.Println(token)
}
