package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/proctorhub/assessment-backend/internal/config"
	"github.com/proctorhub/assessment-backend/internal/service"
	"golang.org/x/term"
)

// issue-token mints a signed JWT for local testing against a running server.
// Tokens are normally issued by the identity service.
func main() {
	var (
		tokenType = flag.String("type", "candidate", "token type: candidate or admin")
		userID    = flag.String("user", "", "user UUID (random when empty)")
		expiry    = flag.Duration("expiry", 0, "token lifetime (defaults to JWT_EXPIRY_HOURS)")
	)
	flag.Parse()

	cfg := config.Load()

	tt := service.TokenType(strings.ToLower(*tokenType))
	if tt != service.TokenTypeCandidate && tt != service.TokenTypeAdmin {
		fail("type must be candidate or admin")
	}

	uid := uuid.New()
	if *userID != "" {
		parsed, err := uuid.Parse(*userID)
		if err != nil {
			fail("user must be a UUID")
		}
		uid = parsed
	}

	secret := cfg.JWTSecret
	if os.Getenv("JWT_SECRET") == "" {
		// Prompt rather than silently signing with the development default.
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fail("JWT_SECRET is not set")
		}
		fmt.Fprint(os.Stderr, "JWT secret: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fail("reading secret: " + err.Error())
		}
		secret = strings.TrimSpace(string(raw))
		if secret == "" {
			fail("secret must not be empty")
		}
	}

	lifetime := cfg.JWTExpiry
	if *expiry > 0 {
		lifetime = *expiry
	}

	token, err := service.NewTokenService(secret, lifetime).IssueToken(uid, tt)
	if err != nil {
		fail(err.Error())
	}

	fmt.Fprintf(os.Stderr, "%s token for %s, expires %s\n", tt, uid, time.Now().Add(lifetime).UTC().Format(time.RFC3339))
	fmt.Println(token)
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "Error:", msg)
	os.Exit(1)
}
