package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/stemsi/tutor-gateway/internal/config"
	"github.com/stemsi/tutor-gateway/internal/service"
)

// mktoken mints a signed JWT for local development. Production tokens
// are issued by the platform auth service with the same shared secret.
func main() {
	var userID int
	flag.IntVar(&userID, "user", 0, "User ID to mint a token for")
	flag.Parse()

	if userID <= 0 {
		log.Fatal("mktoken: -user must be a positive user ID")
	}

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	tokens := service.NewTokenService(cfg)
	signed, err := tokens.MintToken(userID)
	if err != nil {
		log.Fatalf("Failed to mint token: %v", err)
	}

	fmt.Println(signed)
}
