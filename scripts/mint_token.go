package main

// Script to mint a caller JWT for exercising the /v1/call endpoint by hand
//
// Usage:
//   JWT_SECRET=... go run scripts/mint_token.go --caller 6f1f... --channel web --ttl 1h
//
// Without --caller a random UUID is generated, which makes the gateway
// treat the connection as a first-time caller.

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"orpheus/pkg/auth"
)

func main() {
	callerID := flag.String("caller", "", "Caller UUID (random if empty)")
	channel := flag.String("channel", "web", "Channel claim (phone, web)")
	issuer := flag.String("issuer", "orpheus", "Token issuer")
	ttl := flag.Duration("ttl", time.Hour, "Token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Println("Error: JWT_SECRET is not set")
		os.Exit(1)
	}

	id := uuid.New()
	if *callerID != "" {
		parsed, err := uuid.Parse(*callerID)
		if err != nil {
			fmt.Printf("Error: invalid caller UUID: %v\n", err)
			os.Exit(1)
		}
		id = parsed
	}

	svc := auth.NewJWTService(secret, *issuer, *ttl)
	token, err := svc.GenerateToken(id, *channel)
	if err != nil {
		fmt.Printf("Error: failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Caller Token")
	fmt.Println("============")
	fmt.Printf("Caller:  %s\n", id)
	fmt.Printf("Channel: %s\n", *channel)
	fmt.Printf("Expires: %s\n", time.Now().Add(*ttl).Format(time.RFC3339))
	fmt.Println("")
	fmt.Println(token)
}
