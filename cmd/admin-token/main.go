// cmd/admin-token/main.go
package main

import (
	"fmt"
	"log"
	"os"

	"questforge/internal/auth"
)

// Generates the ADMIN_TOKEN_HASH / ADMIN_TOKEN_SALT pair for a raw token.
func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <token>\n", os.Args[0])
		os.Exit(2)
	}

	hash, salt, err := auth.HashToken(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to hash token: %v", err)
	}

	fmt.Printf("ADMIN_TOKEN_HASH=%s\n", hash)
	fmt.Printf("ADMIN_TOKEN_SALT=%s\n", salt)
}
