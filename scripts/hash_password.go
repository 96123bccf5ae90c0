package main

import (
	"fmt"
	"os"

	"github.com/webnest/webnest-api/api/auth"
)

// Generates a password hash for fixing an account by hand.
// Usage: go run ./scripts <email> <password> [admins|users|developers]
func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run ./scripts <email> <password> [admins|users|developers]")
		os.Exit(1)
	}
	email, password := os.Args[1], os.Args[2]
	collection := "admins"
	if len(os.Args) > 3 {
		collection = os.Args[3]
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Printf("Error generating hash: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Bcrypt Hash: %s\n", hash)
	fmt.Printf("\nTo update in MongoDB, run:\n")
	fmt.Printf("db.%s.updateOne(\n", collection)
	fmt.Printf("  {\"email\": %q},\n", email)
	fmt.Printf("  {$set: {\"passwordHash\": %q}}\n", hash)
	fmt.Printf(")\n")
}
