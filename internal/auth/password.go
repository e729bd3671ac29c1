package auth

import (
	"log"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes an account password with bcrypt for storage on the
// users row at signup.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error generating bcrypt hash: %v", err)
		return "", err
	}
	return string(bytes), nil
}

// CheckPasswordHash verifies a login attempt against the stored bcrypt hash.
// Any failure, expected or not, reads as a mismatch to the caller.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if err != bcrypt.ErrMismatchedHashAndPassword {
			// Malformed stored hashes surface here; log them, still deny.
			log.Printf("Error comparing password hash: %v", err)
		}
		return false
	}
	return true
}
