package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHashCost is deliberately high so brute forcing stored hashes stays
// expensive. Changing it only affects newly stored hashes.
const PasswordHashCost = 12

// dummyHash is a bcrypt hash of a throwaway value at PasswordHashCost. It is
// compared against when a login targets a nonexistent account so the request
// burns the same CPU budget as a real comparison.
const dummyHash = "$2a$12$C6UzMDM.H6dfI/f/IKcEeO7ZBw5vdbVHaQ0QeQxSb9dVGKM8Kvoy6"

// HashPassword returns a bcrypt hash of the supplied password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordHashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares the hashed password with the plaintext candidate.
func VerifyPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// BurnPasswordCheck runs a bcrypt comparison against a fixed dummy hash.
// Always returns false; exists purely to equalise timing between "account
// exists" and "account missing" login paths.
func BurnPasswordCheck(password string) bool {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
	return false
}

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// GenerateHexToken returns a random hex token of the requested byte length.
// Used for password reset links where the emailed value must survive naive
// URL handling.
func GenerateHexToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return hex.EncodeToString(buffer), nil
}

// SHA256Hex returns the hex-encoded SHA-256 digest of the value. Reset tokens
// are stored only in this form.
func SHA256Hex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
