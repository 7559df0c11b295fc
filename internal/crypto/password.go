package crypto

import "golang.org/x/crypto/bcrypt"

// HashPassword derives a salted bcrypt verifier from an access password.
// Only the verifier is ever persisted.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// VerifyPassword checks a submitted password against a stored verifier.
// bcrypt's comparison is constant-time over the derived hash.
func VerifyPassword(verifier []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(verifier, []byte(password)) == nil
}
