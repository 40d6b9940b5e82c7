// Package authsvc verifies a client's presented token against its
// stored password hash. spec.md §1 treats the password-hash verifier
// as an external collaborator; it is exposed here only through the
// PasswordVerifier interface so the session engine can be tested
// against a fake without paying bcrypt's cost.
package authsvc

import "golang.org/x/crypto/bcrypt"

// PasswordVerifier checks a plaintext token against a stored hash.
type PasswordVerifier interface {
	Verify(token, hash string) bool
}

// Bcrypt is the production PasswordVerifier, grounded on
// pkg/auth/password.go's bcrypt.CompareHashAndPassword.
type Bcrypt struct{}

func (Bcrypt) Verify(token, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

// HashPassword hashes a plaintext token with bcrypt's default cost,
// used by demo client seeding.
func HashPassword(token string) (string, error) {
	return HashPasswordWithCost(token, bcrypt.DefaultCost)
}

// TestBcryptCost is the cheap bcrypt cost used when seeding clients in
// tests, mirroring the original prototype's mock.rs test helper, which
// hashes at cost 4 instead of production cost to keep test seeding fast
// across many clients.
const TestBcryptCost = 4

// HashPasswordWithCost hashes a plaintext token at the given bcrypt
// cost.
func HashPasswordWithCost(token string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	return string(bytes), err
}
