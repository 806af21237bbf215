package model

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify reports a mismatch as (false, nil).
	Verify(password, hash string) (bool, error)
	// Dummy returns a valid hash for equalising timing on unknown users.
	Dummy() string
}
