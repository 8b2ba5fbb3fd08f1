package services

// PasswordHasher abstracts password hashing and verification.
type PasswordHasher interface {
	// Hash generates a hash for the given plaintext password.
	Hash(password string) (string, error)
	// Verify compares a hashed password with its possible plaintext
	// equivalent. Returns nil on match.
	Verify(hashedPassword, password string) error
}
