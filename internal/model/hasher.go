package model

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify returns (true, nil) on match, (false, nil) on mismatch and an
	// error only when the stored digest cannot be parsed.
	Verify(password, digest string) (bool, error)
	// DummyVerify burns the same time as Verify against a digest that never matches.
	DummyVerify(password string)
	NeedsRehash(digest string) bool
}
