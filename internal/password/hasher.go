package password

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 work factor for stored credentials.
	// Changing it invalidates every existing hash.
	DefaultIterations = 210_000
	// KeyLength is the derived key size in bytes.
	KeyLength = 64
	// SaltBytes is the number of random bytes in a fresh salt.
	SaltBytes = 32
)

// Hasher derives PBKDF2-SHA512 keys from passwords and salts.
type Hasher struct {
	iterations int
}

// NewHasher returns a Hasher with the given iteration count. Production code
// uses Default; lower counts are only meant for tests.
func NewHasher(iterations int) *Hasher {
	if iterations < 1 {
		iterations = 1
	}
	return &Hasher{iterations: iterations}
}

// Default returns a Hasher using DefaultIterations.
func Default() *Hasher {
	return NewHasher(DefaultIterations)
}

// NewSalt returns SaltBytes of cryptographically random data, hex encoded.
func (h *Hasher) NewSalt() (string, error) {
	b := make([]byte, SaltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Hash derives the hex-encoded key for password under salt. The salt string
// is used as-is as the PBKDF2 salt input.
func (h *Hasher) Hash(password, salt string) string {
	return hex.EncodeToString(h.derive(password, salt))
}

// Verify reports whether password derives to encodedHash under salt. The
// comparison takes the same time wherever the first differing byte is.
func (h *Hasher) Verify(password, salt, encodedHash string) bool {
	want, err := hex.DecodeString(encodedHash)
	if err != nil || len(want) != KeyLength {
		// Still spend the derivation cost so a corrupt row is not observable.
		h.derive(password, salt)
		return false
	}
	return subtle.ConstantTimeCompare(h.derive(password, salt), want) == 1
}

func (h *Hasher) derive(password, salt string) []byte {
	return pbkdf2.Key([]byte(password), []byte(salt), h.iterations, KeyLength, sha512.New)
}
