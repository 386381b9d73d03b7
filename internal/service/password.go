package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUnsupportedHash = errors.New("unsupported password hash format")
	ErrMalformedHash   = errors.New("malformed password hash")
)

// Argon2Params are the Argon2id cost parameters
type Argon2Params = argon2id.Params

// DefaultArgon2Params is the current hashing policy
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024,
	Iterations:  4,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// PasswordHasher hashes new passwords with Argon2id and still verifies legacy bcrypt hashes
type PasswordHasher struct {
	params Argon2Params
}

// NewPasswordHasher creates a hasher with the given Argon2id parameters
func NewPasswordHasher(params Argon2Params) *PasswordHasher {
	return &PasswordHasher{params: params}
}

// Hash returns the PHC encoded Argon2id hash of password
func (h *PasswordHasher) Hash(password string) (string, error) {
	params := h.params
	hash, err := argon2id.CreateHash(password, &params)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// Verify reports whether password matches the stored hash
func (h *PasswordHasher) Verify(encoded, password string) (bool, error) {
	if isBcrypt(encoded) {
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
		}
		return true, nil
	}

	if _, err := decodeArgon2(encoded); err != nil {
		return false, err
	}

	match, err := argon2id.ComparePasswordAndHash(password, encoded)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return match, nil
}

// NeedsRehash reports whether a stored hash was produced by bcrypt or weaker Argon2id parameters
func (h *PasswordHasher) NeedsRehash(encoded string) bool {
	if isBcrypt(encoded) {
		return true
	}

	params, err := decodeArgon2(encoded)
	if err != nil {
		return true
	}

	return params.Memory < h.params.Memory ||
		params.Iterations < h.params.Iterations ||
		params.Parallelism < h.params.Parallelism ||
		params.KeyLength < h.params.KeyLength
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") || strings.HasPrefix(encoded, "$2b$") || strings.HasPrefix(encoded, "$2y$")
}

// decodeArgon2 parses an Argon2id hash and sorts failures into unsupported and malformed
func decodeArgon2(encoded string) (*Argon2Params, error) {
	params, _, key, err := argon2id.DecodeHash(encoded)
	switch {
	case errors.Is(err, argon2id.ErrInvalidHash),
		errors.Is(err, argon2id.ErrIncompatibleVariant),
		errors.Is(err, argon2id.ErrIncompatibleVersion):
		return nil, ErrUnsupportedHash
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	case len(key) == 0:
		return nil, ErrMalformedHash
	}
	return params, nil
}
