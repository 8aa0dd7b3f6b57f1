package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Prefix = "pbkdf2_sha256$"
	// Combined-field hashes carry a 32-byte salt in front of the digest.
	pbkdf2CombinedSaltHex = 64
	pbkdf2MaxIterations   = 10_000_000
)

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

func bcryptVerify(password, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: bcrypt: %v", ErrMalformedHash, err)
	}
}

// pbkdf2Verify checks both stored layouts:
//
//	pbkdf2_sha256$<iters>$<salt_hex>$<digest_hex>
//	pbkdf2_sha256$<iters>$<salt_hex><digest_hex>
func pbkdf2Verify(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")

	var saltHex, digestHex string
	switch len(parts) {
	case 4:
		saltHex, digestHex = parts[2], parts[3]
	case 3:
		if len(parts[2]) <= pbkdf2CombinedSaltHex {
			return false, fmt.Errorf("%w: pbkdf2 combined field too short", ErrMalformedHash)
		}
		saltHex, digestHex = parts[2][:pbkdf2CombinedSaltHex], parts[2][pbkdf2CombinedSaltHex:]
	default:
		return false, fmt.Errorf("%w: pbkdf2 layout", ErrMalformedHash)
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations < 1 || iterations > pbkdf2MaxIterations {
		return false, fmt.Errorf("%w: pbkdf2 iterations", ErrMalformedHash)
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false, fmt.Errorf("%w: pbkdf2 salt", ErrMalformedHash)
	}
	digest, err := hex.DecodeString(digestHex)
	if err != nil || len(digest) == 0 {
		return false, fmt.Errorf("%w: pbkdf2 digest", ErrMalformedHash)
	}

	computed := pbkdf2.Key([]byte(password), salt, iterations, len(digest), sha256.New)
	return subtle.ConstantTimeCompare(computed, digest) == 1, nil
}
