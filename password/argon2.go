package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Prefix = "$argon2id$"

	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

// argon2Params are the cost parameters encoded in an argon2id hash.
type argon2Params struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

type argon2Hash struct {
	argon2Params
	salt []byte
	key  []byte
}

func argon2Encode(password string, cfg Config) (string, error) {
	salt := make([]byte, cfg.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, cfg.Time, cfg.Memory, cfg.Parallelism, cfg.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		cfg.Memory, cfg.Time, cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func argon2Verify(password, encoded string) (bool, error) {
	h, err := argon2Decode(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.parallelism, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(computed, h.key) == 1, nil
}

// argon2Weaker reports whether encoded was produced with lower cost than cfg.
func argon2Weaker(encoded string, cfg Config) bool {
	h, err := argon2Decode(encoded)
	if err != nil {
		return true
	}
	return h.memory < cfg.Memory ||
		h.time < cfg.Time ||
		h.parallelism < cfg.Parallelism ||
		uint32(len(h.key)) != cfg.KeyLength
}

// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>
func argon2Decode(encoded string) (*argon2Hash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, fmt.Errorf("%w: argon2id layout", ErrMalformedHash)
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, fmt.Errorf("%w: argon2id version", ErrMalformedHash)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: argon2 version %d", ErrUnsupportedHash, version)
	}

	params, err := argon2ParseParams(parts[3])
	if err != nil {
		return nil, err
	}

	salt, err := decodeB64(parts[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: argon2id salt", ErrMalformedHash)
	}
	key, err := decodeB64(parts[5])
	if err != nil || len(key) == 0 {
		return nil, fmt.Errorf("%w: argon2id key", ErrMalformedHash)
	}

	return &argon2Hash{argon2Params: params, salt: salt, key: key}, nil
}

// decodeB64 accepts both padded and unpadded standard base64; older
// hashes were written with padding.
func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func argon2ParseParams(part string) (argon2Params, error) {
	var p argon2Params
	var seenM, seenT, seenP bool

	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return p, fmt.Errorf("%w: argon2id parameters", ErrMalformedHash)
	}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return p, fmt.Errorf("%w: argon2id parameter %q", ErrMalformedHash, pair)
		}
		switch name {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || uint32(v) < minMemoryKB {
				return p, fmt.Errorf("%w: argon2id memory", ErrMalformedHash)
			}
			p.memory, seenM = uint32(v), true
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || uint32(v) < minTimeCost {
				return p, fmt.Errorf("%w: argon2id time", ErrMalformedHash)
			}
			p.time, seenT = uint32(v), true
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || uint8(v) < minParallelism {
				return p, fmt.Errorf("%w: argon2id parallelism", ErrMalformedHash)
			}
			p.parallelism, seenP = uint8(v), true
		default:
			return p, fmt.Errorf("%w: argon2id parameter %q", ErrMalformedHash, name)
		}
	}
	if !seenM || !seenT || !seenP {
		return p, fmt.Errorf("%w: argon2id parameters incomplete", ErrMalformedHash)
	}
	return p, nil
}
