package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"

	"github.com/angelmondragon/mealshare-backend/pkg/config"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128

	argonVersionTag = "v=19"
)

var (
	ErrInvalidHash   = errors.New("invalid argon2id hash")
	ErrWeakPassword  = fmt.Errorf("password must be between %d and %d characters", MinPasswordLength, MaxPasswordLength)
	ErrEmptyPassword = errors.New("password cannot be empty")
)

// ArgonParams are the Argon2id cost settings encoded into every stored hash.
type ArgonParams struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

func (p ArgonParams) encode(salt, key []byte) string {
	return fmt.Sprintf("$argon2id$%s$m=%d,t=%d,p=%d$%s$%s",
		argonVersionTag, p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

// HashPassword derives an Argon2id hash using the configured cost.
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	params := ParamsFromConfig(cfg)
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Parallelism, params.KeyLen)
	return params.encode(salt, key), nil
}

// VerifyPassword compares password against an encoded hash in constant time.
func VerifyPassword(password, encoded string) (bool, error) {
	stored, err := parseHash(encoded)
	if err != nil {
		return false, err
	}
	p := stored.params
	computed := argon2.IDKey([]byte(password), stored.salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return subtle.ConstantTimeCompare(stored.key, computed) == 1, nil
}

// NeedsRehash reports whether encoded was produced with a cost other than
// the one currently configured. Unparseable hashes always need a rehash.
func NeedsRehash(encoded string, cfg config.PasswordConfig) bool {
	stored, err := parseHash(encoded)
	if err != nil {
		return true
	}
	want := ParamsFromConfig(cfg)
	got := stored.params
	return got.Memory != want.Memory ||
		got.Time != want.Time ||
		got.Parallelism != want.Parallelism ||
		got.KeyLen != want.KeyLen ||
		got.SaltLen < want.SaltLen
}

// ParamsFromConfig clamps configured costs into the range we are willing to run.
func ParamsFromConfig(cfg config.PasswordConfig) ArgonParams {
	return ArgonParams{
		Memory:      uint32(clamp(cfg.ArgonMemoryKB, 8, 512*1024)),
		Time:        uint32(clamp(cfg.ArgonTime, 1, 10)),
		Parallelism: uint8(clamp(cfg.ArgonParallelism, 1, 255)),
		SaltLen:     uint32(clamp(cfg.ArgonSaltLen, 8, 64)),
		KeyLen:      uint32(clamp(cfg.ArgonKeyLen, 16, 64)),
	}
}

type storedHash struct {
	params ArgonParams
	salt   []byte
	key    []byte
}

// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
func parseHash(encoded string) (storedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" || parts[2] != argonVersionTag {
		return storedHash{}, ErrInvalidHash
	}

	var out storedHash
	for _, token := range strings.Split(parts[3], ",") {
		name, raw, ok := strings.Cut(token, "=")
		if !ok {
			return storedHash{}, ErrInvalidHash
		}
		bits := 32
		if name == "p" {
			bits = 8
		}
		value, err := strconv.ParseUint(raw, 10, bits)
		if err != nil {
			return storedHash{}, ErrInvalidHash
		}
		switch name {
		case "m":
			out.params.Memory = uint32(value)
		case "t":
			out.params.Time = uint32(value)
		case "p":
			out.params.Parallelism = uint8(value)
		}
	}
	if out.params.Memory == 0 || out.params.Time == 0 || out.params.Parallelism == 0 {
		return storedHash{}, ErrInvalidHash
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return storedHash{}, ErrInvalidHash
	}
	if out.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(out.key) == 0 {
		return storedHash{}, ErrInvalidHash
	}
	out.params.SaltLen = uint32(len(out.salt))
	out.params.KeyLen = uint32(len(out.key))
	return out, nil
}

func clamp(value, lo, hi int) int {
	switch {
	case value < lo:
		return lo
	case value > hi:
		return hi
	default:
		return value
	}
}

// CheckPasswordPolicy enforces the length bounds before hashing. Whitespace-only
// passwords are rejected regardless of length.
func CheckPasswordPolicy(password string) error {
	if strings.TrimSpace(password) == "" {
		return ErrWeakPassword
	}
	if n := utf8.RuneCountInString(password); n < MinPasswordLength || n > MaxPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
