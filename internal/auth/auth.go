package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	credFileName = "credentials.json"
	EnvKey       = "DITTO_API_KEY"
)

// ErrNoKey means neither the environment nor the credentials file had a key.
var ErrNoKey = errors.New("no API key found. Set " + EnvKey + " or run `syncprobe auth login`")

type KeyInfo struct {
	Key       string     `json:"key"`
	Source    string     `json:"source"`     // "env" | "file"
	CreatedAt time.Time  `json:"created_at"` // when we saved to file
	ExpiresAt *time.Time `json:"expires_at"` // optional (JWT exp)
}

// Store keeps the API key under Dir. The zero value uses ~/.syncprobe.
type Store struct {
	Dir string
}

func (s Store) dir() (string, error) {
	if s.Dir != "" {
		return s.Dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".syncprobe"), nil
}

func (s Store) path() (string, error) {
	dir, err := s.dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, credFileName), nil
}

// Get returns the env override first, then the saved key. A nil result
// with a nil error means nothing is configured.
func (s Store) Get() (*KeyInfo, error) {
	if env := strings.TrimSpace(os.Getenv(EnvKey)); env != "" {
		return &KeyInfo{Key: StripBearer(env), Source: "env"}, nil
	}

	p, err := s.path()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var ki KeyInfo
	if err := json.Unmarshal(b, &ki); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	ki.Key = StripBearer(ki.Key)
	ki.Source = "file"
	return &ki, nil
}

// Require is Get that fails with ErrNoKey when nothing is configured.
func (s Store) Require() (*KeyInfo, error) {
	ki, err := s.Get()
	if err != nil {
		return nil, err
	}
	if ki == nil || ki.Key == "" {
		return nil, ErrNoKey
	}
	return ki, nil
}

func (s Store) Set(key string) error {
	key = StripBearer(strings.TrimSpace(key))
	if key == "" {
		return fmt.Errorf("empty key")
	}
	dir, err := s.dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	ki := KeyInfo{
		Key:       key,
		Source:    "file",
		CreatedAt: time.Now(),
		ExpiresAt: JWTExpiry(key),
	}
	b, err := json.MarshalIndent(ki, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	p, _ := s.path()
	// owner-only
	if err := os.WriteFile(p, b, 0o600); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (s Store) Delete() error {
	p, err := s.path()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

func StripBearer(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}

// JWTPayload decodes the unsigned payload segment of a JWT. Opaque keys
// return an error.
func JWTPayload(key string) (string, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 3 {
		return "", errors.New("opaque key")
	}
	dec, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	return string(dec), nil
}

// JWTExpiry returns the exp claim when key is a JWT that carries one. The
// signature is not checked; the key is only inspected locally.
func JWTExpiry(key string) *time.Time {
	tok, _, err := jwt.NewParser().ParseUnverified(key, jwt.MapClaims{})
	if err != nil {
		return nil
	}
	exp, err := tok.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time
	return &t
}
