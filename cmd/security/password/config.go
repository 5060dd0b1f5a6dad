package password

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Policy controls the pre-check rules.
type Policy struct {
	MinLength int
	MaxLength int
	// RejectVeryWeak enables the minimal weak-pattern rejection.
	RejectVeryWeak bool
	// RejectNumeric refuses passwords made only of digits.
	RejectNumeric bool
	// RejectSimilar refuses passwords that contain the username or the local
	// part of the email address.
	RejectSimilar bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Policy Policy
}

// DefaultConfig mirrors the backend's default validators.
func DefaultConfig() Config {
	return Config{
		Policy: Policy{
			MinLength:      8,
			MaxLength:      256,
			RejectVeryWeak: true,
			RejectNumeric:  true,
			RejectSimilar:  true,
		},
	}
}

// FromEnv loads config from environment variables.
//
// Env surface:
// - VIVAH_PASSWORD_MIN_LEN
// - VIVAH_PASSWORD_MAX_LEN
// - VIVAH_PASSWORD_REJECT_VERY_WEAK (true/false)
// - VIVAH_PASSWORD_REJECT_NUMERIC (true/false)
// - VIVAH_PASSWORD_REJECT_SIMILAR (true/false)
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("VIVAH_PASSWORD_MIN_LEN"); ok {
		n, err := atoiPositiveInt(v, 1, 1024)
		if err != nil {
			return Config{}, fmt.Errorf("VIVAH_PASSWORD_MIN_LEN: %w", err)
		}
		cfg.Policy.MinLength = n
	}

	if v, ok := os.LookupEnv("VIVAH_PASSWORD_MAX_LEN"); ok {
		n, err := atoiPositiveInt(v, 1, 4096)
		if err != nil {
			return Config{}, fmt.Errorf("VIVAH_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.Policy.MaxLength = n
	}

	flags := []struct {
		key string
		dst *bool
	}{
		{"VIVAH_PASSWORD_REJECT_VERY_WEAK", &cfg.Policy.RejectVeryWeak},
		{"VIVAH_PASSWORD_REJECT_NUMERIC", &cfg.Policy.RejectNumeric},
		{"VIVAH_PASSWORD_REJECT_SIMILAR", &cfg.Policy.RejectSimilar},
	}
	for _, f := range flags {
		v, ok := os.LookupEnv(f.key)
		if !ok {
			continue
		}
		b, err := parseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = b
	}

	// Final sanity.
	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

func atoiPositiveInt(s string, minVal, maxVal int) (int, error) {
	s = strings.TrimSpace(s)
	i64, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}

	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean")
	}
}
