package session

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind selects a Store backend.
type Kind string

const (
	KindMemory   Kind = "memory"
	KindFile     Kind = "file"
	KindRedis    Kind = "redis"
	KindPostgres Kind = "postgres"
)

// Config selects and parameterizes a backend. Connection details for Redis and
// Postgres live with the clients the caller passes in.
type Config struct {
	Kind Kind
	Key  string

	// Dir is the FileStore directory.
	Dir string

	// RedisPrefix namespaces the Redis key.
	RedisPrefix string

	// Passphrase enables sealing the snapshot at rest.
	Passphrase string
}

var keyRe = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// DefaultConfig returns a file-backed config under dir.
func DefaultConfig(dir string) Config {
	return Config{
		Kind:        KindFile,
		Key:         DefaultKey,
		Dir:         dir,
		RedisPrefix: "vivahvows",
	}
}

// Validate checks the config for the selected kind.
func (c Config) Validate() error {
	if !keyRe.MatchString(c.Key) {
		return fmt.Errorf("%w: key %q", ErrConfig, c.Key)
	}
	switch c.Kind {
	case KindMemory, KindPostgres:
		return nil
	case KindFile:
		if strings.TrimSpace(c.Dir) == "" {
			return fmt.Errorf("%w: file store requires a directory", ErrConfig)
		}
		return nil
	case KindRedis:
		if strings.TrimSpace(c.RedisPrefix) == "" {
			return fmt.Errorf("%w: redis store requires a prefix", ErrConfig)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrConfig, c.Kind)
	}
}

// ParseKind maps a config string to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindMemory, KindFile, KindRedis, KindPostgres:
		return k, nil
	case "":
		return KindFile, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrConfig, s)
	}
}
