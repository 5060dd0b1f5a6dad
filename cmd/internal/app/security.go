package app

import (
	"errors"
	"net"
	"net/url"

	"vivahvows/cmd/internal/auth/session"
)

const minPassphraseBytes = 12

// ValidateSecurityConfig enforces the credential handling policy at startup.
func ValidateSecurityConfig(cfg Config) error {
	kind, err := session.ParseKind(cfg.Store.Kind)
	if err != nil {
		return err
	}

	if cfg.Store.Passphrase != "" && len(cfg.Store.Passphrase) < minPassphraseBytes {
		return errors.New("security policy: VIVAH_STORE_PASSPHRASE is too short (min 12 bytes)")
	}
	if cfg.Store.RequireSealed && kind != session.KindMemory && cfg.Store.Passphrase == "" {
		return errors.New("security policy: VIVAH_STORE_REQUIRE_SEALED=true but VIVAH_STORE_PASSPHRASE is missing")
	}

	if !cfg.API.AllowInsecure {
		for _, origin := range []string{cfg.API.Origin, cfg.WS.Origin} {
			if cleartextRemote(origin) {
				return errors.New("security policy: tokens would be sent in clear text to " + origin + " (set VIVAH_API_ALLOW_INSECURE=true to override)")
			}
		}
	}
	return nil
}

// cleartextRemote reports whether origin is plain http(ws) to a host that is
// not loopback.
func cleartextRemote(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "ws" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return false
	}
	ip := net.ParseIP(host)
	return ip == nil || !ip.IsLoopback()
}
