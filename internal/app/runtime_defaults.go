package app

import (
	"fmt"
	"strings"

	"github.com/siduri/siduri/pkg/crypto"
)

const (
	jwtSecretBytes      = 48
	trackingSecretBytes = 32
)

// ApplyRuntimeDefaults ensures critical secrets are populated even when no
// configuration file is supplied. It returns a map describing which keys were
// generated so callers can log the event without exposing values. Generated
// secrets do not survive a restart; persistent deployments should configure
// them explicitly so sessions and tracking links stay valid.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated["auth.jwt.secret"] = true
	}

	if strings.TrimSpace(cfg.Auth.TrackingSecret) == "" {
		secret, err := crypto.GenerateToken(trackingSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate tracking secret: %w", err)
		}
		cfg.Auth.TrackingSecret = secret
		generated["auth.tracking_secret"] = true
	}

	return generated, nil
}
