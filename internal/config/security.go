package config

import (
	"fmt"
	"strings"
)

// SecuritySection configures authentication for the ops server. Mutating
// admin endpoints require a bearer JWT; the secret itself stays in the
// environment and the file only names the variable.
type SecuritySection struct {
	// PublicEndpoints bypass bearer auth. The health and metrics surfaces
	// belong here so probes and scrapers need no credentials.
	PublicEndpoints []string `yaml:"public_endpoints"`
	JWT             struct {
		SecretEnv   string `yaml:"secret_env"`
		ExpiryHours int    `yaml:"expiry_hours"`
	} `yaml:"jwt"`
}

// validate checks the security section as part of topology validation.
func (s *SecuritySection) validate() error {
	if s.JWT.SecretEnv == "" {
		return fmt.Errorf("jwt secret_env is required")
	}
	if s.JWT.ExpiryHours <= 0 {
		return fmt.Errorf("jwt expiry_hours must be positive")
	}
	for _, endpoint := range s.PublicEndpoints {
		if !strings.HasPrefix(endpoint, "/") {
			return fmt.Errorf("public endpoint %q must start with /", endpoint)
		}
	}
	return nil
}

// GetJWTSecretEnv returns the environment variable naming the JWT secret.
func (s *SecuritySection) GetJWTSecretEnv() string {
	return s.JWT.SecretEnv
}

// GetJWTExpiryHours returns the JWT expiry time in hours.
func (s *SecuritySection) GetJWTExpiryHours() int {
	return s.JWT.ExpiryHours
}

// GetPublicEndpoints returns the list of public endpoints.
func (s *SecuritySection) GetPublicEndpoints() []string {
	return s.PublicEndpoints
}

// IsPublicEndpoint reports whether path bypasses bearer auth.
func (s *SecuritySection) IsPublicEndpoint(path string) bool {
	for _, endpoint := range s.PublicEndpoints {
		if path == endpoint {
			return true
		}
	}
	return false
}
