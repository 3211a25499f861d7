package texture

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Token encodes the config as URL-safe base64 JSON, suitable for a query
// parameter.
func (c Config) Token() string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// ParseToken reverses Token. Missing fields take their defaults and the
// result is validated.
func ParseToken(token string) (Config, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Config{}, fmt.Errorf("%w: token: %w", ErrInvalidConfig, err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: token: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
