package payment

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
)

// SettingsKey is the stored admin configuration record holding the gateway
// key pair, used when the environment does not provide one.
const SettingsKey = "razorpay_credentials"

// CredentialsResolver resolves gateway credentials from the environment
// configuration first, falling back to the stored settings record. The
// fallback path stays server-side: resolved secrets are never echoed into
// responses.
type CredentialsResolver struct {
	env      Credentials
	settings SettingsStore
}

// NewCredentialsResolver builds a resolver with the environment-provided key
// pair (either field may be empty) and the settings fallback.
func NewCredentialsResolver(env Credentials, settings SettingsStore) *CredentialsResolver {
	return &CredentialsResolver{env: env, settings: settings}
}

// Resolve returns the first complete key pair found, or ErrConfiguration.
func (r *CredentialsResolver) Resolve(ctx context.Context) (Credentials, error) {
	if r.env.KeyID != "" && r.env.KeySecret != "" {
		return r.env, nil
	}

	if r.settings == nil {
		return Credentials{}, ErrConfiguration
	}

	raw, err := r.settings.Get(ctx, SettingsKey)
	if err != nil {
		if errors.Is(err, ErrSettingNotFound) {
			return Credentials{}, ErrConfiguration
		}
		return Credentials{}, errors.Wrap(err, "load credentials setting")
	}

	var stored struct {
		KeyID     string `json:"key_id"`
		KeySecret string `json:"key_secret"`
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return Credentials{}, errors.Wrap(err, "decode credentials setting")
	}
	if stored.KeyID == "" || stored.KeySecret == "" {
		return Credentials{}, ErrConfiguration
	}

	return Credentials{KeyID: stored.KeyID, KeySecret: stored.KeySecret}, nil
}
