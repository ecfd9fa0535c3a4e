package oauth2

import (
	"context"
	"errors"
	"fmt"

	"talkheal/cfg"
	"talkheal/pkg/logger"
)

var ErrUnknownProvider = errors.New("provider not found")

// Registry holds the providers configured at process start. It is built
// once and never mutated afterwards.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry registers every provider whose credential pair is present in
// the configuration. Providers with missing credentials are skipped, not
// fatal, so a deployment can enable a subset.
func NewRegistry(ctx context.Context, cfg *cfg.OAuth2Config, log logger.Client) (*Registry, error) {
	reg := &Registry{providers: make(map[string]Provider)}

	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		google, err := NewGoogleProvider(
			ctx,
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			callbackURL(cfg.RedirectBaseURL, ProviderGoogle),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Google provider: %w", err)
		}
		reg.register(google)
		log.Info("oauth2 provider registered", logger.Field{Key: "provider", Value: ProviderGoogle})
	}

	if cfg.GithubClientID != "" && cfg.GithubClientSecret != "" {
		reg.register(NewGithubProvider(
			cfg.GithubClientID,
			cfg.GithubClientSecret,
			callbackURL(cfg.RedirectBaseURL, ProviderGithub),
		))
		log.Info("oauth2 provider registered", logger.Field{Key: "provider", Value: ProviderGithub})
	}

	if cfg.MicrosoftClientID != "" && cfg.MicrosoftClientSecret != "" {
		reg.register(NewMicrosoftProvider(
			cfg.MicrosoftClientID,
			cfg.MicrosoftClientSecret,
			callbackURL(cfg.RedirectBaseURL, ProviderMicrosoft),
		))
		log.Info("oauth2 provider registered", logger.Field{Key: "provider", Value: ProviderMicrosoft})
	}

	return reg, nil
}

func (r *Registry) register(p Provider) {
	r.providers[p.Name()] = p
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, exists := r.providers[name]
	if !exists {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// Names lists the registered providers, for surfacing login options.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

func callbackURL(base, provider string) string {
	return base + "/auth/callback/" + provider
}
