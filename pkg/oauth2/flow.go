package oauth2

import (
	"context"
	"errors"
	"fmt"

	"talkheal/pkg/logger"
)

var (
	// ErrInvalidState is the only state failure surfaced to callers. The
	// specific reason (unknown, expired, replayed, wrong provider) is
	// logged internally and never exposed, so a caller probing state
	// values learns nothing from the response.
	ErrInvalidState = errors.New("invalid state")

	// ErrProviderDenied means the user declined consent at the provider.
	ErrProviderDenied = errors.New("provider denied authorization")

	ErrTokenExchange      = errors.New("token exchange failed")
	ErrUserInfoFetch      = errors.New("user info fetch failed")
	ErrIdentityIncomplete = errors.New("provider payload missing stable id")
)

// Flow drives the OAuth2 authorization-code grant: it builds the redirect
// URL for a provider and resolves the callback into a canonical Identity.
type Flow struct {
	registry *Registry
	states   *StateManager
	log      logger.Client
}

func NewFlow(registry *Registry, states *StateManager, log logger.Client) *Flow {
	return &Flow{
		registry: registry,
		states:   states,
		log:      log,
	}
}

// AuthURL builds the provider authorization URL with a freshly issued
// state token embedded. The returned state is also handed back so callers
// can correlate, though validation happens entirely server side.
func (f *Flow) AuthURL(provider string) (string, string, error) {
	p, err := f.registry.Get(provider)
	if err != nil {
		return "", "", err
	}

	state, nonce, err := f.states.Issue(provider)
	if err != nil {
		return "", "", fmt.Errorf("failed to issue state: %w", err)
	}

	return p.AuthCodeURL(state, nonce), state, nil
}

// HandleCallback validates the callback and exchanges the authorization
// code for a canonical identity. The token set is discarded once the
// identity is derived; no provider token outlives this call.
//
// errParam is the provider's error query parameter; when set, the flow
// aborts before any network round trip.
func (f *Flow) HandleCallback(ctx context.Context, provider, code, state, errParam string) (*Identity, error) {
	if errParam != "" {
		f.log.Info("oauth2 callback denied by provider",
			logger.Field{Key: "provider", Value: provider},
			logger.Field{Key: "reason", Value: errParam},
		)
		return nil, ErrProviderDenied
	}

	p, err := f.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	nonce, err := f.states.ValidateAndConsume(state, provider)
	if err != nil {
		// Full detail stays in the log; the caller sees one generic error.
		f.log.Warn("oauth2 state rejected",
			logger.Field{Key: "provider", Value: provider},
			logger.Err(err),
		)
		return nil, ErrInvalidState
	}

	tokens, err := p.Exchange(ctx, code)
	if err != nil {
		f.log.Error("oauth2 token exchange failed",
			logger.Field{Key: "provider", Value: provider},
			logger.Err(err),
		)
		// Authorization codes are single use; retrying would fail anyway,
		// so the caller must restart the flow from AuthURL.
		return nil, ErrTokenExchange
	}

	identity, err := p.Identity(ctx, tokens, nonce)
	if err != nil {
		if errors.Is(err, ErrIdentityIncomplete) {
			f.log.Error("oauth2 identity normalization failed",
				logger.Field{Key: "provider", Value: provider},
				logger.Err(err),
			)
			return nil, ErrIdentityIncomplete
		}
		f.log.Error("oauth2 user info fetch failed",
			logger.Field{Key: "provider", Value: provider},
			logger.Err(err),
		)
		return nil, ErrUserInfoFetch
	}

	return identity, nil
}
