package vk

import (
	"fmt"

	"github.com/vkcalls/vkcall/internal/misc"
	"golang.org/x/oauth2"
)

// PKCECodes holds the values of one PKCE authorization attempt (RFC 7636).
type PKCECodes struct {
	// State identifies the attempt towards the redirect service.
	State string
	// CodeVerifier is kept locally and sent with the token exchange.
	CodeVerifier string
	// CodeChallenge is the S256 digest of CodeVerifier sent with the authorization request.
	CodeChallenge string
}

// GeneratePKCECodes creates a fresh state, verifier and S256 challenge.
func GeneratePKCECodes() (*PKCECodes, error) {
	state, err := misc.GenerateRandomState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}
	verifier := oauth2.GenerateVerifier()
	return &PKCECodes{
		State:         state,
		CodeVerifier:  verifier,
		CodeChallenge: oauth2.S256ChallengeFromVerifier(verifier),
	}, nil
}
