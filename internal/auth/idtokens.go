package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendrickPhan/go-verify-apple-id-token/validator"
	"google.golang.org/api/idtoken"
)

const (
	ProviderGoogle = "google"
	ProviderApple  = "apple"
)

var ErrMissingToken = errors.New("missing id token")

// ExternalIdentity is what a provider vouches for after verifying a token.
type ExternalIdentity struct {
	Provider string
	Subject  string
	Email    string
}

type IdentityVerifier interface {
	Provider() string
	Verify(ctx context.Context, token string) (ExternalIdentity, error)
}

type GoogleVerifier struct {
	ClientID string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{ClientID: clientID, validate: idtoken.Validate}
}

func (v *GoogleVerifier) Provider() string { return ProviderGoogle }

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (ExternalIdentity, error) {
	if strings.TrimSpace(token) == "" {
		return ExternalIdentity{}, ErrMissingToken
	}
	if strings.TrimSpace(v.ClientID) == "" {
		return ExternalIdentity{}, errors.New("missing google client id")
	}

	payload, err := v.validate(ctx, token, v.ClientID)
	if err != nil {
		return ExternalIdentity{}, err
	}
	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return ExternalIdentity{}, fmt.Errorf("unexpected issuer: %s", payload.Issuer)
	}

	email, _ := payload.Claims["email"].(string)
	return ExternalIdentity{
		Provider: ProviderGoogle,
		Subject:  payload.Subject,
		Email:    strings.TrimSpace(strings.ToLower(email)),
	}, nil
}

type AppleVerifier struct {
	ServiceID string
}

func (v *AppleVerifier) Provider() string { return ProviderApple }

func (v *AppleVerifier) Verify(_ context.Context, token string) (ExternalIdentity, error) {
	if strings.TrimSpace(token) == "" {
		return ExternalIdentity{}, ErrMissingToken
	}
	if strings.TrimSpace(v.ServiceID) == "" {
		return ExternalIdentity{}, errors.New("missing apple service id")
	}

	client := validator.NewClient()
	tok, err := client.VerifyIdToken(v.ServiceID, token)
	if err != nil {
		return ExternalIdentity{}, err
	}
	if tok.Iss != "https://appleid.apple.com" {
		return ExternalIdentity{}, fmt.Errorf("unexpected issuer: %s", tok.Iss)
	}
	return ExternalIdentity{
		Provider: ProviderApple,
		Subject:  tok.Sub,
		Email:    strings.TrimSpace(strings.ToLower(tok.Email)),
	}, nil
}
