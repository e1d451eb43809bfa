package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/templatemart/api/internal/platform/config"
)

// FirebaseVerifier verifies ID tokens through the Firebase Admin SDK.
type FirebaseVerifier struct {
	client  *firebaseauth.Client
	timeout time.Duration
}

// NewFirebaseVerifier initialises the Admin SDK for cfg.ProjectID.
func NewFirebaseVerifier(ctx context.Context, cfg config.FirebaseConfig) (*FirebaseVerifier, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firebase project id is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}

	timeout := cfg.VerifyTimeout
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}
	return &FirebaseVerifier{client: client, timeout: timeout}, nil
}

// VerifyIDToken checks signature, expiry and revocation of idToken.
func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	if v == nil || v.client == nil {
		return nil, errors.New("firebase verifier not initialised")
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	return v.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
}
