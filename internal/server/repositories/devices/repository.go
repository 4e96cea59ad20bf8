package devices

import "context"

type Repository interface {
	// TokensOf returns the registered push tokens for userID.
	TokensOf(ctx context.Context, userID string) ([]string, error)

	Register(ctx context.Context, userID, token string) error
}
