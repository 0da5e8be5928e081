package session

import "context"

// Durable keys. Presence of KeyRememberMe means the user opted in to resume.
const (
	KeyAuthToken    = "authToken"
	KeyRefreshToken = "refreshToken"
	KeyRememberMe   = "rememberMe"
)

// Store is durable key/value storage for session secrets.
// Get reports ok=false for an absent key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
