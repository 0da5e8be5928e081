package client

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	TimeoutMessage = "Connection timeout. Please check if the server is running."
	NetworkMessage = "Unable to connect to server. Please check your connection."
	ReauthMessage  = "Session expired. Please sign in again."
)

var (
	ErrTimeout        = errors.New("request timed out")
	ErrNetwork        = errors.New("network failure")
	ErrReauthRequired = errors.New("re-authentication required")
)

// APIError is a non-2xx answer from the server. Message is shown to the user verbatim.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// ValidationError holds per-field form problems found before any request is sent.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// UserMessage renders err the way it should be shown to a person.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	var valErr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fallback
	case errors.As(err, &valErr):
		return valErr.Error()
	case errors.Is(err, ErrTimeout):
		return TimeoutMessage
	case errors.Is(err, ErrReauthRequired):
		return ReauthMessage
	case errors.Is(err, ErrNetwork):
		return NetworkMessage
	default:
		return fallback
	}
}
