package errors

import (
	"errors"
	"fmt"
)

// Configuration-class errors: fail fast, reported to the caller, no retry.
var (
	// ErrNotConnected means no provider token exists for the user.
	ErrNotConnected = errors.New("calendar provider not connected")

	// ErrProviderMisconfigured means client credentials for the provider
	// are missing from server configuration.
	ErrProviderMisconfigured = errors.New("provider client credentials not configured")

	// ErrSyncInProgress means another sync invocation holds the
	// per-(user, provider) lock.
	ErrSyncInProgress = errors.New("a sync for this user and provider is already running")

	// ErrJobPaused rejects a run request against a paused job.
	ErrJobPaused = errors.New("job is paused")

	// ErrJobCommandEmpty rejects a run request against a job without a command.
	ErrJobCommandEmpty = errors.New("job command is empty")
)

// TokenRefreshError aborts a whole sync invocation: with a refresh
// failure there is no point attempting per-event calls.
type TokenRefreshError struct {
	Provider string
	Err      error
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("failed to refresh %s token: %v", e.Provider, e.Err)
}

func (e *TokenRefreshError) Unwrap() error { return e.Err }

func NewTokenRefreshError(provider string, err error) *TokenRefreshError {
	return &TokenRefreshError{Provider: provider, Err: err}
}

// MappingPersistError marks the most dangerous failure class: the
// provider-side create succeeded but the local mapping write failed, so
// remote and local state diverge. It is surfaced distinctly so an
// operator can reconcile manually.
type MappingPersistError struct {
	Provider        string
	SourceUID       string
	ProviderEventID string
	Err             error
}

func (e *MappingPersistError) Error() string {
	return fmt.Sprintf("%s event %s created remotely as %s but mapping write failed: %v",
		e.Provider, e.SourceUID, e.ProviderEventID, e.Err)
}

func (e *MappingPersistError) Unwrap() error { return e.Err }

func NewMappingPersistError(provider, sourceUID, providerEventID string, err error) *MappingPersistError {
	return &MappingPersistError{
		Provider:        provider,
		SourceUID:       sourceUID,
		ProviderEventID: providerEventID,
		Err:             err,
	}
}

// ProviderAPIError is a non-2xx response from a provider API call. It is
// a per-item error during export/import batches.
type ProviderAPIError struct {
	Provider   string
	Operation  string
	StatusCode int
	Body       string
}

func (e *ProviderAPIError) Error() string {
	return fmt.Sprintf("%s %s failed: status %d: %s", e.Provider, e.Operation, e.StatusCode, e.Body)
}

func NewProviderAPIError(provider, operation string, statusCode int, body string) *ProviderAPIError {
	return &ProviderAPIError{Provider: provider, Operation: operation, StatusCode: statusCode, Body: body}
}
