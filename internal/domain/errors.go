package domain

import "errors"

var (
	ErrServerNotFound        = errors.New("server not found")
	ErrBindingNotFound       = errors.New("stats binding not found")
	ErrUnknownDriver         = errors.New("unknown stats driver")
	ErrInvalidDriverConfig   = errors.New("invalid stats driver config")
	ErrDatabaseNotConfigured = errors.New("stats database not configured")
	ErrUnsupportedMod        = errors.New("driver does not support the server mod")

	ErrUserNotFound           = errors.New("user not found")
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
	ErrInvalidSteamID         = errors.New("invalid steam id")
	ErrInvalidTableQuery      = errors.New("invalid table query")
)

// IsConfigurationError reports whether err stems from a missing or broken
// server/driver binding. These always require operator action and are never masked.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrServerNotFound) ||
		errors.Is(err, ErrBindingNotFound) ||
		errors.Is(err, ErrUnknownDriver) ||
		errors.Is(err, ErrInvalidDriverConfig) ||
		errors.Is(err, ErrDatabaseNotConfigured) ||
		errors.Is(err, ErrUnsupportedMod)
}
