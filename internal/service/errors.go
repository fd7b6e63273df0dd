package service

import "errors"

var (
	// ErrInvalidRequest indicates the caller omitted the email or the password.
	ErrInvalidRequest = errors.New("email and password are required")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	// The two cases must stay indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDeactivated indicates correct credentials for a disabled account.
	ErrAccountDeactivated = errors.New("account is deactivated")
	// ErrServiceUnavailable indicates the datastore could not be reached.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrConfiguration indicates a required secret or descriptor is missing.
	ErrConfiguration = errors.New("service is not configured")
)
