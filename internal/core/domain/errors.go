package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found.
	// Ownership mismatches are reported with this error as well.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedExtension indicates the uploaded file type is not on the allow-list
	ErrUnsupportedExtension = errors.New("unsupported file extension")

	// ErrTooLarge indicates the uploaded payload exceeds the configured limit
	ErrTooLarge = errors.New("content too large")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrStorageUnavailable indicates the blob backend could not be reached
	// or refused the operation (network, credentials, permissions).
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrEmbeddingFailed indicates the embedding service returned an error
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrDimensionMismatch indicates a vector does not have the configured dimension.
	// Never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates a dependency could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrNotSupported indicates the backend does not implement the operation
	ErrNotSupported = errors.New("not supported")
)
