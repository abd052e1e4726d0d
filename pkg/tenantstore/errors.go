package tenantstore

import "errors"

var (
	// ErrDuplicateIdentifier is returned when populating a store from
	// configuration finds two records sharing an ID or Identifier.
	ErrDuplicateIdentifier = errors.New("duplicate tenant id or identifier")

	// ErrInvalidSection is returned when the configuration section is missing or malformed.
	ErrInvalidSection = errors.New("invalid tenant configuration section")

	// ErrSourceUnavailable is returned when a configuration source cannot be read.
	ErrSourceUnavailable = errors.New("tenant configuration source unavailable")

	// ErrWatchNotSupported is returned by Watch when the source cannot be watched.
	ErrWatchNotSupported = errors.New("configuration source does not support watching")

	ErrInvalidS3Config = errors.New("invalid s3 source config")
	ErrNilClient       = errors.New("store client is nil")
)
