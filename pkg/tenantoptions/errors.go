package tenantoptions

import "errors"

var (
	// ErrConfigureFailed wraps errors returned by configure steps.
	ErrConfigureFailed = errors.New("options configure step failed")

	// ErrNilPipeline is returned when a cache is built without a pipeline.
	ErrNilPipeline = errors.New("options pipeline is nil")
)
