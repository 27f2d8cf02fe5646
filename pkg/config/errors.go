package config

import "errors"

var (
	// ErrNilPointer is returned when Load receives a nil destination.
	ErrNilPointer = errors.New("config: nil pointer passed to Load")

	// ErrParsingConfig indicates the environment could not be parsed into the struct.
	ErrParsingConfig = errors.New("config: failed to parse environment variables")

	// ErrConfigNotLoaded indicates the cached value disappeared between parse and read.
	ErrConfigNotLoaded = errors.New("config: configuration not loaded")
)
