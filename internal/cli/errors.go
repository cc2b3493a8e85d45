package cli

import "errors"

// Error variables for CLI operations.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrCacheDirEmpty      = errors.New("cache_dir cannot be empty")
	ErrUnknownCommand     = errors.New("unknown command")
	ErrNoCommand          = errors.New("no command provided")
	ErrCacheDirFlagEmpty  = errors.New("cache-dir cannot be empty")
	ErrKeyRequired        = errors.New("key is required")
	ErrValueRequired      = errors.New("value is required")
	ErrTooManyArgs        = errors.New("too many arguments")
	ErrKeyNotFound        = errors.New("key not found")
	ErrTTLFlagsExclusive  = errors.New("--ttl and --ttl-seconds are mutually exclusive")
	ErrUnterminatedQuote  = errors.New("unterminated quote")
)
