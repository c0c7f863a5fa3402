package config

import (
	"errors"
)

var (
	// ErrInvalidConfig wraps every validation failure reported by Config.Validate.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps failures reading the YAML file or the PADDOCK_* environment.
	ErrLoadConfig = errors.New("load config failed")
)
