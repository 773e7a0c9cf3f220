package config

import "errors"

// ErrConfig marks fatal configuration errors; they surface before the
// pipeline touches the filesystem. Parse wraps every validation failure in
// it so callers can distinguish bad options from IO faults.
var ErrConfig = errors.New("invalid configuration")
