package config

import "errors"

// ErrMissingSafelist indicates that the required SAFELIST variable is not set
// in the environment.
var ErrMissingSafelist = errors.New("missing SAFELIST environment variable")

// ErrInvalidValue indicates that a variable is set but cannot be parsed.
var ErrInvalidValue = errors.New("invalid environment value")

// ErrPairsWithoutRPC indicates that PAIRS was given without ETH_RPC_URL to
// read them from.
var ErrPairsWithoutRPC = errors.New("PAIRS requires ETH_RPC_URL")
