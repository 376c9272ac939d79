// Package config handles configuration loading, parsing, and validation
// from defaults, an optional YAML file and COMMANDQ_ environment variables.
// It provides type-safe access to engine, store, connectivity and server
// settings while keeping configuration details out of the engine itself.
package config
