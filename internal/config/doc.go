// Package config loads the afriartd configuration from a YAML file, an
// optional .env file and environment variables, then validates the result.
package config
