// Package config loads the presence-gateway YAML configuration.
//
// Values in the form ${VAR_NAME} are expanded from the environment before
// parsing, and duration fields are written as Go duration strings ("10s",
// "750ms"). Defaults cover everything except the catalog database path and
// the JWT secret.
package config
