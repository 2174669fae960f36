// Package config loads the process configuration once at startup.
//
// Values are resolved in three layers, lowest precedence first:
//
//  1. Default()
//  2. an optional YAML file (CRYPTO_CONFIG_FILE, config.yaml or configs/config.yaml)
//  3. environment variables prefixed with CRYPTO_
//
// Examples:
//
//	CRYPTO_SERVER_PORT=9000
//	CRYPTO_INPUT_SOURCE_DIR=/data/prices
//	CRYPTO_INPUT_COLUMNS=timestamp:0,symbol:1,price:2
//	CRYPTO_ANALYTICS_DISABLED_SYMBOLS=XXX,DOGE
//	CRYPTO_STORAGE_DRIVER=sqlite
//	CRYPTO_STORAGE_DSN=file:prices.db
//
// The resulting *Config is validated with go-playground/validator and is not
// mutated after Load returns.
package config
