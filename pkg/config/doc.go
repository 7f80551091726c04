// Package config loads the settings shared by the factory tools.
//
// Settings come from, in increasing precedence, the built-in defaults, a
// YAML, JSON, TOML or CUE file and FACTORY_ environment variables. Nested
// keys use underscores in the environment:
//
//	FACTORY_FACTORIES_DIR=fixtures/factories
//	FACTORY_STORE_DRIVER=sqlite
//	FACTORY_STORE_DSN=/tmp/factory.db
//	FACTORY_TELEMETRY_LOGGING_LEVEL=debug
//
// A CUE file is evaluated and exported to JSON before viper reads it, so it
// may use any CUE feature as long as the result is concrete.
package config
