// Package config provides configuration loading and validation for pipekit
// applications.
//
// It uses Viper to load configuration from files and environment variables,
// supporting YAML files, .env files, and environment-specific overrides.
//
// # Usage
//
//	var settings config.Settings
//	err := config.LoadConfig("pipekit", &settings)
//
// Environment variables override file values using underscore-separated
// paths (e.g., KAFKA_BROKERS, PUT_MAX_ATTEMPTS).
package config
