// Package config loads typed configuration from environment variables.
//
// It combines github.com/joho/godotenv, which reads optional .env files, with
// github.com/caarlos0/env/v11, which maps variables onto struct fields through
// `env` and `envDefault` tags. Parsed structs are cached per type so repeated
// Load calls from different packages are cheap and consistent.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
// Reset clears the cache; tests use it together with t.Setenv.
package config
