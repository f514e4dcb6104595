// Package env loads the .env file once at startup and answers config
// lookups with an OS-environment fallback.
package env

import (
	"os"

	"github.com/joho/godotenv"
)

// Env holds the key/value pairs read from the .env file.
var Env map[string]string

// envFileCandidates is searched in order; the relative entry covers
// commands run from cmd/ subdirectories.
var envFileCandidates = []string{
	".env",
	"../../.env",
}

// SetupEnvFile reads the first .env file it finds and panics when none
// exists.
func SetupEnvFile() {
	for _, candidate := range envFileCandidates {
		if parsed, err := godotenv.Read(candidate); err == nil {
			Env = parsed
			return
		}
	}
	panic("no .env file found")
}

// GetEnv returns the configured value for key, falling back to the OS
// environment (containers and tests) and then to def.
func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
