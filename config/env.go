package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file from the working directory if present.
// It never errors when the file is absent, matching the common
// development-convenience usage of godotenv.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// GetEnvironment returns the deployment environment name, defaulting
// to "development".
func GetEnvironment() string {
	if env := os.Getenv("SECCHIWARE_ENV"); env != "" {
		return env
	}
	return "development"
}
