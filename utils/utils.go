package utils

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// GetEnv returns the value of key, or fallback when it is unset or blank.
func GetEnv(key string, fallback ...string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return ""
}

func CreateFolder(folderPath string) error {
	return os.MkdirAll(folderPath, 0o755)
}

// GenerateUniqueID returns a random UUID string.
func GenerateUniqueID() string {
	return uuid.NewString()
}
