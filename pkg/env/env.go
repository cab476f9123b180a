package env

import (
	"os"
	"strings"
)

// Prefix namespaces every setting the services read, matching config.Load.
const Prefix = "VENDEO_"

// Get returns the first non-blank value of Prefix+key or key, else fallback.
// Keys that already carry Prefix are looked up as-is.
func Get(key, fallback string) string {
	for _, candidate := range candidates(key) {
		if val := strings.TrimSpace(os.Getenv(candidate)); val != "" {
			return val
		}
	}
	return fallback
}

func candidates(key string) []string {
	if strings.HasPrefix(key, Prefix) {
		return []string{key}
	}
	return []string{Prefix + key, key}
}
