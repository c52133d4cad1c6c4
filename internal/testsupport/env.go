package testsupport

import (
	"fmt"
	"os"

	"tripmind/internal/adapters/config"
)

// RedisConfigFromEnv reads the Redis connection used by integration tests.
// Defaults point at a local instance on a dedicated database.
func RedisConfigFromEnv() config.RedisConfig {
	return config.RedisConfig{
		Host:     valueWithDefault("REDIS_HOST", "localhost"),
		Port:     intValue("REDIS_PORT", 6379),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       intValue("REDIS_TEST_DB", 15),
		Enabled:  true,
	}
}

func valueWithDefault(key string, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func intValue(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		_, err := fmt.Sscanf(val, "%d", &parsed)
		if err == nil {
			return parsed
		}
	}

	return fallback
}
