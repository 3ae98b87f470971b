package config

import (
	"os"
	"strconv"
	"time"
)

type CollectionConfig struct {
	CodeLength        int
	CodeTimeout       time.Duration
	MaxCodesPerLoan   int
	RateLimitWindow   time.Duration
	HashIterations    int
	ReferencePrefix   string
	QRImageSizePixels int
}

func LoadCollectionConfig() *CollectionConfig {
	return &CollectionConfig{
		CodeLength:        getEnvAsInt("COLLECTION_CODE_LENGTH", 8),
		CodeTimeout:       getEnvAsDuration("COLLECTION_CODE_TIMEOUT", 72*time.Hour),
		MaxCodesPerLoan:   getEnvAsInt("COLLECTION_MAX_CODES_PER_LOAN", 5),
		RateLimitWindow:   getEnvAsDuration("COLLECTION_RATE_LIMIT_WINDOW", 1*time.Hour),
		HashIterations:    getEnvAsInt("COLLECTION_HASH_ITERATIONS", 10000),
		ReferencePrefix:   getEnv("COLLECTION_REFERENCE_PREFIX", "COL"),
		QRImageSizePixels: getEnvAsInt("COLLECTION_QR_SIZE", 256),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
