package dedup

import (
	"log"
	"time"

	"aprsd/internal/utils"
)

const (
	EnvRedisHost     = "APRSD_REDIS_HOST"
	EnvRedisPort     = "APRSD_REDIS_PORT"
	EnvRedisUser     = "APRSD_REDIS_USERNAME"
	EnvRedisPassword = "APRSD_REDIS_PASSWORD"
)

// NewStore picks the dedup backend: Redis when APRSD_REDIS_HOST is set
// (falling back to memory if it is unreachable), in-memory otherwise.
func NewStore(window time.Duration) Store {
	redisHost := utils.GetEnv(EnvRedisHost, "")

	if redisHost != "" {
		redisPort := utils.GetEnv(EnvRedisPort, "6379")
		redisUser := utils.GetEnv(EnvRedisUser, "")
		redisPassword := utils.GetEnv(EnvRedisPassword, "")

		store, err := NewRedisStore(redisHost, redisPort, redisUser, redisPassword, window)
		if err != nil {
			log.Printf("⚠️  Redis connection failed: %v", err)
			log.Println("💾 Falling back to in-memory dedup cache")
			return NewMemoryStore(window)
		}
		log.Printf("💾 Using Redis dedup cache: %s:%s", redisHost, redisPort)
		return store
	}

	log.Println("💾 Using in-memory dedup cache")
	return NewMemoryStore(window)
}
