package config

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/bsm/redislock"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

// GetRedisLock returns the distributed lock client used to serialize uploads
// per insurer. Nil when Redis is not configured; callers must treat the lock
// as best-effort.
func GetRedisLock() *redislock.Client {
	return locker
}

func init() {
	godotenv.Load()
}

// ConnectRedis initializes the shared Redis client and lock client.
// REDIS_ADDRESS empty disables Redis entirely (single-instance deployments).
func ConnectRedis() {
	address := strings.TrimSpace(os.Getenv("REDIS_ADDRESS"))
	if address == "" {
		log.Println("REDIS_ADDRESS not set, running without upload locks")
		return
	}
	rdb = redis.NewClient(&redis.Options{
		Addr:     address,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Printf("redis ping failed: %v (running without upload locks)", err)
		rdb = nil
		return
	}
	locker = redislock.New(rdb)
}
