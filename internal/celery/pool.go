package celery

import (
	"time"

	"github.com/gocelery/gocelery"
	"github.com/gomodule/redigo/redis"
)

// NewRedisPool creates the connection pool shared by the broker and the result backend.
func NewRedisPool(brokerURL string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     3,                 // maximum number of idle connections in the pool
		MaxActive:   0,                 // maximum number of connections allocated by the pool at a given time
		IdleTimeout: 240 * time.Second, // close connections after remaining idle for this duration
		Dial: func() (redis.Conn, error) {
			return redis.DialURL(brokerURL)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			_, err := c.Do("PING")
			return err
		},
	}
}

// NewBackend exposes the redis result backend directly: gocelery's AsyncResult
// reports every non-SUCCESS status, PROGRESS included, as an error.
func NewBackend(pool *redis.Pool) *gocelery.RedisCeleryBackend {
	return &gocelery.RedisCeleryBackend{Pool: pool}
}

// NewClient returns a gocelery client publishing to the redis broker.
func NewClient(pool *redis.Pool) (*gocelery.CeleryClient, error) {
	return gocelery.NewCeleryClient(
		gocelery.NewRedisBroker(pool),
		NewBackend(pool),
		1,
	)
}

// QueueLength reports how many messages wait in the default "celery" queue.
func QueueLength(pool *redis.Pool) (int64, error) {
	conn := pool.Get()
	defer conn.Close()
	return redis.Int64(conn.Do("LLEN", "celery"))
}
