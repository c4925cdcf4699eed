//go:build integration

// Package containers starts the backing services integration tests run
// against. Each service is started once per test binary and shared; Ryuk
// removes the containers when the process exits.
package containers

import (
	"sync"
	"testing"
)

// shared starts a value on first use and hands the same value to every
// later caller. A failed start is not retried.
type shared[T any] struct {
	once  sync.Once
	value T
}

func (s *shared[T]) get(t *testing.T, start func(*testing.T) T) T {
	t.Helper()
	s.once.Do(func() { s.value = start(t) })
	return s.value
}

// Manager hands out the per-process service containers.
type Manager struct {
	postgres shared[*PostgresContainer]
	redis    shared[*RedisContainer]
	kafka    shared[*KafkaContainer]
}

var manager = &Manager{}

// GetManager returns the manager shared by every test in the binary.
func GetManager() *Manager { return manager }

// GetPostgres returns Postgres with the consent schema applied.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	return m.postgres.get(t, NewPostgresContainer)
}

// GetRedis returns Redis with a connected client.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	return m.redis.get(t, NewRedisContainer)
}

// GetKafka returns a Kafka-compatible broker.
func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	return m.kafka.get(t, NewKafkaContainer)
}
