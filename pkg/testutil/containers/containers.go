//go:build integration

// Package containers starts the Postgres and Kafka instances the integration
// suites run against. One of each is shared per test binary.
package containers

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
)

// Manager hands out the shared containers. Each is started lazily by the
// first suite that asks for it.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	kafka    *KafkaContainer
	topics   atomic.Int64
}

var (
	globalManager *Manager
	initOnce      sync.Once
)

// GetManager returns the process-wide manager.
func GetManager() *Manager {
	initOnce.Do(func() {
		globalManager = &Manager{}
	})
	return globalManager
}

// GetPostgres returns the shared Postgres container with migrations applied.
// Suites own their cleanup via TruncateTables or TruncateAll.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.postgres == nil {
		m.postgres = NewPostgresContainer(t)
	}
	return m.postgres
}

// GetKafka returns the shared broker.
func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.kafka == nil {
		m.kafka = NewKafkaContainer(t)
	}
	return m.kafka
}

// Topic returns a notification topic name no other suite in this process
// has used, so consumers reading from the start only see their own records.
func (m *Manager) Topic(prefix string) string {
	n := m.topics.Add(1)
	return prefix + "." + uuid.NewString()[:8] + "." + strconv.FormatInt(n, 10)
}
