package redis

import (
	"fmt"
	"sync"

	"github.com/redis/rueidis"
	"github.com/robalyx/roprofile/internal/setup/config"
	"go.uber.org/zap"
)

// ClientName identifies this service's connections in CLIENT LIST.
const ClientName = "roprofile"

// Manager lazily creates and owns the Redis client used by the profile cache.
type Manager struct {
	client rueidis.Client
	config *config.Redis
	logger *zap.Logger
	mu     sync.Mutex
}

// NewManager initializes the Redis connection manager.
// The connection is created when first requested.
func NewManager(config *config.Redis, logger *zap.Logger) *Manager {
	return &Manager{
		config: config,
		logger: logger.Named("redis"),
	}
}

// ClientOption builds the rueidis options for the configured server.
func (m *Manager) ClientOption() rueidis.ClientOption {
	return rueidis.ClientOption{
		InitAddress:         []string{fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)},
		Username:            m.config.Username,
		Password:            m.config.Password,
		SelectDB:            m.config.DB,
		ClientName:          ClientName,
		DisableCache:        true,
		ReadBufferEachConn:  1 << 20,
		WriteBufferEachConn: 1 << 20,
	}
}

// GetClient returns the shared client, connecting on first use.
func (m *Manager) GetClient() (rueidis.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return m.client, nil
	}

	client, err := rueidis.NewClient(m.ClientOption())
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client for DB %d: %w", m.config.DB, err)
	}

	m.client = client
	m.logger.Info("Created new Redis client",
		zap.String("host", m.config.Host),
		zap.Int("port", m.config.Port),
		zap.Int("db", m.config.DB))

	return client, nil
}

// Close shuts down the client. Safe to call multiple times.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return
	}

	m.client.Close()
	m.client = nil
	m.logger.Info("Closed Redis client", zap.Int("db", m.config.DB))
}
