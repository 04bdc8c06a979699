// Package config loads the questd server configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeremymiller99/lumberjacksim-sub000/internal/database"
)

// ServerConfig holds server-wide configuration settings.
type ServerConfig struct {
	Listen      ListenConfig      `yaml:"listen"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	Connections ConnectionsConfig `yaml:"connections"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Session     SessionConfig     `yaml:"session"`
	Quests      QuestsConfig      `yaml:"quests"`
	Content     ContentConfig     `yaml:"content"`
	Database    database.Config   `yaml:"database"`
}

// ListenConfig holds the HTTP listener settings.
type ListenConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RateLimitConfig holds lockout settings for failed handshakes.
type RateLimitConfig struct {
	// MaxAttempts is the number of rejected hellos before an IP is locked out.
	MaxAttempts int `yaml:"max_attempts"`

	// LockoutSeconds is the initial lockout duration in seconds.
	LockoutSeconds int `yaml:"lockout_seconds"`

	// MaxLockoutSeconds caps the exponential backoff.
	MaxLockoutSeconds int `yaml:"max_lockout_seconds"`
}

// ConnectionsConfig holds connection limit settings.
type ConnectionsConfig struct {
	// MaxPerIP is the maximum concurrent connections allowed from a single IP address.
	// 0 means unlimited (not recommended).
	MaxPerIP int `yaml:"max_per_ip"`

	// MaxTotal is the maximum total concurrent connections to the server.
	// 0 means unlimited.
	MaxTotal int `yaml:"max_total"`
}

// SessionConfig holds per-player session settings.
type SessionConfig struct {
	// HandshakeTimeout is how long a new connection has to send its hello.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// InventorySlots is the bag size given to each player.
	InventorySlots int `yaml:"inventory_slots"`

	// MaxMessages per MessageWindow a client may send before messages are
	// refused. 0 disables the limit.
	MaxMessages   int           `yaml:"max_messages"`
	MessageWindow time.Duration `yaml:"message_window"`
}

// QuestsConfig tunes the quest log debouncing and housekeeping.
type QuestsConfig struct {
	ResyncWindow  time.Duration `yaml:"resync_window"`
	SaveDelay     time.Duration `yaml:"save_delay"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	SaveTimeout   time.Duration `yaml:"save_timeout"`
}

// ContentConfig locates the static game content.
type ContentConfig struct {
	QuestsDir string `yaml:"quests_dir"`
	ItemsFile string `yaml:"items_file"`
}

// WebSocketConfig holds WebSocket-specific settings.
type WebSocketConfig struct {
	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy.
	// Use "*" to allow all origins (not recommended for production).
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize is the maximum WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`

	// PingInterval is how often the server pings idle clients.
	PingInterval time.Duration `yaml:"ping_interval"`
}

// DefaultConfig returns a ServerConfig with secure defaults.
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Listen: ListenConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: []string{}, // Same-origin only by default
			MaxMessageSize: 4096,
			PingInterval:   30 * time.Second,
		},
		Connections: ConnectionsConfig{
			MaxPerIP: 3,
			MaxTotal: 100,
		},
		RateLimit: RateLimitConfig{
			MaxAttempts:       5,
			LockoutSeconds:    30,
			MaxLockoutSeconds: 300,
		},
		Session: SessionConfig{
			HandshakeTimeout: 10 * time.Second,
			InventorySlots:   20,
			MaxMessages:      40,
			MessageWindow:    5 * time.Second,
		},
		Quests: QuestsConfig{
			ResyncWindow:  50 * time.Millisecond,
			SaveDelay:     500 * time.Millisecond,
			SweepInterval: time.Minute,
			SaveTimeout:   5 * time.Second,
		},
		Content: ContentConfig{
			QuestsDir: "data/quests",
			ItemsFile: "data/items.yaml",
		},
		Database: database.DefaultConfig("data/questd.db"),
	}
}

// LoadConfig loads server configuration from a YAML file.
// If the file doesn't exist, returns default config.
func LoadConfig(path string) (*ServerConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return DefaultConfig(), fmt.Errorf("invalid config %s: %w", path, err)
	}

	return config, nil
}

// Validate rejects settings the server cannot run with.
func (c *ServerConfig) Validate() error {
	if c.Listen.Addr == "" {
		return fmt.Errorf("listen.addr is required")
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("websocket.max_message_size must be positive")
	}
	if c.Session.InventorySlots <= 0 {
		return fmt.Errorf("session.inventory_slots must be positive")
	}
	if c.Session.MaxMessages < 0 || c.Session.MessageWindow < 0 {
		return fmt.Errorf("session message limits cannot be negative")
	}
	if c.Quests.ResyncWindow < 0 || c.Quests.SaveDelay < 0 || c.Quests.SweepInterval < 0 {
		return fmt.Errorf("quests durations cannot be negative")
	}
	return c.Database.Validate()
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *WebSocketConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host (same-origin policy).
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // Non-browser clients send no Origin header
	}

	// "http://localhost:3000" -> "localhost:3000"
	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return strings.EqualFold(originHost, requestHost)
}
