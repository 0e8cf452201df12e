// Package config loads and validates aprsd.toml. The rest of the server
// consumes the parsed Config; nothing else reads files or the
// environment for peer settings.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"aprsd/internal/aprs"
	"aprsd/internal/constants"
	"aprsd/internal/utils"
)

const EnvConfigPath = "APRSD_CONFIG"

type Uplink struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Callsign string `toml:"callsign"`
	Passcode int    `toml:"passcode"`
}

type S2SPeer struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Passcode int    `toml:"passcode"`
	PeerName string `toml:"peer_name"`
}

type Config struct {
	ServerName      string    `toml:"server_name"`
	UserPort        int       `toml:"user_port"`
	ServerPort      int       `toml:"server_port"`
	S2SPort         int       `toml:"s2s_port"`
	DashboardPort   int       `toml:"dashboard_port"`
	DedupWindowSecs int       `toml:"dedup_window_secs"`
	MaxClients      int       `toml:"max_clients"`
	Uplink          *Uplink   `toml:"uplink"`
	S2SPeers        []S2SPeer `toml:"s2s_peers"`
}

// DefaultPath returns the config file path, honoring APRSD_CONFIG.
func DefaultPath() string {
	return utils.GetEnv(EnvConfigPath, "aprsd.toml")
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		UserPort:        constants.DefaultUserPort,
		ServerPort:      constants.DefaultServerPort,
		S2SPort:         constants.DefaultS2SPort,
		DashboardPort:   constants.DefaultDashboardPort,
		DedupWindowSecs: int(constants.DefaultDedupWindow / time.Second),
		MaxClients:      constants.MaxClients,
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerName == "" {
		return fmt.Errorf("server_name is required")
	}
	if _, err := aprs.ParseCallsign(c.ServerName); err != nil {
		return fmt.Errorf("server_name: %w", err)
	}
	for name, port := range map[string]int{
		"user_port":      c.UserPort,
		"server_port":    c.ServerPort,
		"s2s_port":       c.S2SPort,
		"dashboard_port": c.DashboardPort,
	} {
		if port < constants.MinPort || port > constants.MaxPort {
			return fmt.Errorf("%s out of range: %d", name, port)
		}
	}
	if c.DedupWindowSecs <= 0 {
		return fmt.Errorf("dedup_window_secs must be positive")
	}
	if c.Uplink != nil {
		if c.Uplink.Host == "" || c.Uplink.Port < constants.MinPort || c.Uplink.Port > constants.MaxPort {
			return fmt.Errorf("uplink needs host and port")
		}
		if _, err := aprs.ParseCallsign(c.Uplink.Callsign); err != nil {
			return fmt.Errorf("uplink callsign: %w", err)
		}
	}
	for i, p := range c.S2SPeers {
		if p.Host == "" || p.Port < constants.MinPort || p.Port > constants.MaxPort {
			return fmt.Errorf("s2s_peers[%d] needs host and port", i)
		}
	}
	return nil
}

func (c *Config) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowSecs) * time.Second
}
