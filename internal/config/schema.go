package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Dispatcher kinds selectable in bridge.dispatcher.
const (
	DispatcherLocal = "local"
	DispatcherHTTP  = "http"
	DispatcherMCP   = "mcp"
)

// Config is the top-level configuration
type Config struct {
	Gateway GatewayConfig `mapstructure:"gateway"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Tools   ToolsConfig   `mapstructure:"tools"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Log     LogConfig     `mapstructure:"log"`
}

type GatewayConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Model        string        `mapstructure:"model"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

// Addr is the listen address, host:port.
func (g GatewayConfig) Addr() string {
	return net.JoinHostPort(g.Host, strconv.Itoa(g.Port))
}

// BridgeConfig selects where the bridge sends tool calls.
type BridgeConfig struct {
	Dispatcher   string          `mapstructure:"dispatcher"`
	RemoteURL    string          `mapstructure:"remoteUrl"`
	Retries      int             `mapstructure:"retries"`
	RetryBackoff time.Duration   `mapstructure:"retryBackoff"`
	MCP          MCPServerConfig `mapstructure:"mcp"`
}

type MCPServerConfig struct {
	Command     string            `mapstructure:"command"`
	Args        []string          `mapstructure:"args"`
	Env         map[string]string `mapstructure:"env"`
	ToolTimeout time.Duration     `mapstructure:"toolTimeout"`
}

type ToolsConfig struct {
	Disabled []string      `mapstructure:"disabled"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Status   StatusConfig  `mapstructure:"status"`
	Docs     DocsConfig    `mapstructure:"docs"`
}

// StatusConfig lists the services check_status reports. Empty means the
// built-in web and api entries.
type StatusConfig struct {
	Services []ServiceEntry `mapstructure:"services"`
}

type ServiceEntry struct {
	Service string `mapstructure:"service"`
	State   string `mapstructure:"state"`
	Detail  string `mapstructure:"detail"`
}

// DocsConfig lists the pages search_docs indexes. Empty means the built-in set.
type DocsConfig struct {
	Entries []DocEntry `mapstructure:"entries"`
}

type DocEntry struct {
	Title string `mapstructure:"title"`
	URL   string `mapstructure:"url"`
	Body  string `mapstructure:"body"`
}

// ChatConfig points the chat command at an OpenAI-compatible endpoint.
// An empty BaseURL means the local gateway.
type ChatConfig struct {
	BaseURL string `mapstructure:"baseUrl"`
	APIKey  string `mapstructure:"apiKey"`
	Model   string `mapstructure:"model"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Model:        "toolbridge",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Bridge: BridgeConfig{
			Dispatcher:   DispatcherLocal,
			Retries:      2,
			RetryBackoff: 200 * time.Millisecond,
			MCP: MCPServerConfig{
				ToolTimeout: 30 * time.Second,
			},
		},
		Tools: ToolsConfig{
			Timeout: 5 * time.Second,
		},
		Chat: ChatConfig{
			Model: "toolbridge",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the settings that would otherwise fail late at start-up.
func (c *Config) Validate() error {
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port %d out of range", c.Gateway.Port)
	}
	switch c.Bridge.Dispatcher {
	case DispatcherLocal:
	case DispatcherHTTP:
		if c.Bridge.RemoteURL == "" {
			return fmt.Errorf("bridge.remoteUrl is required for the http dispatcher")
		}
	case DispatcherMCP:
		if c.Bridge.MCP.Command == "" {
			return fmt.Errorf("bridge.mcp.command is required for the mcp dispatcher")
		}
	default:
		return fmt.Errorf("bridge.dispatcher %q is not one of local, http, mcp", c.Bridge.Dispatcher)
	}
	if c.Bridge.Retries < 0 {
		return fmt.Errorf("bridge.retries must not be negative")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", c.Log.Format)
	}
	return nil
}

// ToolDisabled reports whether name is listed in tools.disabled.
func (c *Config) ToolDisabled(name string) bool {
	for _, d := range c.Tools.Disabled {
		if d == name {
			return true
		}
	}
	return false
}
