package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. TOOLBRIDGE_GATEWAY_PORT.
const EnvPrefix = "TOOLBRIDGE"

// Load reads the config file at path (any format viper detects from the
// extension), applies defaults and environment overrides, and validates the
// result. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return decode(v)
}

// LoadFromReader loads config of the given format ("json", "yaml", "toml")
// from r, applying defaults and env overrides.
func LoadFromReader(r io.Reader, format string) (*Config, error) {
	v := newViper()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults registers every scalar key so AutomaticEnv can override it
// during Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("gateway.host", d.Gateway.Host)
	v.SetDefault("gateway.port", d.Gateway.Port)
	v.SetDefault("gateway.model", d.Gateway.Model)
	v.SetDefault("gateway.readTimeout", d.Gateway.ReadTimeout)
	v.SetDefault("gateway.writeTimeout", d.Gateway.WriteTimeout)
	v.SetDefault("bridge.dispatcher", d.Bridge.Dispatcher)
	v.SetDefault("bridge.remoteUrl", d.Bridge.RemoteURL)
	v.SetDefault("bridge.retries", d.Bridge.Retries)
	v.SetDefault("bridge.retryBackoff", d.Bridge.RetryBackoff)
	v.SetDefault("bridge.mcp.command", d.Bridge.MCP.Command)
	v.SetDefault("bridge.mcp.args", []string{})
	v.SetDefault("bridge.mcp.toolTimeout", d.Bridge.MCP.ToolTimeout)
	v.SetDefault("tools.disabled", []string{})
	v.SetDefault("tools.timeout", d.Tools.Timeout)
	v.SetDefault("chat.baseUrl", d.Chat.BaseURL)
	v.SetDefault("chat.apiKey", d.Chat.APIKey)
	v.SetDefault("chat.model", d.Chat.Model)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}
