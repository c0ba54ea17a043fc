package core

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to any of the
// relay's components.
type Config struct {
	// Hostname or IP address on which the server will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// Address broadcast to clients in the generated service config.
	ExternalIP string `mapstructure:"external_ip"`
	// TCP port over which all central services are multiplexed.
	Port int `mapstructure:"port"`
	// Maximum number of concurrent connections the server will allow.
	MaxConnections int `mapstructure:"max_connections"`
	// Optional path to write the generated service config JSON to at startup.
	ServiceConfigPath string `mapstructure:"service_config_path"`
	// Optional path to the game executable, mined for symbol names during
	// initial deployment.
	GameExecutablePath string `mapstructure:"game_executable_path"`
	// Interval in seconds between operator-visible peer stats reports.
	StatsInterval int `mapstructure:"stats_interval"`

	Logging struct {
		// Minimum level of a log required to be written. Options: debug, info, warn, error
		LogLevel string `mapstructure:"log_level"`
		// Full path to file to which logs will be written. Blank will write to stdout.
		LogFilePath string `mapstructure:"log_file_path"`
		// Log every sent/received protocol message.
		PacketTracingEnabled bool `mapstructure:"packet_tracing_enabled"`
	} `mapstructure:"logging"`

	Storage struct {
		// Backend selection: filesystem, redis, or database.
		Backend string `mapstructure:"backend"`
		// Directory holding JSON resources for the filesystem backend.
		DatabaseDir string `mapstructure:"database_dir"`
		// Disables the filesystem backend's read cache so manual JSON edits
		// take effect immediately.
		DisableCache bool `mapstructure:"disable_cache"`
		// Connection URL for the redis backend.
		RedisURL string `mapstructure:"redis_url"`
		// Driver (sqlite or postgres) and DSN for the database backend.
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
		// Enable query logging on the database backend.
		DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
	} `mapstructure:"storage"`

	ServerDB struct {
		// API key required on serverdb connection URIs; blank disables the gate.
		APIKey string `mapstructure:"api_key"`
		// Validate registering game servers with a raw ping probe.
		ValidateEndpoints bool `mapstructure:"validate_endpoints"`
		// Probe timeout in milliseconds.
		ValidationTimeout int `mapstructure:"validation_timeout"`
		// Interval in seconds between registry liveness sweeps. Zero disables
		// sweeping.
		SweepInterval int `mapstructure:"sweep_interval"`
	} `mapstructure:"serverdb"`

	Matching struct {
		// Prefer low measured ping over high population when ranking
		// candidate game servers.
		LowPingPreference bool `mapstructure:"low_ping_preference"`
		// Force players into any available session when their requested
		// criteria cannot be satisfied.
		ForceAnySession bool `mapstructure:"force_any_session"`
	} `mapstructure:"matching"`

	API struct {
		// Enables the operator HTTP status API.
		Enabled bool `mapstructure:"enabled"`
		// Port on which the status API will listen.
		Port int `mapstructure:"port"`
	} `mapstructure:"api"`

	Telemetry struct {
		// Enables the MQTT peer stats forwarder.
		Enabled bool `mapstructure:"enabled"`
		// Broker address, e.g. tcp://broker:1883.
		BrokerURL string `mapstructure:"broker_url"`
		ClientID  string `mapstructure:"client_id"`
		Topic     string `mapstructure:"topic"`
	} `mapstructure:"telemetry"`

	cachedIPBytes [4]byte
}

const envVarPrefix = "NEXUS"

// LoadConfig initializes Viper with the contents of the config file under configPath.
func LoadConfig(configPath string) *Config {
	viper.AddConfigPath(configPath)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix(envVarPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if errors.Is(err, viper.ConfigFileNotFoundError{}) {
			fmt.Printf("error reading config file: no config file in path %s\n", configPath)
		} else {
			fmt.Printf("error reading config file: %v\n", err)
		}
		os.Exit(1)
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, storage.backend can be set using: NEXUS_STORAGE_BACKEND
	for _, k := range viper.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := viper.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			fmt.Printf("error binding %s to %s\n", k, envVarPrefix+"_"+envVar)
			os.Exit(1)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		fmt.Printf("error unmarshaling config object: %v\n", err)
		os.Exit(1)
	}
	return config
}

// BindAddress returns the listener address for the central services.
func (c *Config) BindAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Port)
}

// PublicHost returns the address advertised to clients, falling back to the
// bind hostname when no external IP is configured.
func (c *Config) PublicHost() string {
	if c.ExternalIP != "" {
		return c.ExternalIP
	}
	return c.Hostname
}

// BroadcastIP converts the configured external IP into 4 bytes for messages
// that carry raw addresses.
func (c *Config) BroadcastIP() [4]byte {
	if c.cachedIPBytes[0] == 0x00 {
		if parsed := net.ParseIP(c.PublicHost()); parsed != nil {
			if v4 := parsed.To4(); v4 != nil {
				copy(c.cachedIPBytes[:], v4)
			}
		}
	}
	return c.cachedIPBytes
}
