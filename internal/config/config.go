// Package config loads the broadcaster's configuration, layering, in
// increasing priority: built-in defaults, an optional operator YAML file,
// .env-provided environment variables, then command-line flags.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config holds every operator-tunable setting for one broadcaster process.
type Config struct {
	Port           string `yaml:"port"`
	MusicDir       string `yaml:"music_dir"`
	StationName    string `yaml:"station_name"`
	MaxClients     int    `yaml:"max_clients"`
	Profiles       []string `yaml:"profiles"`
	AdminUsername  string `yaml:"admin_username"`
	AdminPassword  string `yaml:"admin_password"`
	GeoDBPath      string `yaml:"geo_db_path"`
	GeoSalt        string `yaml:"geo_salt"`
	GeoEnabled     bool   `yaml:"geo_enabled"`
	MDNSEnabled    bool   `yaml:"mdns_enabled"`
	LogFilePath    string `yaml:"log_file_path"`
	LogDebug       bool   `yaml:"log_debug"`
	HighPriority   bool   `yaml:"high_priority"`
}

func defaults() Config {
	return Config{
		Port:          "8000",
		MusicDir:      "./stations",
		StationName:   "Lowpower FM",
		MaxClients:    500,
		Profiles:      []string{"mp3_64", "mp3_128"},
		AdminUsername: "admin",
		AdminPassword: "change-me-in-production-please",
		GeoDBPath:     "./GeoLite2-City.mmdb",
		GeoSalt:       "change-me-in-production-please",
		GeoEnabled:    false,
		MDNSEnabled:   true,
		LogFilePath:   "./broadcaster.log",
		LogDebug:      false,
		HighPriority:  false,
	}
}

// Load builds a Config from, in order: built-in defaults, yamlPath (if it
// exists), a .env file in the working directory (if present) merged into
// the process environment, then the process's command-line flags. Each
// layer overrides only the values it actually sets.
func Load(yamlPath string, args []string) (*Config, error) {
	cfg := defaults()

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: reading %s: %w", yamlPath, err)
		}
	}

	// Errors loading .env (most commonly, it doesn't exist) are expected in
	// production deployments that set real environment variables instead.
	_ = godotenv.Load()

	applyEnv(&cfg)

	if err := applyFlags(&cfg, args); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("BROADCASTER_PORT", cfg.Port)
	cfg.MusicDir = getEnv("BROADCASTER_MUSIC_DIR", cfg.MusicDir)
	cfg.StationName = getEnv("BROADCASTER_STATION_NAME", cfg.StationName)
	cfg.MaxClients = getEnvAsInt("BROADCASTER_MAX_CLIENTS", cfg.MaxClients)
	cfg.AdminUsername = getEnv("BROADCASTER_ADMIN_USERNAME", cfg.AdminUsername)
	cfg.AdminPassword = getEnv("BROADCASTER_ADMIN_PASSWORD", cfg.AdminPassword)
	cfg.GeoDBPath = getEnv("BROADCASTER_GEO_DB_PATH", cfg.GeoDBPath)
	cfg.GeoSalt = getEnv("BROADCASTER_GEO_SALT", cfg.GeoSalt)
	cfg.GeoEnabled = getEnvAsBool("BROADCASTER_GEO_ENABLED", cfg.GeoEnabled)
	cfg.MDNSEnabled = getEnvAsBool("BROADCASTER_MDNS_ENABLED", cfg.MDNSEnabled)
	cfg.LogFilePath = getEnv("BROADCASTER_LOG_FILE_PATH", cfg.LogFilePath)
	cfg.LogDebug = getEnvAsBool("BROADCASTER_LOG_DEBUG", cfg.LogDebug)
	cfg.HighPriority = getEnvAsBool("BROADCASTER_HIGH_PRIORITY", cfg.HighPriority)
}

func applyFlags(cfg *Config, args []string) error {
	fs := pflag.NewFlagSet("broadcaster", pflag.ContinueOnError)
	port := fs.String("port", cfg.Port, "HTTP listen port")
	musicDir := fs.String("music-dir", cfg.MusicDir, "directory containing station subdirectories")
	stationName := fs.String("station-name", cfg.StationName, "default station display name")
	maxClients := fs.Int("max-clients", cfg.MaxClients, "maximum concurrent listeners across all profiles")
	geoEnabled := fs.Bool("geo-enabled", cfg.GeoEnabled, "enable GeoIP listener enrichment")
	mdnsEnabled := fs.Bool("mdns-enabled", cfg.MDNSEnabled, "advertise stations over mDNS/DNS-SD")
	logDebug := fs.Bool("log-debug", cfg.LogDebug, "enable debug-level logging")
	highPriority := fs.Bool("high-priority", cfg.HighPriority, "attempt to raise process scheduling priority")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("config: parsing flags: %w", err)
	}

	cfg.Port = *port
	cfg.MusicDir = *musicDir
	cfg.StationName = *stationName
	cfg.MaxClients = *maxClients
	cfg.GeoEnabled = *geoEnabled
	cfg.MDNSEnabled = *mdnsEnabled
	cfg.LogDebug = *logDebug
	cfg.HighPriority = *highPriority
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultVal
}

func getEnvAsBool(name string, defaultVal bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultVal
}
