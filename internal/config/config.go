package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr         = ":8099"
	defaultDBPath           = "/data/bloomin_presence.db"
	defaultAddonOptionsPath = "/data/options.json"
	defaultMediaRoot        = "/media"
	defaultHABaseURL        = "http://supervisor/core"
	defaultBLETimeout       = 8 * time.Second
)

// Config stores runtime settings loaded from environment variables and the
// add-on options file.
type Config struct {
	HTTPAddr         string
	DBPath           string
	AddonOptionsPath string
	MediaRoot        string
	HABaseURL        string
	SupervisorToken  string
	LogLevel         slog.Level
	BLETimeout       time.Duration
	Frame            FrameOptions
}

// FrameOptions mirrors the add-on options schema. JSON is valid YAML, so
// the supervisor's options.json parses as is.
type FrameOptions struct {
	FrameID           string   `yaml:"frame_id"`
	Host              string   `yaml:"frame_host"`
	UseBLEWake        bool     `yaml:"use_ble_wake"`
	BLEMACAddress     string   `yaml:"ble_mac_address"`
	BLEAdapter        string   `yaml:"ble_adapter"`
	WhistleEntityID   string   `yaml:"whistle_entity_id"`
	PersonEntities    []string `yaml:"person_entities"`
	ImageSource       string   `yaml:"image_source"`
	MediaFolder       string   `yaml:"media_folder"`
	ImagePath         string   `yaml:"image_path"`
	OverlayStyle      string   `yaml:"overlay_style"`
	OverlayPosition   string   `yaml:"overlay_position"`
	BadgeSize         int      `yaml:"badge_size"`
	IconSize          int      `yaml:"icon_size"`
	FontSize          float64  `yaml:"font_size"`
	Margin            *int     `yaml:"margin"`
	ImageQuality      int      `yaml:"image_quality"`
	HomeText          string   `yaml:"home_text"`
	AwayText          string   `yaml:"away_text"`
	Delivery          string   `yaml:"delivery"`
	MediaPlayerEntity string   `yaml:"media_player_entity_id"`
	DiscoverEndpoints bool     `yaml:"discover_endpoints"`
}

func defaultFrameOptions() FrameOptions {
	return FrameOptions{
		FrameID:     "bloomin",
		BLEAdapter:  "hci0",
		ImageSource: "folder",
		MediaFolder: "bloomin_display",
		Delivery:    "http",
	}
}

// Load builds Config from environment variables using stable defaults. A
// missing options file is not an error; a malformed one is.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:         getenv("HTTP_ADDR", defaultHTTPAddr),
		DBPath:           getenv("DB_PATH", defaultDBPath),
		AddonOptionsPath: getenv("ADDON_OPTIONS_PATH", defaultAddonOptionsPath),
		MediaRoot:        getenv("MEDIA_ROOT", defaultMediaRoot),
		HABaseURL:        getenv("HA_BASE_URL", defaultHABaseURL),
		SupervisorToken:  getenv("SUPERVISOR_TOKEN", ""),
		LogLevel:         parseLogLevel(getenv("LOG_LEVEL", "info")),
		BLETimeout:       parseDuration("BLE_TIMEOUT", defaultBLETimeout),
	}

	opts, err := readOptions(cfg.AddonOptionsPath)
	if err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&opts)
	cfg.Frame = opts
	return cfg, nil
}

// DBDir returns the target directory for DBPath.
func (c Config) DBDir() string {
	return filepath.Dir(c.DBPath)
}

func readOptions(path string) (FrameOptions, error) {
	opts := defaultFrameOptions()
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return opts, nil
	}
	if err != nil {
		return FrameOptions{}, fmt.Errorf("read options %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return FrameOptions{}, fmt.Errorf("parse options %s: %w", path, err)
	}
	return opts, nil
}

func applyEnvOverrides(opts *FrameOptions) {
	opts.Host = getenv("FRAME_HOST", opts.Host)
	opts.BLEMACAddress = getenv("BLE_MAC_ADDRESS", opts.BLEMACAddress)
	opts.UseBLEWake = parseBool("USE_BLE_WAKE", opts.UseBLEWake)
	if raw := getenv("PERSON_ENTITIES", ""); raw != "" {
		opts.PersonEntities = splitList(raw)
	}
}

func getenv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
