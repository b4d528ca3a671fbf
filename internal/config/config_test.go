package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
)

func writeOptions(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "options.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadReadsJSONOptions(t *testing.T) {
	t.Setenv("ADDON_OPTIONS_PATH", writeOptions(t, `{
		"frame_host": "192.168.1.50",
		"use_ble_wake": true,
		"ble_mac_address": "aa-bb-cc-dd-ee-ff",
		"person_entities": ["person.alice", "person.bob"],
		"image_source": "file",
		"image_path": "photos/hall.jpg",
		"overlay_style": "text",
		"overlay_position": "top_left",
		"margin": 0
	}`))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8099", cfg.HTTPAddr)
	assert.Equal(t, "/media", cfg.MediaRoot)

	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, frame.Address("AA:BB:CC:DD:EE:FF"), s.BLEAddress)
	assert.Equal(t, frame.File("photos/hall.jpg"), s.Source)
	assert.Equal(t, frame.StyleText, s.Overlay.Style)
	assert.Equal(t, frame.CornerTopLeft, s.Overlay.Corner)
	assert.Equal(t, 0, s.Overlay.Margin)
	assert.Equal(t, 40, s.Overlay.BadgeSize)
	assert.Equal(t, 95, s.Overlay.Quality)
	assert.Len(t, s.Persons, 2)
	assert.Equal(t, DeliveryHTTP, s.Delivery)
	assert.Equal(t, "bloomin", s.FrameID)
}

func TestLoadReadsYAMLAndEnvOverrides(t *testing.T) {
	t.Setenv("ADDON_OPTIONS_PATH", writeOptions(t, `
frame_host: 10.0.0.2
person_entities:
  - person.alice
media_folder: gallery
`))
	t.Setenv("FRAME_HOST", "10.0.0.9")
	t.Setenv("USE_BLE_WAKE", "true")
	t.Setenv("BLE_MAC_ADDRESS", "11_22_33_44_55_66")
	t.Setenv("PERSON_ENTITIES", "person.carol, person.dave")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", s.Host, "env should override the options file")
	assert.Equal(t, frame.Address("11:22:33:44:55:66"), s.BLEAddress)
	require.Len(t, s.Persons, 2)
	assert.Equal(t, "person.carol", s.Persons[0])
	assert.Equal(t, frame.Folder("gallery"), s.Source)
	assert.Equal(t, "DEBUG", cfg.LogLevel.String())
}

func TestLoadMissingOptionsFileUsesDefaults(t *testing.T) {
	t.Setenv("ADDON_OPTIONS_PATH", filepath.Join(t.TempDir(), "missing.json"))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "bloomin_display", cfg.Frame.MediaFolder)
	assert.Equal(t, "folder", cfg.Frame.ImageSource)
}

func TestLoadRejectsMalformedOptions(t *testing.T) {
	t.Setenv("ADDON_OPTIONS_PATH", writeOptions(t, "{"))
	_, err := Load()
	assert.Error(t, err)
}

func TestSettingsValidation(t *testing.T) {
	base := func() Config {
		o := defaultFrameOptions()
		o.Host = "192.168.1.50"
		o.PersonEntities = []string{"person.alice"}
		return Config{Frame: o}
	}
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"ble without address", func(c *Config) { c.Frame.UseBLEWake = true }, "ble_mac_address"},
		{"malformed address", func(c *Config) { c.Frame.UseBLEWake = true; c.Frame.BLEMACAddress = "AA:BB:CC" }, "ble_mac_address"},
		{"no host", func(c *Config) { c.Frame.Host = "" }, "frame_host"},
		{"no persons", func(c *Config) { c.Frame.PersonEntities = nil }, "person_entities"},
		{"not a person", func(c *Config) { c.Frame.PersonEntities = []string{"sensor.door"} }, "person_entities"},
		{"file without path", func(c *Config) { c.Frame.ImageSource = "file" }, "image_path"},
		{"bad style", func(c *Config) { c.Frame.OverlayStyle = "sparkles" }, "overlay_style"},
		{"bad corner", func(c *Config) { c.Frame.OverlayPosition = "center" }, "overlay_position"},
		{"media player without entity", func(c *Config) { c.Frame.Delivery = "media_player" }, "media_player_entity_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			_, err := cfg.Settings()
			var verr *frame.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	cfg := base()
	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Empty(t, s.BLEAddress, "BLE enabled without use_ble_wake")
}
