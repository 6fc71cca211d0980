// seehuhn.de/go/screens - a cache for compiled halftone screens
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


// Package config reads the settings of the screen tools.
//
// Settings are taken from a TOML file and can be overridden by environment
// variables with prefix SCREENS_, for example SCREENS_STORE_DIR or
// SCREENS_PROTECT_VENDOR_KEY.
package config

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"seehuhn.de/go/screens/screenfile"
)

// EnvPrefix is the prefix of all environment variables read by [Load].
const EnvPrefix = "SCREENS"

// Config holds the settings of the screen tools.
type Config struct {
	Store   StoreConfig
	Protect ProtectConfig
	Log     LogConfig
}

// StoreConfig describes the screen file directory.
type StoreConfig struct {
	Dir     string
	Passkey string

	// ByteOrder is one of "native", "big" or "little".
	ByteOrder string `mapstructure:"byte_order"`
}

// ProtectConfig holds the keys for protected screens.
type ProtectConfig struct {
	VendorKey string `mapstructure:"vendor_key"`

	// Customer is the licensee name.
	Customer string

	// Device is either a UUID, or "host" to derive the device id from the
	// host name.
	Device string
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	Level string
}

// Load reads the configuration.
//
// If path is empty, the file named by SCREENS_CONFIG is used.  If this is
// not set either, config.toml is looked up in the "screens" subdirectory of
// the user configuration directory.  A missing file is only an error if
// the file was named explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("store.dir", defaultDir())
	v.SetDefault("store.passkey", "")
	v.SetDefault("store.byte_order", "native")
	v.SetDefault("protect.vendor_key", "")
	v.SetDefault("protect.customer", "")
	v.SetDefault("protect.device", "")
	v.SetDefault("log.level", "warn")

	v.SetConfigType("toml")
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "screens"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

func defaultDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "screens"
	}
	return filepath.Join(dir, "screens")
}

// Keys returns the protection keys described by the configuration.
func (c *Config) Keys() (screenfile.Keys, error) {
	keys := screenfile.Keys{}
	if c.Protect.VendorKey != "" {
		keys.Vendor = []byte(c.Protect.VendorKey)
	}
	if c.Protect.Customer != "" {
		keys.Customer = screenfile.CustomerID(c.Protect.Customer)
	}

	switch c.Protect.Device {
	case "":
		// no device key
	case "host":
		id, err := screenfile.DeviceIDFromHost()
		if err != nil {
			return keys, err
		}
		keys.Device = id
	default:
		id, err := uuid.Parse(c.Protect.Device)
		if err != nil {
			return keys, fmt.Errorf("invalid device id %q: %w", c.Protect.Device, err)
		}
		keys.Device = id
	}
	return keys, nil
}

// StoreOptions returns the options for opening the screen store.
func (c *Config) StoreOptions(logger *slog.Logger) (*screenfile.Options, error) {
	keys, err := c.Keys()
	if err != nil {
		return nil, err
	}

	opt := &screenfile.Options{
		Passkey: c.Store.Passkey,
		Keys:    keys,
		Logger:  logger,
	}
	switch strings.ToLower(c.Store.ByteOrder) {
	case "", "native":
		// use the machine byte order
	case "big":
		opt.ByteOrder = binary.BigEndian
	case "little":
		opt.ByteOrder = binary.LittleEndian
	default:
		return nil, fmt.Errorf("invalid byte order %q", c.Store.ByteOrder)
	}
	return opt, nil
}

// Logger returns a text logger writing to w, using the configured level.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h), nil
}
