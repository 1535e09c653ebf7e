// Package config loads server and client configuration via
// github.com/spf13/viper, following the pack's own config idiom
// (ijakenorton-Roundtable/cmd/signallingserver/config): defaults, then an
// optional config file, then environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/viper"
)

// ServerConfig configures cmd/ambed.
type ServerConfig struct {
	// SerialPath is the local device URI, e.g. "usb:/dev/ttyUSB0".
	SerialPath string
	// SerialVariant selects the concrete device driver: "usb3003" or
	// "usb3000".
	SerialVariant string
	// ListenAddr is the websocket listen address, e.g. ":8443".
	ListenAddr string
	// LogLevel is a logrus level name ("debug", "info", "warn", "error").
	LogLevel string
}

// ClientConfig configures cmd/ambec.
type ClientConfig struct {
	// DeviceURI is the device to connect to, e.g. "ws:ambe.example.com:8443"
	// or "usb:/dev/ttyUSB0".
	DeviceURI string
	LogLevel  string
}

func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("ambe")
	v.AutomaticEnv()
	if configPath == "" {
		return v, nil
	}
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	return v, nil
}

// LoadServerConfig reads server configuration from configPath (YAML or
// JSON; viper picks the format from the extension), falling back to
// defaults for anything the file or environment doesn't set. A missing
// file is not an error — cmd/ambed can run entirely off defaults and
// AMBE_-prefixed environment variables.
func LoadServerConfig(configPath string) (*ServerConfig, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	v.SetDefault("serial.path", "usb:/dev/ttyUSB0")
	v.SetDefault("serial.variant", "usb3003")
	v.SetDefault("listen.addr", ":8443")
	v.SetDefault("log.level", "info")

	return &ServerConfig{
		SerialPath:    v.GetString("serial.path"),
		SerialVariant: v.GetString("serial.variant"),
		ListenAddr:    v.GetString("listen.addr"),
		LogLevel:      v.GetString("log.level"),
	}, nil
}

// LoadClientConfig reads client configuration from configPath.
func LoadClientConfig(configPath string) (*ClientConfig, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	v.SetDefault("device.uri", "usb:/dev/ttyUSB0")
	v.SetDefault("log.level", "info")

	return &ClientConfig{
		DeviceURI: v.GetString("device.uri"),
		LogLevel:  v.GetString("log.level"),
	}, nil
}
