// Package config loads server and address-map configuration via viper,
// supporting YAML/JSON files with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/lattice-iot/modbusd/datastore"
)

// DatastoreKind names which DataStore backend to construct.
type DatastoreKind string

const (
	DatastoreMemory DatastoreKind = "memory"
	DatastoreRedis  DatastoreKind = "redis"
)

// ServerConfig is the full set of ambient server settings, loaded from a
// config file and/or MODBUSD_-prefixed environment variables.
type ServerConfig struct {
	Host           string        `mapstructure:"host" yaml:"host"`
	Port           int           `mapstructure:"port" yaml:"port"`
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
	Datastore      DatastoreKind `mapstructure:"datastore" yaml:"datastore"`
	Redis          RedisConfig   `mapstructure:"redis" yaml:"redis"`
	AddressMapFile string        `mapstructure:"address_map_file" yaml:"address_map_file,omitempty"`
}

// RedisConfig holds the external-KV backend's connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// LoadServerConfig reads server configuration from configPath (or, if empty,
// from ./config.yaml, ./configs/config.yaml, or $HOME/.modbusd/config.yaml),
// then applies MODBUSD_-prefixed environment variable overrides. A config
// file that does not exist is not an error: the defaults apply.
func LoadServerConfig(configPath string) (*ServerConfig, error) {
	v := viper.New()
	setServerDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath(defaultConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read server config: %w", err)
		}
	}

	v.SetEnvPrefix("MODBUSD")
	v.AutomaticEnv()

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal server config: %w", err)
	}
	return &cfg, nil
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 502)
	v.SetDefault("log_level", "info")
	v.SetDefault("datastore", string(DatastoreMemory))
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
}

// WriteServerConfig serializes cfg as YAML to path, overwriting any existing
// file. Used by operators to capture a running server's effective config
// (defaults + file + env overrides) as a reusable config file.
func WriteServerConfig(path string, cfg *ServerConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal server config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write server config %s: %w", path, err)
	}
	return nil
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".modbusd")
}

// LoadAddressMap reads an address-map document from path: top-level keys
// coils|discrete_inputs|holding_registers|input_registers, each a mapping
// from stringified address to {key, encoding, part, initial_value}, where
// encoding is the single-character tag ("h", "H", "e", "f", ...) documented
// for the external-KV backend, not its numeric byte value.
func LoadAddressMap(path string) (*datastore.AddressMap, []string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("config: read address map %s: %w", path, err)
	}

	var raw map[string]map[string]datastore.AddressMapEntry
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		encodingTagDecodeHook,
	)
	if err := v.Unmarshal(&raw, viper.DecodeHook(decodeHook)); err != nil {
		return nil, nil, fmt.Errorf("config: unmarshal address map %s: %w", path, err)
	}

	m, warnings := datastore.NewAddressMap(raw)
	return m, warnings, nil
}

// encodingTagDecodeHook converts the on-disk single-character encoding
// string ("h", "H", "e", "f", ...) into the byte tag datastore.AddressMapEntry
// stores internally. mapstructure has no built-in string->byte conversion,
// so without this hook a document written in the documented form
// (encoding: h) fails to unmarshal.
func encodingTagDecodeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Uint8 {
		return data, nil
	}
	s, _ := data.(string)
	if len(s) != 1 {
		return nil, fmt.Errorf("config: encoding tag must be a single character, got %q", s)
	}
	return s[0], nil
}
