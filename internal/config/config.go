package config

import (
	"encoding/json"
	"os"

	"voucher-node/internal/logger"
)

// DBConfig holds the database connection parameters for the durable record
// replica.
type DBConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	Port     int    `json:"port"`
	SSLMode  string `json:"sslmode"`
	TimeZone string `json:"timezone"`
}

// Relay holds the information for one record relay endpoint.
type Relay struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"` // "tcp" or "memory"
	Address string `json:"address"`
}

// Config holds the application's configuration values.
type Config struct {
	ServerPort       string        `json:"server_port"`
	IssuerID         string        `json:"issuer_id"`
	IssuerPrivateKey string        `json:"issuer_private_key"` // hex, 32 bytes; generated at boot when empty
	Relays           []Relay       `json:"relays"`
	PublishTimeoutMS int           `json:"publish_timeout_ms"`
	QueryTimeoutMS   int           `json:"query_timeout_ms"`
	Database         DBConfig      `json:"database"`
	Logger           logger.Config `json:"logger"`
}

// LoadConfig reads the configuration from a file and returns a Config struct.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	config := &Config{}
	err = decoder.Decode(config)
	if err != nil {
		return nil, err
	}

	if config.PublishTimeoutMS <= 0 {
		config.PublishTimeoutMS = 2000
	}
	if config.QueryTimeoutMS <= 0 {
		config.QueryTimeoutMS = 3000
	}

	return config, nil
}
