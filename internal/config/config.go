package config

import (
	"encoding/json"
	"errors"
	"os"
)

type Config struct {
	Database struct {
		Host               string `json:"host"`
		Port               uint64 `json:"port"`
		Username           string `json:"username"`
		Password           string `json:"password"`
		Database           string `json:"database"`
		UseTLS             bool   `json:"use_tls"`
		ConnectTimeout     string `json:"connect_timeout"`
		SocketTimeout      string `json:"socket_timeout"`
		ConnectIdleTimeout string `json:"connect_idle_timeout"`
		OperationTimeout   string `json:"operation_timeout"`
		Heartbeat          string `json:"heartbeat"`
		MinPoolSize        uint64 `json:"min_pool_size"`
		MaxPoolSize        uint64 `json:"max_pool_size"`
	} `json:"database"`
	Gateway struct {
		AllowedOrigins       []string `json:"allowed_origins"`
		ReadinessInterval    string   `json:"readiness_interval"`
		ReadinessMaxAttempts int      `json:"readiness_max_attempts"`
		LookupTimeout        string   `json:"lookup_timeout"`
	} `json:"gateway"`
	DebugMode bool   `json:"debug_mode"`
	AppName   string `json:"app_name"`
	AppPort   int    `json:"app_port"`
}

var config Config
var initialized = false

func ReadConfig() (Config, error) {
	bytes, err := os.ReadFile("config.json")

	if err != nil {
		writer, _ := os.OpenFile("config.json", os.O_RDONLY|os.O_CREATE, 0777)
		data, _ := json.MarshalIndent(config, "", "\t")
		_, _ = writer.Write(data)
		_ = writer.Close()
		return config, errors.New("the configuration file does not exist and has been created. Please try again after editing the configuration file")
	}

	err = json.Unmarshal(bytes, &config)

	if err != nil {
		return config, errors.New("the configuration file does not contain valid JSON")
	}

	applyDefaults(&config)
	initialized = true
	return config, nil
}

func GetConfig() (Config, error) {
	if initialized {
		return config, nil
	}
	return ReadConfig()
}

func applyDefaults(cfg *Config) {
	if cfg.AppPort == 0 {
		cfg.AppPort = 4001
	}
	if cfg.Gateway.ReadinessMaxAttempts == 0 {
		cfg.Gateway.ReadinessMaxAttempts = 5
	}
	if cfg.Gateway.ReadinessInterval == "" {
		cfg.Gateway.ReadinessInterval = "1s"
	}
	if cfg.Gateway.LookupTimeout == "" {
		cfg.Gateway.LookupTimeout = "5s"
	}
	if cfg.Database.OperationTimeout == "" {
		cfg.Database.OperationTimeout = "5s"
	}
}
