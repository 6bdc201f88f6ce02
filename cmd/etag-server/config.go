package main

import (
	"os"

	"github.com/always-cache/etag"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        int    `yaml:"port"`
	MinimumSize int    `yaml:"minimumSize"`
	Streaming   bool   `yaml:"streaming"`
	DB          string `yaml:"db"`
	LogFile     string `yaml:"logFile"`
}

func defaultConfig() Config {
	return Config{
		Port:        8080,
		MinimumSize: etag.DefaultMinimumSize,
		DB:          "memory",
	}
}

// getConfig reads filename on top of the defaults.
func getConfig(filename string) (Config, error) {
	config := defaultConfig()
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}
