package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Auth struct {
		Secret string `yaml:"secret"`
		TTL    string `yaml:"ttl"`
	} `yaml:"auth"`
	Game struct {
		GetReady         string  `yaml:"get_ready"`
		AnswersDelay     string  `yaml:"answers_delay"`
		ResultDelay      string  `yaml:"result_delay"`
		LeaderboardDelay string  `yaml:"leaderboard_delay"`
		FinishedLinger   string  `yaml:"finished_linger"`
		MaxTimeBonus     int     `yaml:"max_time_bonus"`
		StreakStep       float64 `yaml:"streak_step"`
		MaxMultiplier    float64 `yaml:"max_multiplier"`
	} `yaml:"game"`
	Reaper struct {
		Interval string `yaml:"interval"`
		MaxAge   string `yaml:"max_age"`
	} `yaml:"reaper"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty or
// malformed.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
