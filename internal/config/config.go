// Package config handles pipeline configuration
package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all pipeline settings. Values come from an optional YAML
// file (CONFIG_PATH or ./config.yaml) with environment variables taking
// precedence over both the file and the defaults.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`

	// Collaborator service endpoints
	DiarizeURL    string  `yaml:"diarize_url"`
	TranscribeURL string  `yaml:"transcribe_url"`
	CallTimeout   float64 `yaml:"call_timeout"` // seconds, per collaborator call

	// Audio
	SampleRate           int      `yaml:"sample_rate"`
	CaptureEnabled       bool     `yaml:"capture_enabled"`
	ExcludedAudioDevices []string `yaml:"excluded_audio_devices"`

	// Chunking (seconds)
	ChunkDuration    float64 `yaml:"chunk_duration"`
	ChunkOverlap     float64 `yaml:"chunk_overlap"`
	MinChunkDuration float64 `yaml:"min_chunk_duration"`

	// Speaker label stabilization
	RequiredConsecutive  int     `yaml:"required_consecutive"`
	InheritFloor         float64 `yaml:"inherit_floor"`           // seconds
	MinDurationForChange float64 `yaml:"min_duration_for_change"` // seconds
}

// Load reads configuration from file and environment.
func Load() *Config {
	cfg := defaults()
	loadFile(cfg)
	applyEnv(cfg)
	return cfg
}

func defaults() *Config {
	return &Config{
		HTTPAddr:             ":8000",
		DiarizeURL:           "http://localhost:9090",
		TranscribeURL:        "http://localhost:9091",
		CallTimeout:          30.0,
		SampleRate:           16000,
		CaptureEnabled:       true,
		ExcludedAudioDevices: []string{"iphone", "teams"},
		ChunkDuration:        10.0,
		ChunkOverlap:         1.0,
		MinChunkDuration:     1.0,
		RequiredConsecutive:  2,
		InheritFloor:         0.3,
		MinDurationForChange: 0.5,
	}
}

func loadFile(cfg *Config) {
	path := getEnv("CONFIG_PATH", "config.yaml")
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	_ = yaml.NewDecoder(f).Decode(cfg)
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DiarizeURL = getEnv("DIARIZE_URL", cfg.DiarizeURL)
	cfg.TranscribeURL = getEnv("TRANSCRIBE_URL", cfg.TranscribeURL)
	cfg.CallTimeout = getEnvFloat("CALL_TIMEOUT", cfg.CallTimeout)
	cfg.SampleRate = getEnvInt("SAMPLE_RATE", cfg.SampleRate)
	cfg.CaptureEnabled = getEnvBool("CAPTURE_ENABLED", cfg.CaptureEnabled)
	cfg.ExcludedAudioDevices = getEnvList("EXCLUDED_AUDIO_DEVICES", cfg.ExcludedAudioDevices)
	cfg.ChunkDuration = getEnvFloat("CHUNK_DURATION", cfg.ChunkDuration)
	cfg.ChunkOverlap = getEnvFloat("CHUNK_OVERLAP", cfg.ChunkOverlap)
	cfg.MinChunkDuration = getEnvFloat("MIN_CHUNK_DURATION", cfg.MinChunkDuration)
	cfg.RequiredConsecutive = getEnvInt("REQUIRED_CONSECUTIVE", cfg.RequiredConsecutive)
	cfg.InheritFloor = getEnvFloat("INHERIT_FLOOR", cfg.InheritFloor)
	cfg.MinDurationForChange = getEnvFloat("MIN_DURATION_FOR_CHANGE", cfg.MinDurationForChange)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
