// Package config provides the Config struct and loader for gateway.yaml
// configuration files. Credentials are never read from the file; they come
// from the environment (optionally seeded from a .env file at bootstrap).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for gateway configuration. These are the single source of
// truth — New() references them and no other code should duplicate them.
const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 8080

	DefaultAudioDir        = "audio"
	DefaultArtifactTTL     = 3600 // seconds; <= 0 disables the janitor
	DefaultSweepInterval   = 300  // seconds
	DefaultTracingEndpoint = "https://api.smith.langchain.com"
	DefaultCallTimeout     = 30 // seconds, per outbound call

	DefaultTranscriptionModel = "whisper-1"
	DefaultSpeechModel        = "tts-1"
	DefaultSpeechVoice        = "nova"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// TracingConfig holds tracing-backend settings. The API key is environment
// only (LANGSMITH_API_KEY).
type TracingConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	APIKey   string `yaml:"-"`
}

// SpeechConfig holds speech-provider settings. The API key is environment
// only (OPENAI_API_KEY).
type SpeechConfig struct {
	TranscriptionModel string `yaml:"transcription_model,omitempty"`
	SpeechModel        string `yaml:"speech_model,omitempty"`
	Voice              string `yaml:"voice,omitempty"`
	APIKey             string `yaml:"-"`
}

// ChatConfig holds answer-pipeline settings.
type ChatConfig struct {
	// Model is the default model for the pipeline. Can be blank, which lets
	// the pipeline choose its own fallback model.
	Model string `yaml:"model,omitempty"`
}

// AudioConfig holds audio artifact storage settings. Durations are seconds.
type AudioConfig struct {
	Dir           string `yaml:"dir,omitempty"`
	ArtifactTTL   int    `yaml:"artifact_ttl,omitempty"`
	SweepInterval int    `yaml:"sweep_interval,omitempty"`
}

// Config is the top-level configuration loaded from gateway.yaml.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Tracing TracingConfig `yaml:"tracing,omitempty"`
	Speech  SpeechConfig  `yaml:"speech,omitempty"`
	Chat    ChatConfig    `yaml:"chat,omitempty"`
	Audio   AudioConfig   `yaml:"audio,omitempty"`

	// CallTimeout bounds every outbound backend/provider call, in seconds.
	CallTimeout int `yaml:"call_timeout,omitempty"`
}

// New returns a Config with all hard-coded defaults populated.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Tracing: TracingConfig{
			Endpoint: DefaultTracingEndpoint,
		},
		Speech: SpeechConfig{
			TranscriptionModel: DefaultTranscriptionModel,
			SpeechModel:        DefaultSpeechModel,
			Voice:              DefaultSpeechVoice,
		},
		Audio: AudioConfig{
			Dir:           DefaultAudioDir,
			ArtifactTTL:   DefaultArtifactTTL,
			SweepInterval: DefaultSweepInterval,
		},
		CallTimeout: DefaultCallTimeout,
	}
}

// Load reads path (if it exists), overlays it onto the defaults, then
// applies environment overrides. A missing file is not an error; the
// defaults plus environment are returned.
func Load(path string) (*Config, error) {
	cfg := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
	} else {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		mergeConfig(cfg, &fileCfg)
	}

	applyEnv(cfg)
	return cfg, nil
}

// CallTimeoutDuration returns the outbound-call timeout as a Duration.
func (c *Config) CallTimeoutDuration() time.Duration {
	return time.Duration(c.CallTimeout) * time.Second
}

// ArtifactTTLDuration returns the synthesized-artifact retention window.
func (c *Config) ArtifactTTLDuration() time.Duration {
	return time.Duration(c.Audio.ArtifactTTL) * time.Second
}

// SweepIntervalDuration returns the janitor sweep interval.
func (c *Config) SweepIntervalDuration() time.Duration {
	return time.Duration(c.Audio.SweepInterval) * time.Second
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *Config) {
	if src.Server.Host != "" {
		dst.Server.Host = src.Server.Host
	}
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if src.Tracing.Endpoint != "" {
		dst.Tracing.Endpoint = src.Tracing.Endpoint
	}
	if src.Speech.TranscriptionModel != "" {
		dst.Speech.TranscriptionModel = src.Speech.TranscriptionModel
	}
	if src.Speech.SpeechModel != "" {
		dst.Speech.SpeechModel = src.Speech.SpeechModel
	}
	if src.Speech.Voice != "" {
		dst.Speech.Voice = src.Speech.Voice
	}
	if src.Chat.Model != "" {
		dst.Chat.Model = src.Chat.Model
	}
	if src.Audio.Dir != "" {
		dst.Audio.Dir = src.Audio.Dir
	}
	if src.Audio.ArtifactTTL != 0 {
		dst.Audio.ArtifactTTL = src.Audio.ArtifactTTL
	}
	if src.Audio.SweepInterval != 0 {
		dst.Audio.SweepInterval = src.Audio.SweepInterval
	}
	if src.CallTimeout != 0 {
		dst.CallTimeout = src.CallTimeout
	}
}

// applyEnv reads environment overrides onto cfg. Credentials are only
// available through this path.
func applyEnv(cfg *Config) {
	if v := os.Getenv("GATEWAY_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GATEWAY_AUDIO_DIR"); v != "" {
		cfg.Audio.Dir = v
	}
	if v := os.Getenv("LANGSMITH_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
	cfg.Tracing.APIKey = os.Getenv("LANGSMITH_API_KEY")
	cfg.Speech.APIKey = os.Getenv("OPENAI_API_KEY")
}
