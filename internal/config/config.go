package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath      = "config.toml"
	DefaultHTTPAddr        = ":8080"
	DefaultJWTExpiresIn    = "24h"
	DefaultPGHost          = "127.0.0.1"
	DefaultPGPort          = 5432
	DefaultPGUser          = "postgres"
	DefaultPGDatabase      = "hakim"
	DefaultPGSSLMode       = "disable"
	DefaultCompletionURL   = "https://api.openai.com/v1"
	DefaultCompletionModel = "gpt-4o-mini"
	DefaultSpeechVoice     = "alloy"
	DefaultAudioBucket     = "hakim-audio"
	DefaultUltraMsgBaseURL = "https://api.ultramsg.com"
)

type Config struct {
	Log        LogConfig        `toml:"log"`
	Server     ServerConfig     `toml:"server"`
	Admin      AdminConfig      `toml:"admin"`
	Auth       AuthConfig       `toml:"auth"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Completion CompletionConfig `toml:"completion"`
	Speech     SpeechConfig     `toml:"speech"`
	Storage    StorageConfig    `toml:"storage"`
	Twilio     TwilioConfig     `toml:"twilio"`
	UltraMsg   UltraMsgConfig   `toml:"ultramsg"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AdminConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

type PostgresConfig struct {
	Host     string `toml:"host" validate:"required"`
	Port     int    `toml:"port" validate:"gt=0"`
	User     string `toml:"user" validate:"required"`
	Password string `toml:"password"`
	Database string `toml:"database" validate:"required"`
	SSLMode  string `toml:"sslmode"`
}

// CompletionConfig configures the OpenAI-compatible text-generation service.
type CompletionConfig struct {
	BaseURL        string `toml:"base_url" validate:"required,url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model" validate:"required"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// SpeechConfig configures the transcription and speech-synthesis services.
// An empty base URL disables voice handling.
type SpeechConfig struct {
	BaseURL            string `toml:"base_url" validate:"omitempty,url"`
	APIKey             string `toml:"api_key"`
	TranscriptionModel string `toml:"transcription_model"`
	SynthesisModel     string `toml:"synthesis_model"`
	Voice              string `toml:"voice"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
}

// StorageConfig configures the object store holding synthesized audio.
type StorageConfig struct {
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Bucket          string `toml:"bucket"`
	UseSSL          bool   `toml:"use_ssl"`
}

type TwilioConfig struct {
	AccountSID string `toml:"account_sid"`
	AuthToken  string `toml:"auth_token"`
}

type UltraMsgConfig struct {
	BaseURL  string `toml:"base_url"`
	Instance string `toml:"instance"`
	Token    string `toml:"token"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Admin: AdminConfig{
			Username: "admin",
			Password: "change-your-password-here",
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Completion: CompletionConfig{
			BaseURL:        DefaultCompletionURL,
			Model:          DefaultCompletionModel,
			TimeoutSeconds: 30,
		},
		Speech: SpeechConfig{
			TranscriptionModel: "whisper-1",
			SynthesisModel:     "tts-1",
			Voice:              DefaultSpeechVoice,
			TimeoutSeconds:     60,
		},
		Storage: StorageConfig{
			Bucket: DefaultAudioBucket,
		},
		UltraMsg: UltraMsgConfig{
			BaseURL: DefaultUltraMsgBaseURL,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
