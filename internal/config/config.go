package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the grading service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	JWTSecret              string
	OpenAIAPIKey           string
	OpenAIBaseURL          string
	GradingModel           string
	VisionModel            string
	MaxTokens              int
	Temperature            float32
	MaxImageMB             int
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// VisionEnabled reports whether image answers can be processed at all.
func (c Config) VisionEnabled() bool {
	return c.VisionModel != ""
}

// CloudinaryEnabled reports whether answer images get uploaded to object storage.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("AUTOGRADE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Autograde API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("grading.model", "gpt-4o-mini")
	v.SetDefault("vision.model", "")
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("max_image_mb", 8)
	v.SetDefault("cloudinary.folder", "autograde/answers")

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		OpenAIBaseURL:          v.GetString("openai_base_url"),
		GradingModel:           v.GetString("grading.model"),
		VisionModel:            v.GetString("vision.model"),
		MaxTokens:              v.GetInt("max_tokens"),
		Temperature:            float32(v.GetFloat64("temperature")),
		MaxImageMB:             v.GetInt("max_image_mb"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("openai api key must be provided")
	}

	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	if cfg.MaxImageMB <= 0 {
		cfg.MaxImageMB = 8
	}

	return cfg, nil
}
