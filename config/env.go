package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultUploadEndpoint = "http://localhost:3000/api/upload"
	DefaultServerPort     = 8080
	DefaultCORSOrigins    = "http://localhost:3000,http://localhost:5173,http://localhost:5174"
)

var (
	mu sync.RWMutex
	v  = newViper()
)

func newViper() *viper.Viper {
	nv := viper.New()
	nv.SetEnvPrefix("WAVSCRIBE")
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	nv.SetDefault("upload_endpoint", DefaultUploadEndpoint)
	nv.SetDefault("server_port", DefaultServerPort)
	nv.SetDefault("cors_origins", DefaultCORSOrigins)
	nv.SetDefault("upload_timeout", time.Duration(0))
	nv.SetDefault("smoothing", 0.0)
	nv.SetDefault("gin_mode", "release")
	nv.SetDefault("log.level", "INFO")
	nv.SetDefault("log.format", "text")
	nv.SetDefault("settings_file", defaultSettingsFile())

	// Unprefixed names kept for existing deployments.
	_ = nv.BindEnv("server_port", "WAVSCRIBE_SERVER_PORT", "SERVER_PORT")
	_ = nv.BindEnv("cors_origins", "WAVSCRIBE_CORS_ORIGINS", "CORS_ORIGINS")
	_ = nv.BindEnv("gin_mode", "WAVSCRIBE_GIN_MODE", "GIN_MODE")
	return nv
}

// Load resets the configuration and reads it from the environment, an
// optional .env file in the working directory and the optional config file.
func Load(cfgFile string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	nv := newViper()
	if cfgFile != "" {
		nv.SetConfigFile(cfgFile)
		if err := nv.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	mu.Lock()
	v = nv
	mu.Unlock()
	return nil
}

// Set overrides a configuration key, mainly for flags and tests
func Set(key string, value any) {
	mu.Lock()
	defer mu.Unlock()
	v.Set(key, value)
}

func get() *viper.Viper {
	mu.RLock()
	defer mu.RUnlock()
	return v
}

// GetUploadEndpoint returns the remote endpoint uploads are sent to. The
// user's saved settings take precedence over the environment.
func GetUploadEndpoint() string {
	if endpoint := getUserUploadEndpoint(); endpoint != "" {
		return endpoint
	}
	return get().GetString("upload_endpoint")
}

func GetServerPort() int {
	return get().GetInt("server_port")
}

func GetCORSOrigins() []string {
	var origins []string
	for _, o := range strings.Split(get().GetString("cors_origins"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// GetUploadTimeout returns the HTTP client timeout for uploads, 0 meaning none
func GetUploadTimeout() time.Duration {
	return get().GetDuration("upload_timeout")
}

// GetSmoothing returns the rate smoothing factor for remaining-time estimates
func GetSmoothing() float64 {
	return get().GetFloat64("smoothing")
}

func GetGinMode() string {
	return get().GetString("gin_mode")
}

func GetLogLevel() string {
	return get().GetString("log.level")
}

func GetLogFormat() string {
	return get().GetString("log.format")
}

func defaultSettingsFile() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".wavscribe-settings.json")
	}
	return filepath.Join(homeDir, ".wavscribe-settings.json")
}
