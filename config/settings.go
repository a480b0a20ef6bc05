package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
)

// UserSettings represents the user's personal settings
type UserSettings struct {
	UploadEndpoint string `json:"uploadEndpoint"`
}

// GetSettingsFilePath returns the path to the settings file
func GetSettingsFilePath() string {
	return get().GetString("settings_file")
}

// LoadSettings loads settings from the settings file. A missing file yields
// the effective defaults.
func LoadSettings() (*UserSettings, error) {
	data, err := os.ReadFile(GetSettingsFilePath())
	if errors.Is(err, os.ErrNotExist) {
		return &UserSettings{UploadEndpoint: get().GetString("upload_endpoint")}, nil
	}
	if err != nil {
		return nil, err
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	if settings.UploadEndpoint == "" {
		settings.UploadEndpoint = get().GetString("upload_endpoint")
	}
	return &settings, nil
}

// SaveSettings validates and writes settings to the settings file
func SaveSettings(settings *UserSettings) error {
	if err := ValidateEndpoint(settings.UploadEndpoint); err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(GetSettingsFilePath(), data, 0644)
}

// ValidateEndpoint checks that endpoint is an absolute http(s) URL
func ValidateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid upload endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upload endpoint must use http or https, got %q", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("upload endpoint %q has no host", endpoint)
	}
	return nil
}

// getUserUploadEndpoint loads the user's preferred endpoint from the settings file
func getUserUploadEndpoint() string {
	data, err := os.ReadFile(GetSettingsFilePath())
	if err != nil {
		return ""
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return ""
	}
	return settings.UploadEndpoint
}
