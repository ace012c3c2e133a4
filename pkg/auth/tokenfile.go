package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// TokenFile holds persisted credentials for CLI-style consumers: the
// long-lived device token and, when available, the last session token.
type TokenFile struct {
	DeviceToken  string    `json:"device_token"`
	SessionToken string    `json:"session_token,omitempty"`
	DeviceID     string    `json:"device_id"`
	SavedAt      time.Time `json:"saved_at"`
}

// TokenFilePath returns the default path for the token file.
func TokenFilePath() string {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, _ := os.UserHomeDir()
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "rmbridge", "token.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "rmbridge", "token.json")
}

// SaveTokenFile writes a token file to path, creating parent directories.
// An empty path uses the default location.
func SaveTokenFile(path string, tf *TokenFile) error {
	if path == "" {
		path = TokenFilePath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadTokenFile reads a token file from path (default location when empty).
func LoadTokenFile(path string) (*TokenFile, error) {
	if path == "" {
		path = TokenFilePath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tf TokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, err
	}
	return &tf, nil
}

// DeleteTokenFile removes the saved token file.
func DeleteTokenFile(path string) error {
	if path == "" {
		path = TokenFilePath()
	}
	return os.Remove(path)
}
