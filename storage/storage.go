// Package storage owns the host's files: configuration, per-game save
// directories, staged games and cheat lists.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

var appName = "eclipsekit"

// Init sets the application data directory name.
func Init(dataDirName string) {
	appName = dataDirName
}

const (
	savesDir   = "saves"
	cheatsDir  = "cheats"
	stagingDir = "staging"
)

// GetBaseDir returns the base directory for application data:
//   - macOS: ~/Library/Application Support/<appName>
//   - Linux: $XDG_DATA_HOME/<appName> or ~/.local/share/<appName>
//   - Windows: %APPDATA%/<appName>
func GetBaseDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", appName), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, appName), nil
	default:
		if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
			return filepath.Join(dataHome, appName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, ".local", "share", appName), nil
	}
}

// EnsureDirectories creates the data directory layout.
func EnsureDirectories() error {
	baseDir, err := GetBaseDir()
	if err != nil {
		return err
	}
	for _, dir := range []string{
		baseDir,
		filepath.Join(baseDir, savesDir),
		filepath.Join(baseDir, cheatsDir),
		filepath.Join(baseDir, stagingDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func inBaseDir(parts ...string) (string, error) {
	baseDir, err := GetBaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{baseDir}, parts...)...), nil
}

// GetConfigPath returns the default config file path.
func GetConfigPath() (string, error) {
	return inBaseDir("config.json")
}

// GetGameSaveDir returns the save directory for a game, keyed by CRC32.
func GetGameSaveDir(gameCRC string) (string, error) {
	return inBaseDir(savesDir, gameCRC)
}

// GetCheatsPath returns the cheat list file for a game, keyed by CRC32.
func GetCheatsPath(gameCRC string) (string, error) {
	return inBaseDir(cheatsDir, gameCRC+".json")
}

// GetStagingDir returns where archived games are extracted.
func GetStagingDir() (string, error) {
	return inBaseDir(stagingDir)
}

// AtomicWrite writes data to a temporary file and renames it over path, so
// readers never see a partial file.
func AtomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// AtomicWriteJSON writes data as indented JSON with AtomicWrite.
func AtomicWriteJSON(path string, data any) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return AtomicWrite(path, jsonData)
}

// ReadJSON reads and unmarshals a JSON file.
func ReadJSON(path string, data any) error {
	jsonData, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(jsonData, data); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}
