package gamesense

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// coreProps is the file SteelSeries Engine / GG writes on every start. The
// address changes each time the service restarts.
type coreProps struct {
	Address          string `json:"address"`
	EncryptedAddress string `json:"encryptedAddress,omitempty"`
}

// ConfigError means the local GameSense endpoint could not be discovered.
// It is fatal for client construction.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return "gamesense: endpoint discovery: " + e.Err.Error()
	}
	return fmt.Sprintf("gamesense: endpoint discovery (%s): %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// DefaultCorePropsPath returns where SteelSeries software publishes
// coreProps.json on this OS.
func DefaultCorePropsPath() (string, error) {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("PROGRAMDATA")
		if base == "" {
			return "", &ConfigError{Err: errors.New("PROGRAMDATA is not set")}
		}
		return filepath.Join(base, "SteelSeries", "SteelSeries Engine 3", "coreProps.json"), nil
	case "darwin":
		return "/Library/Application Support/SteelSeries Engine 3/coreProps.json", nil
	default:
		return "", &ConfigError{Err: fmt.Errorf("no SteelSeries engine on %s; set an explicit address", runtime.GOOS)}
	}
}

// ResolveAddress reads the host:port of the local GameSense service from a
// coreProps.json file.
func ResolveAddress(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ConfigError{Path: path, Err: err}
	}

	var props coreProps
	if err := json.Unmarshal(data, &props); err != nil {
		return "", &ConfigError{Path: path, Err: fmt.Errorf("malformed coreProps: %w", err)}
	}

	addr := strings.TrimSpace(props.Address)
	if addr == "" {
		return "", &ConfigError{Path: path, Err: errors.New("coreProps has no address")}
	}
	return addr, nil
}
