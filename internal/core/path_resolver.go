package core

import (
	"os"
	"path/filepath"
	"strings"
)

// PathResolver turns paths from the config file into absolute paths. Relative
// paths are rooted at the directory holding the config, and a leading '~'
// expands to the user's home directory.
type PathResolver struct {
	configDir string
}

func NewPathResolver(configDir string) PathResolver {
	return PathResolver{configDir: configDir}
}

func (pr PathResolver) Resolve(ip string) (string, error) {
	if ip == "~" || strings.HasPrefix(ip, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		ip = filepath.Join(homeDir, strings.TrimPrefix(ip, "~"))
	}

	if filepath.IsAbs(ip) {
		return filepath.Clean(ip), nil
	}

	if pr.configDir != "" {
		return filepath.Join(pr.configDir, ip), nil
	}

	return filepath.Abs(ip)
}
