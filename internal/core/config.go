package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/goccy/go-yaml"
	"github.com/hay-kot/citests/pkgs/fcrypt"
	"github.com/rs/zerolog/log"
)

const (
	EnvPrefix = "CITESTS_"

	// DefaultConfigFile is the configuration file looked up when no path is given.
	DefaultConfigFile = "CITests.yml"
	DefaultShell      = "/bin/sh"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingTests  = fmt.Errorf("%w: missing required key 'tests'", ErrInvalidConfig)
)

type Flags struct {
	LogLevel       string
	ConfigFilePath string
}

type ConfigFile struct {
	Exec   ExecConfig        `yaml:"exec"`
	Age    Age               `yaml:"age"`
	Macros map[string]string `yaml:"macros"`

	// Tests holds the raw ordered `tests` mapping, resolved into Suite by Load.
	Tests any `yaml:"tests"`

	Suite     Suite  `yaml:"-"`
	ConfigDir string `yaml:"-"`
}

// ExecConfig controls how commands are spawned.
type ExecConfig struct {
	Shell    string            `yaml:"shell"`
	Timeout  time.Duration     `yaml:"timeout"`
	Workdir  string            `yaml:"workdir"`
	Env      map[string]string `yaml:"env"`
	EnvFiles []EnvFile         `yaml:"env_files"`
}

type EnvFile struct {
	Path    string `yaml:"path"`
	IsVault bool   `yaml:"vault"`
}

// Load reads and resolves the configuration at cfgpath. The returned error
// wraps ErrInvalidConfig for anything wrong with the document itself.
func Load(cfgpath string) (*ConfigFile, error) {
	absolutePath, err := filepath.Abs(cfgpath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absolutePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	cfg.ConfigDir = filepath.Dir(absolutePath)
	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("path", absolutePath).
		Str("shell", cfg.Exec.Shell).
		Str("workdir", cfg.Exec.Workdir).
		Int("pre_commands", len(cfg.Suite.PreCommands())).
		Int("groups", len(cfg.Suite.TestGroups())).
		Msg("loaded config")

	return cfg, nil
}

// Parse decodes a configuration document. Paths are left as written.
func Parse(data []byte) (*ConfigFile, error) {
	cfg := &ConfigFile{
		Exec: ExecConfig{
			Shell: DefaultShell,
		},
		Macros: map[string]string{},
	}

	err := yaml.UnmarshalWithOptions(data, cfg, yaml.UseOrderedMap())
	if err != nil {
		return nil, fmt.Errorf("%w:\n%s", ErrInvalidConfig, yaml.FormatError(err, false, true))
	}

	if cfg.Exec.Shell == "" {
		cfg.Exec.Shell = DefaultShell
	}

	if cfg.Exec.Timeout < 0 {
		return nil, fmt.Errorf("%w: exec.timeout must not be negative", ErrInvalidConfig)
	}

	suite, err := ResolveSuite(cfg.Tests)
	if err != nil {
		return nil, err
	}
	cfg.Suite = suite

	return cfg, nil
}

func (c *ConfigFile) resolvePaths() error {
	pr := PathResolver{configDir: c.ConfigDir}

	workdir := c.Exec.Workdir
	if workdir == "" {
		workdir = "."
	}

	resolved, err := pr.Resolve(workdir)
	if err != nil {
		return fmt.Errorf("failed to resolve workdir %s: %w", workdir, err)
	}
	c.Exec.Workdir = resolved

	for i := range c.Exec.EnvFiles {
		ef := &c.Exec.EnvFiles[i]
		if ef.Path == "" {
			return fmt.Errorf("%w: exec.env_files[%d] has no path", ErrInvalidConfig, i)
		}

		ef.Path, err = pr.Resolve(ef.Path)
		if err != nil {
			return fmt.Errorf("failed to resolve env file %s: %w", ef.Path, err)
		}
	}

	if c.Age.IdentityFile != "" {
		c.Age.IdentityFile, err = pr.Resolve(c.Age.IdentityFile)
		if err != nil {
			return fmt.Errorf("failed to resolve identity file: %w", err)
		}
	}

	return nil
}

// VaultFiles returns the plain paths of every env file stored encrypted.
func (c ConfigFile) VaultFiles() []string {
	files := []string{}

	for _, ef := range c.Exec.EnvFiles {
		if ef.IsVault {
			files = append(files, strings.TrimSuffix(ef.Path, ".age"))
		}
	}

	return files
}

type Age struct {
	Recipients   []string `yaml:"recipients"`
	IdentityFile string   `yaml:"identity_file"`
}

func (a Age) ReadIdentity() (age.Identity, error) {
	if a.IdentityFile == "" {
		return nil, fmt.Errorf("no age identity_file configured")
	}

	identityData, err := os.ReadFile(a.IdentityFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity file %s: %w", a.IdentityFile, err)
	}

	// Skip comments and empty lines, age-keygen writes both
	var keyLine string
	for _, line := range strings.Split(string(identityData), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			keyLine = line
			break
		}
	}

	if keyLine == "" {
		return nil, fmt.Errorf("no valid key found in identity file %s", a.IdentityFile)
	}

	identity, err := fcrypt.LoadPrivateKey(keyLine)
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}

	return identity, nil
}

func (a Age) ReadRecipient() (age.Recipient, error) {
	if len(a.Recipients) == 0 {
		return nil, fmt.Errorf("no age recipients configured")
	}

	recipient, err := fcrypt.LoadPublicKey(a.Recipients[0])
	if err != nil {
		return nil, err
	}

	return recipient, nil
}
