package core

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"filippo.io/age"
	"github.com/goccy/go-yaml"
	"github.com/hay-kot/citests/pkgs/fcrypt"
	"github.com/rs/zerolog/log"
)

// Environ returns the extra KEY=VALUE pairs every command runs with. Values
// from exec.env come first, then env files in the order they are listed, so
// later files win.
func (c ConfigFile) Environ() ([]string, error) {
	vars := map[string]string{}
	maps.Copy(vars, c.Exec.Env)

	var identity age.Identity
	readIdentity := func() (age.Identity, error) {
		if identity != nil {
			return identity, nil
		}
		id, err := c.Age.ReadIdentity()
		if err != nil {
			return nil, err
		}
		identity = id
		return id, nil
	}

	for _, ef := range c.Exec.EnvFiles {
		fileVars, err := loadEnvFile(ef, readIdentity)
		if err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", ef.Path, err)
		}

		maps.Copy(vars, fileVars)
	}

	env := make([]string, 0, len(vars))
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		env = append(env, k+"="+vars[k])
	}

	return env, nil
}

// loadEnvFile reads one env file. Vault files are decrypted from <path>.age;
// the identity is only read when such a file exists.
func loadEnvFile(ef EnvFile, readIdentity func() (age.Identity, error)) (map[string]string, error) {
	path := ef.Path

	if ef.IsVault {
		plain := strings.TrimSuffix(path, ".age")
		encrypted := plain + ".age"

		_, err := os.Stat(encrypted)
		switch {
		case err == nil:
			identity, err := readIdentity()
			if err != nil {
				return nil, fmt.Errorf("%s is a vault: %w", encrypted, err)
			}
			data, err := decryptFile(encrypted, identity)
			if err != nil {
				return nil, err
			}
			return parseEnv(data)
		case !os.IsNotExist(err):
			return nil, err
		}

		// Decrypted for editing with 'citests decrypt'
		if _, err := os.Stat(plain); err == nil {
			log.Warn().Str("path", plain).Msg("vault file is not encrypted, reading plaintext")
			path = plain
		} else {
			log.Warn().Str("path", encrypted).Msg("vault file does not exist, skipping")
			return nil, nil
		}
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Warn().Str("path", path).Msg("env file does not exist, skipping")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return parseEnv(data)
}

func decryptFile(path string, identity age.Identity) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var buff bytes.Buffer
	if err := fcrypt.DecryptReader(file, &buff, identity); err != nil {
		return nil, err
	}

	return buff.Bytes(), nil
}

// parseEnv decodes a flat YAML mapping of variable names to scalar values.
func parseEnv(data []byte) (map[string]string, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	vars := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("value for %s must be a scalar", k)
		case nil:
			vars[k] = ""
		default:
			vars[k] = fmt.Sprint(v)
		}
	}

	return vars, nil
}
