package core

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"filippo.io/age"
	"github.com/hay-kot/citests/pkgs/fcrypt"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestLoad_ResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, DefaultConfigFile)

	writeFile(t, cfgPath, `
exec:
  shell: /bin/bash
  timeout: 90s
  workdir: build
  env_files:
    - path: env/ci.yml
age:
  identity_file: keys/ci.txt
tests:
  pre_command:
    - "true"
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ConfigDir != dir {
		t.Errorf("ConfigDir = %q, want %q", cfg.ConfigDir, dir)
	}
	if cfg.Exec.Shell != "/bin/bash" {
		t.Errorf("Exec.Shell = %q, want /bin/bash", cfg.Exec.Shell)
	}
	if cfg.Exec.Timeout != 90*time.Second {
		t.Errorf("Exec.Timeout = %v, want 90s", cfg.Exec.Timeout)
	}
	if want := filepath.Join(dir, "build"); cfg.Exec.Workdir != want {
		t.Errorf("Exec.Workdir = %q, want %q", cfg.Exec.Workdir, want)
	}
	if want := filepath.Join(dir, "env/ci.yml"); cfg.Exec.EnvFiles[0].Path != want {
		t.Errorf("EnvFiles[0].Path = %q, want %q", cfg.Exec.EnvFiles[0].Path, want)
	}
	if want := filepath.Join(dir, "keys/ci.txt"); cfg.Age.IdentityFile != want {
		t.Errorf("Age.IdentityFile = %q, want %q", cfg.Age.IdentityFile, want)
	}
}

func TestLoad_DefaultWorkdirIsConfigDir(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "ci.yml")
	writeFile(t, cfgPath, "tests:\n  pre_command: []\n")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Exec.Workdir != dir {
		t.Errorf("Exec.Workdir = %q, want %q", cfg.Exec.Workdir, dir)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load() error = %v, want not-exist", err)
	}
	if errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load() error = %v, a missing file is not an invalid config", err)
	}
}

func TestConfigFile_Environ(t *testing.T) {
	dir := t.TempDir()

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("failed to generate identity: %v", err)
	}

	identityPath := filepath.Join(dir, "key.txt")
	writeFile(t, identityPath, "# created: today\n"+identity.String()+"\n")

	plainPath := filepath.Join(dir, "ci.yml")
	writeFile(t, plainPath, "REGISTRY: ghcr.io\nRETRIES: 3\nSHARED: from-plain\n")

	var vault bytes.Buffer
	if err := fcrypt.EncryptReader(bytes.NewBufferString("TOKEN: s3cr3t\nSHARED: from-vault\n"), &vault, identity.Recipient()); err != nil {
		t.Fatalf("EncryptReader() error = %v", err)
	}
	vaultPath := filepath.Join(dir, "secrets.yml")
	writeFile(t, vaultPath+".age", vault.String())

	cfg := ConfigFile{
		Exec: ExecConfig{
			Env: map[string]string{"SHARED": "from-env", "CI": "true"},
			EnvFiles: []EnvFile{
				{Path: plainPath},
				{Path: vaultPath, IsVault: true},
				{Path: filepath.Join(dir, "missing.yml")},
			},
		},
		Age: Age{IdentityFile: identityPath},
	}

	got, err := cfg.Environ()
	if err != nil {
		t.Fatalf("Environ() error = %v", err)
	}

	want := []string{
		"CI=true",
		"REGISTRY=ghcr.io",
		"RETRIES=3",
		"SHARED=from-vault",
		"TOKEN=s3cr3t",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Environ() = %v, want %v", got, want)
	}
}

func TestConfigFile_Environ_VaultWithoutIdentity(t *testing.T) {
	vaultPath := filepath.Join(t.TempDir(), "secrets.yml")
	writeFile(t, vaultPath+".age", "not read without an identity")

	cfg := ConfigFile{
		Exec: ExecConfig{
			EnvFiles: []EnvFile{{Path: vaultPath, IsVault: true}},
		},
	}

	if _, err := cfg.Environ(); err == nil {
		t.Error("Environ() expected error when no identity is configured")
	}
}

func TestConfigFile_Environ_DecryptedVault(t *testing.T) {
	tests := []struct {
		name  string
		path  string // as written in the config
		write string // file present on disk
		want  []string
	}{
		{
			name:  "plaintext left by decrypt",
			path:  "secrets.yml",
			write: "secrets.yml",
			want:  []string{"TOKEN=edited"},
		},
		{
			name:  "configured with .age suffix",
			path:  "secrets.yml.age",
			write: "secrets.yml",
			want:  []string{"TOKEN=edited"},
		},
		{
			name:  "neither file exists",
			path:  "secrets.yml",
			write: "",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.write != "" {
				writeFile(t, filepath.Join(dir, tt.write), "TOKEN: edited\n")
			}

			// No identity configured: the plaintext copy must not need one.
			cfg := ConfigFile{
				Exec: ExecConfig{
					EnvFiles: []EnvFile{{Path: filepath.Join(dir, tt.path), IsVault: true}},
				},
			}

			got, err := cfg.Environ()
			if err != nil {
				t.Fatalf("Environ() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Environ() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseEnv_RejectsNested(t *testing.T) {
	if _, err := parseEnv([]byte("KEY:\n  nested: true\n")); err == nil {
		t.Error("parseEnv() expected error for nested value")
	}
}

func TestConfigFile_VaultFiles(t *testing.T) {
	cfg := ConfigFile{
		Exec: ExecConfig{
			EnvFiles: []EnvFile{
				{Path: "/ci/plain.yml"},
				{Path: "/ci/secrets.yml", IsVault: true},
				{Path: "/ci/other.yml.age", IsVault: true},
			},
		},
	}

	want := []string{"/ci/secrets.yml", "/ci/other.yml"}
	if got := cfg.VaultFiles(); !reflect.DeepEqual(got, want) {
		t.Errorf("VaultFiles() = %v, want %v", got, want)
	}
}
