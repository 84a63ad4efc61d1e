package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/hay-kot/citests/internal/core"
	"github.com/hay-kot/citests/pkgs/fcrypt"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

type EncryptCmd struct {
	coreFlags *core.Flags
	dryRun    bool
}

func NewEncryptCmd(coreFlags *core.Flags) *EncryptCmd {
	return &EncryptCmd{coreFlags: coreFlags}
}

func (ec *EncryptCmd) Register(app *cli.Command) *cli.Command {
	cmds := []*cli.Command{
		{
			Name:  "encrypt",
			Usage: "encrypt all vault env files in-place",
			Description: `Encrypts every env file marked 'vault: true' under exec.env_files using age.

The command will:
- Use the first configured age recipient (public key) for encryption
- Write <file>.age and remove the plaintext file
- Skip files that are already encrypted

With --dry-run nothing is written; the command fails when a plaintext vault
file is found, which makes it usable as a pre-commit check.`,
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:        "dry-run",
					Usage:       "report plaintext vault files without encrypting them",
					Destination: &ec.dryRun,
				},
			},
			Action: ec.encrypt,
		},
		{
			Name:  "decrypt",
			Usage: "decrypt all vault env files in-place",
			Description: `Decrypts every .age vault env file so it can be edited.

The command will:
- Use the configured age identity (private key) for decryption
- Restore the plaintext file and remove the .age version
- Skip files that are already decrypted`,
			Action: ec.decrypt,
		},
	}

	app.Commands = append(app.Commands, cmds...)
	return app
}

func (ec *EncryptCmd) encrypt(ctx context.Context, cmd *cli.Command) error {
	cfg, err := core.Load(ec.coreFlags.ConfigFilePath)
	if err != nil {
		return err
	}

	files := cfg.VaultFiles()
	if len(files) == 0 {
		log.Info().Msg("No vault files configured")
		return nil
	}

	if ec.dryRun {
		var plain []string
		for _, file := range files {
			if _, err := os.Stat(file); err == nil {
				plain = append(plain, file)
				log.Error().Str("file", file).Msg("vault file is not encrypted")
			}
		}
		if len(plain) > 0 {
			return fmt.Errorf("%d vault file(s) are not encrypted, run 'citests encrypt'", len(plain))
		}
		return nil
	}

	recipient, err := cfg.Age.ReadRecipient()
	if err != nil {
		return fmt.Errorf("failed to load public key: %w", err)
	}

	encryptedCount := 0
	for _, sourceFile := range files {
		targetFile := sourceFile + ".age"

		if _, err := os.Stat(sourceFile); os.IsNotExist(err) {
			log.Debug().Str("file", sourceFile).Msg("Source file doesn't exist, skipping")
			continue
		}

		if _, err := os.Stat(targetFile); err == nil {
			log.Warn().Str("file", targetFile).Msg("Encrypted file already exists, skipping")
			continue
		}

		log.Info().Str("source", sourceFile).Str("target", targetFile).Msg("Encrypting file")
		if err := fcrypt.EncryptFile(sourceFile, targetFile, recipient); err != nil {
			return fmt.Errorf("failed to encrypt %s: %w", sourceFile, err)
		}

		encryptedCount++
	}

	log.Info().Int("count", encryptedCount).Msg("Encryption complete")
	return nil
}

func (ec *EncryptCmd) decrypt(ctx context.Context, cmd *cli.Command) error {
	cfg, err := core.Load(ec.coreFlags.ConfigFilePath)
	if err != nil {
		return err
	}

	files := cfg.VaultFiles()
	if len(files) == 0 {
		log.Info().Msg("No vault files configured")
		return nil
	}

	identity, err := cfg.Age.ReadIdentity()
	if err != nil {
		return err
	}

	decryptedCount := 0
	for _, targetFile := range files {
		sourceFile := targetFile + ".age"

		if _, err := os.Stat(sourceFile); os.IsNotExist(err) {
			log.Debug().Str("file", sourceFile).Msg("Encrypted file doesn't exist, skipping")
			continue
		}

		if _, err := os.Stat(targetFile); err == nil {
			log.Warn().Str("file", targetFile).Msg("Decrypted file already exists, skipping")
			continue
		}

		log.Info().Str("source", sourceFile).Str("target", targetFile).Msg("Decrypting file")
		if err := fcrypt.DecryptFile(sourceFile, targetFile, identity); err != nil {
			return fmt.Errorf("failed to decrypt %s: %w", sourceFile, err)
		}

		decryptedCount++
	}

	log.Info().Int("count", decryptedCount).Msg("Decryption complete")
	return nil
}
