package fcrypt

import (
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"filippo.io/age/armor"
)

// EncryptReader writes the armored encryption of r to w.
func EncryptReader(r io.Reader, w io.Writer, recipient age.Recipient) error {
	armorWriter := armor.NewWriter(w)

	encryptor, err := age.Encrypt(armorWriter, recipient)
	if err != nil {
		_ = armorWriter.Close()
		return fmt.Errorf("failed to create encryptor: %w", err)
	}

	if _, err = io.Copy(encryptor, r); err != nil {
		_ = encryptor.Close()
		_ = armorWriter.Close()
		return fmt.Errorf("failed to encrypt: %w", err)
	}

	// The encryptor must be closed before the armor writer to flush the last chunk.
	if err = encryptor.Close(); err != nil {
		_ = armorWriter.Close()
		return fmt.Errorf("failed to finalize encryption: %w", err)
	}
	if err = armorWriter.Close(); err != nil {
		return fmt.Errorf("failed to finalize armor: %w", err)
	}

	return nil
}

// DecryptReader writes the decryption of the armored stream r to w.
func DecryptReader(r io.Reader, w io.Writer, identity age.Identity) error {
	decryptor, err := age.Decrypt(armor.NewReader(r), identity)
	if err != nil {
		return fmt.Errorf("failed to create decryptor: %w", err)
	}

	if _, err = io.Copy(w, decryptor); err != nil {
		return fmt.Errorf("failed to decrypt: %w", err)
	}

	return nil
}

// EncryptFile encrypts inputPath into outputPath and removes inputPath.
func EncryptFile(inputPath, outputPath string, recipient age.Recipient) error {
	return transformFile(inputPath, outputPath, func(r io.Reader, w io.Writer) error {
		return EncryptReader(r, w, recipient)
	})
}

// DecryptFile decrypts inputPath into outputPath and removes inputPath.
func DecryptFile(inputPath, outputPath string, identity age.Identity) error {
	return transformFile(inputPath, outputPath, func(r io.Reader, w io.Writer) error {
		return DecryptReader(r, w, identity)
	})
}

func transformFile(inputPath, outputPath string, fn func(io.Reader, io.Writer) error) error {
	inputFile, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() {
		_ = inputFile.Close()
	}()

	outputFile, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if err := fn(inputFile, outputFile); err != nil {
		_ = outputFile.Close()
		_ = os.Remove(outputPath)
		return err
	}

	if err := outputFile.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	return os.Remove(inputPath)
}
