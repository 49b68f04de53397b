package fernet

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidSize   = errors.New("fernet: size must be positive")
	ErrInvalidLength = errors.New("fernet: length must be positive")
)

// charset uses URL-safe base64 characters so generated secrets can travel in
// URLs and config files unescaped.
var charset = [64]byte{
	'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M',
	'N', 'O', 'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z',
	'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm',
	'n', 'o', 'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y', 'z',
	'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '-', '_',
}

const charsetMask byte = 0x3F

// SecretGenerator produces cryptographically secure keys and secret strings
// from an injectable entropy source.
type SecretGenerator struct {
	reader io.Reader
}

// NewSecretGenerator creates a generator with the given entropy source.
// If no reader is provided, crypto/rand.Reader is used (recommended).
func NewSecretGenerator(readers ...io.Reader) *SecretGenerator {
	reader := rand.Reader
	if len(readers) > 0 && readers[0] != nil {
		reader = readers[0]
	}
	return &SecretGenerator{reader: reader}
}

// Key returns cryptographically secure random bytes of the requested size.
func (g *SecretGenerator) Key(size int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	result := make([]byte, size)
	if _, err := io.ReadFull(g.reader, result); err != nil {
		return nil, fmt.Errorf("fernet: entropy source read failed: %w", err)
	}
	return result, nil
}

// FernetKey returns an encoded 64-byte key accepted by New.
func (g *SecretGenerator) FernetKey() (string, error) {
	return generateKey(g.reader)
}

// String returns a URL-safe secret string. The charset size is a power of two,
// so masking each random byte keeps the selection uniform with no modulo bias.
func (g *SecretGenerator) String(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}
	buf, err := g.Key(length)
	if err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = charset[buf[i]&charsetMask]
	}
	return string(buf), nil
}

// Base64 returns a raw URL-safe base64 encoded secret of size random bytes.
func (g *SecretGenerator) Base64(size int) (string, error) {
	buf, err := g.Key(size)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ReplaceInEnvFile generates a fresh Fernet key and sets it under key in a
// .env file, creating the file or appending the key as needed.
func (g *SecretGenerator) ReplaceInEnvFile(filePath, key string) error {
	secret, err := g.FernetKey()
	if err != nil {
		return err
	}
	return replaceInEnvFile(filePath, key, secret)
}

// ReplaceInJSONFile generates a fresh Fernet key and sets it in a JSON file.
func (g *SecretGenerator) ReplaceInJSONFile(filePath, key string) error {
	secret, err := g.FernetKey()
	if err != nil {
		return err
	}
	return replaceInJSONFile(filePath, key, secret)
}

// ReplaceInYAMLFile generates a fresh Fernet key and sets it in a YAML file.
func (g *SecretGenerator) ReplaceInYAMLFile(filePath, key string) error {
	secret, err := g.FernetKey()
	if err != nil {
		return err
	}
	return replaceInYAMLFile(filePath, key, secret)
}

func replaceInEnvFile(filePath, key, value string) error {
	content, err := os.ReadFile(filePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read file: %w", err)
	}

	lines := strings.Split(string(content), "\n")
	keyFound := false
	keyPattern := regexp.MustCompile(`^` + regexp.QuoteMeta(key) + `=`)

	for i, line := range lines {
		if keyPattern.MatchString(line) {
			lines[i] = fmt.Sprintf("%s=%s", key, value)
			keyFound = true
			break
		}
	}
	if !keyFound {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}

	return os.WriteFile(filePath, []byte(strings.Join(lines, "\n")), 0600)
}

func replaceInJSONFile(filePath, key, value string) error {
	content, err := os.ReadFile(filePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var data map[string]any
	if len(content) > 0 {
		if err := json.Unmarshal(content, &data); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
	} else {
		data = make(map[string]any)
	}
	data[key] = value

	updated, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return os.WriteFile(filePath, updated, 0600)
}

func replaceInYAMLFile(filePath, key, value string) error {
	content, err := os.ReadFile(filePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var data map[string]any
	if len(content) > 0 {
		if err := yaml.Unmarshal(content, &data); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	} else {
		data = make(map[string]any)
	}
	data[key] = value

	updated, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return os.WriteFile(filePath, updated, 0600)
}

// Global instance for package-level functions.
var defaultGenerator = NewSecretGenerator()

// GenerateSecretString returns a URL-safe random string of the given length.
func GenerateSecretString(length int) (string, error) {
	return defaultGenerator.String(length)
}

// GenerateBase64Secret returns a base64-encoded secret of the given byte size.
func GenerateBase64Secret(size int) (string, error) {
	return defaultGenerator.Base64(size)
}

// GenerateKeyInEnvFile generates a Fernet key and sets it in a .env file.
func GenerateKeyInEnvFile(filePath, key string) error {
	return defaultGenerator.ReplaceInEnvFile(filePath, key)
}

// GenerateKeyInJSONFile generates a Fernet key and sets it in a JSON file.
func GenerateKeyInJSONFile(filePath, key string) error {
	return defaultGenerator.ReplaceInJSONFile(filePath, key)
}

// GenerateKeyInYAMLFile generates a Fernet key and sets it in a YAML file.
func GenerateKeyInYAMLFile(filePath, key string) error {
	return defaultGenerator.ReplaceInYAMLFile(filePath, key)
}
