// fernet-secret generates Fernet256 keys, injects them into configuration
// files, and performs ad-hoc encryption and decryption of payloads.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/oddbit-project/fernet256/fernet"
)

const version = "1.0.0"

var ttlUnitMultipliers = map[string]time.Duration{
	"":        time.Second,
	"s":       time.Second,
	"sec":     time.Second,
	"secs":    time.Second,
	"second":  time.Second,
	"seconds": time.Second,
	"m":       time.Minute,
	"min":     time.Minute,
	"mins":    time.Minute,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"h":       time.Hour,
	"hr":      time.Hour,
	"hrs":     time.Hour,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"d":       24 * time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
}

type Config struct {
	FileType        string
	FilePath        string
	Key             string
	Passphrase      string
	Salt            string
	Iterations      int
	TTLInput        string
	TTL             time.Duration
	Verbose         bool
	ShowVersion     bool
	CopyToClipboard bool
	EncryptPayload  bool
	DecryptToken    bool
	SecretKeyInput  string
	Payload         string
	TokenInput      string
	Backup          bool
}

func main() {
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("fernet-secret v%s\n", version)
		os.Exit(0)
	}

	if err := validateConfig(config); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if config.DecryptToken {
		if err := runDecryption(config); err != nil {
			log.Fatalf("Token decryption failed: %v", err)
		}
		return
	}

	if config.EncryptPayload {
		if err := runEncryption(config); err != nil {
			log.Fatalf("Payload encryption failed: %v", err)
		}
		return
	}

	if err := runKeyGeneration(config); err != nil {
		log.Fatalf("Key generation failed: %v", err)
	}
}

func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.FileType, "type", "", "Configuration file type (env, json, yaml, yml)")
	flag.StringVar(&config.FileType, "t", "", "Configuration file type (shorthand)")
	flag.StringVar(&config.FilePath, "file", "", "Path to configuration file")
	flag.StringVar(&config.FilePath, "f", "", "Path to configuration file (shorthand)")
	flag.StringVar(&config.Key, "key-name", "", "Key name to set/update in the configuration file")
	flag.StringVar(&config.Key, "k", "", "Key name to set/update (shorthand)")
	flag.StringVar(&config.Passphrase, "passphrase", "", "Derive the key from a passphrase instead of random bytes")
	flag.StringVar(&config.Salt, "salt", "", "Salt for passphrase derivation")
	flag.IntVar(&config.Iterations, "iterations", 0, "PBKDF2 iteration count (0 selects the default)")
	flag.BoolVar(&config.CopyToClipboard, "copy", false, "Copy the result to the clipboard")
	flag.BoolVar(&config.CopyToClipboard, "c", false, "Copy the result to the clipboard (shorthand)")
	flag.BoolVar(&config.EncryptPayload, "encrypt", false, "Encrypt -payload with -secret-key")
	flag.BoolVar(&config.DecryptToken, "decrypt", false, "Decrypt -token with -secret-key")
	flag.StringVar(&config.SecretKeyInput, "secret-key", "", "Encoded 64-byte Fernet256 key for encrypt/decrypt")
	flag.StringVar(&config.Payload, "payload", "", "Payload to encrypt")
	flag.StringVar(&config.TokenInput, "token", "", "Token to decrypt")
	flag.StringVar(&config.TTLInput, "ttl", "", "Maximum token age for decryption (e.g. 30s, 15m, 2h, 1d)")
	flag.BoolVar(&config.Backup, "backup", true, "Create backup of the original file before writing")
	noBackup := flag.Bool("no-backup", false, "Disable backup creation")
	flag.BoolVar(&config.Verbose, "verbose", true, "Enable verbose output")
	flag.BoolVar(&config.Verbose, "v", true, "Enable verbose output (shorthand)")
	showVersion := flag.Bool("version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "fernet-secret v%s - Generate Fernet256 keys and encrypt/decrypt tokens\n\n", version)
		fmt.Fprintf(os.Stderr, "USAGE:\n")
		fmt.Fprintf(os.Stderr, "  fernet-secret [options]\n\n")
		fmt.Fprintf(os.Stderr, "EXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  fernet-secret -copy\n")
		fmt.Fprintf(os.Stderr, "  fernet-secret -t env -f .env -k FERNET_KEY\n")
		fmt.Fprintf(os.Stderr, "  fernet-secret -t yaml -f config.yaml -k fernet_key --no-backup\n")
		fmt.Fprintf(os.Stderr, "  fernet-secret -passphrase hunter2 -salt deploy-2026\n")
		fmt.Fprintf(os.Stderr, "  fernet-secret -encrypt -secret-key $KEY -payload 'secret message'\n")
		fmt.Fprintf(os.Stderr, "  fernet-secret -decrypt -secret-key $KEY -token $TOKEN -ttl 1h\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	config.ShowVersion = *showVersion
	if *noBackup {
		config.Backup = false
	}
	return config
}

func validateConfig(config *Config) error {
	if config.EncryptPayload && config.DecryptToken {
		return fmt.Errorf("-encrypt and -decrypt are mutually exclusive")
	}
	if config.EncryptPayload || config.DecryptToken {
		if config.SecretKeyInput == "" {
			return fmt.Errorf("a secret key is required (-secret-key flag)")
		}
	}
	if config.DecryptToken && config.TokenInput == "" {
		return fmt.Errorf("a token is required (-token flag)")
	}
	if config.Passphrase != "" && config.Salt == "" {
		return fmt.Errorf("passphrase derivation requires a salt (-salt flag)")
	}
	if config.Passphrase != "" && config.FilePath != "" {
		return fmt.Errorf("passphrase-derived keys cannot be written to configuration files; print or copy them instead")
	}
	if config.FilePath != "" || config.FileType != "" || config.Key != "" {
		if config.FileType == "" {
			return fmt.Errorf("file type is required (-t flag)")
		}
		if config.FilePath == "" {
			return fmt.Errorf("file path is required (-f flag)")
		}
		if config.Key == "" {
			return fmt.Errorf("key name is required (-k flag)")
		}
		switch strings.ToLower(config.FileType) {
		case "env", "json", "yaml", "yml":
		default:
			return fmt.Errorf("unsupported file type '%s'. Supported types: env, json, yaml, yml", config.FileType)
		}
	}
	if config.TTLInput != "" {
		ttl, err := parseTTL(config.TTLInput)
		if err != nil {
			return err
		}
		config.TTL = ttl
	}
	return nil
}

// parseTTL understands bare seconds and unit-suffixed values like 30s, 15m,
// 2h, or 1d.
func parseTTL(input string) (time.Duration, error) {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	i := len(trimmed)
	for i > 0 && (trimmed[i-1] < '0' || trimmed[i-1] > '9') {
		i--
	}
	value, unit := trimmed[:i], trimmed[i:]
	mult, ok := ttlUnitMultipliers[unit]
	if !ok {
		return 0, fmt.Errorf("unknown TTL unit '%s'", unit)
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid TTL value '%s'", input)
	}
	return time.Duration(n) * mult, nil
}

func newKey(config *Config) (string, error) {
	if config.Passphrase != "" {
		return fernet.DeriveKey([]byte(config.Passphrase), []byte(config.Salt), config.Iterations)
	}
	return fernet.GenerateKey()
}

func runKeyGeneration(config *Config) error {
	if config.FilePath != "" {
		if config.Backup {
			if err := backupFile(config.FilePath); err != nil {
				return err
			}
		}
		var err error
		switch strings.ToLower(config.FileType) {
		case "env":
			err = fernet.GenerateKeyInEnvFile(config.FilePath, config.Key)
		case "json":
			err = fernet.GenerateKeyInJSONFile(config.FilePath, config.Key)
		case "yaml", "yml":
			err = fernet.GenerateKeyInYAMLFile(config.FilePath, config.Key)
		}
		if err != nil {
			return err
		}
		if config.Verbose {
			fmt.Printf("✓ Fernet256 key set for '%s' in %s\n", config.Key, config.FilePath)
		}
		return nil
	}

	key, err := newKey(config)
	if err != nil {
		return err
	}

	if config.CopyToClipboard {
		if err := clipboard.WriteAll(key); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
		if config.Verbose {
			fmt.Printf("✓ Key ready (copied to clipboard) [len=%d]\n", len(key))
		}
		return nil
	}

	fmt.Println(key)
	return nil
}

func backupFile(filePath string) error {
	content, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return os.WriteFile(filePath+".bak", content, 0600)
}

func runEncryption(config *Config) error {
	cipher, err := fernet.New(config.SecretKeyInput)
	if err != nil {
		return err
	}
	token, err := cipher.Encrypt([]byte(config.Payload))
	if err != nil {
		return err
	}

	if config.CopyToClipboard {
		if err := clipboard.WriteAll(token); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
		if config.Verbose {
			fmt.Printf("✓ Encrypted token ready (copied to clipboard) [len=%d]\n", len(token))
		}
		return nil
	}

	fmt.Println(token)
	return nil
}

func runDecryption(config *Config) error {
	cipher, err := fernet.New(config.SecretKeyInput)
	if err != nil {
		return err
	}
	plaintext, err := cipher.DecryptWithTTL(config.TokenInput, config.TTL)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", plaintext)
	return nil
}
