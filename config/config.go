package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath = "."

	defaultPollInterval   = 5 * time.Second
	defaultLoginTimeout   = 15 * time.Second
	defaultFetchTimeout   = 10 * time.Second
	defaultConnectTimeout = 30 * time.Second
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port     int `json:"port" yaml:"port"`
		Timeouts struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	// Marketplace is the backend REST API the session authenticates against.
	Marketplace MarketplaceConfig `json:"marketplace" yaml:"marketplace"`

	// Wallet configures the supported connectors and the single supported chain.
	Wallet WalletConfig `json:"wallet" yaml:"wallet"`

	// SecretKey holds the process-wide shared secret used for credential derivation.
	SecretKey struct {
		Login string `json:"login" yaml:"login"`
	} `json:"secretKey" yaml:"secretKey"`

	// Store configures durable session persistence.
	Store StoreConfig `json:"store" yaml:"store"`

	// Postgres is only consulted when Store.Backend is "postgres".
	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	// Watcher configures account/chain drift polling.
	Watcher WatcherConfig `json:"watcher" yaml:"watcher"`

	// Events configures session-change event publishing.
	Events *EventsConfig `json:"events" yaml:"events"`
}

// MarketplaceConfig defines the backend API endpoints and call timeouts.
type MarketplaceConfig struct {
	BaseURL      string        `json:"baseUrl" yaml:"baseUrl"`
	LoginTimeout time.Duration `json:"loginTimeout" yaml:"loginTimeout"`
	FetchTimeout time.Duration `json:"fetchTimeout" yaml:"fetchTimeout"`
}

// WalletConfig defines connector endpoints and chain policy.
type WalletConfig struct {
	// SupportedChainID is the single chain the marketplace accepts.
	SupportedChainID int64 `json:"supportedChainId" yaml:"supportedChainId"`

	ConnectTimeout time.Duration `json:"connectTimeout" yaml:"connectTimeout"`

	Injected      *ConnectorConfig `json:"injected" yaml:"injected"`
	WalletConnect *PairingConfig   `json:"walletConnect" yaml:"walletConnect"`
	Coinbase      *ConnectorConfig `json:"coinbase" yaml:"coinbase"`
}

// ConnectorConfig points at a provider reachable over JSON-RPC.
type ConnectorConfig struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// PairingConfig configures a bridge provider that needs out-of-band approval.
type PairingConfig struct {
	BridgeURL string `json:"bridgeUrl" yaml:"bridgeUrl"`

	// PairingQRPath is where the pairing QR code PNG is written for the user to scan.
	PairingQRPath string `json:"pairingQrPath" yaml:"pairingQrPath"`
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	// Backend is "file" (default) or "postgres".
	Backend string `json:"backend" yaml:"backend"`

	// Path is the snapshot file location for the file backend.
	Path string `json:"path" yaml:"path"`
}

// WatcherConfig defines drift polling behaviour.
type WatcherConfig struct {
	PollInterval time.Duration `json:"pollInterval" yaml:"pollInterval"`
}

// EventsConfig defines session event publishing.
type EventsConfig struct {
	// LocalEndpoint, when set, receives session-change events as HTTP POSTs.
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: WALLET_SUPPORTEDCHAINID -> wallet.supportedChainId
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if strings.TrimSpace(cfg.Marketplace.BaseURL) == "" {
		return errors.New("marketplace.baseUrl must be provided")
	}
	if strings.TrimSpace(cfg.SecretKey.Login) == "" {
		return errors.New("secretKey.login must be provided")
	}
	if cfg.Wallet.SupportedChainID == 0 {
		return errors.New("wallet.supportedChainId must be provided")
	}

	if cfg.Marketplace.LoginTimeout <= 0 {
		cfg.Marketplace.LoginTimeout = defaultLoginTimeout
	}
	if cfg.Marketplace.FetchTimeout <= 0 {
		cfg.Marketplace.FetchTimeout = defaultFetchTimeout
	}
	if cfg.Wallet.ConnectTimeout <= 0 {
		cfg.Wallet.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.Watcher.PollInterval <= 0 {
		cfg.Watcher.PollInterval = defaultPollInterval
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "file"
	}
	switch cfg.Store.Backend {
	case "file":
		if cfg.Store.Path == "" {
			cfg.Store.Path = filepath.Join(defaultPath, "session.json")
		}
	case "postgres":
		if cfg.Postgres == nil {
			return errors.New("postgres must be configured when store.backend is postgres")
		}
	default:
		return errors.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}

	return nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}
