package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
)

// EnvPrefix prefixes every settings variable.
const EnvPrefix = "AGENTFORGE_"

// Remote backend kinds.
const (
	RemoteNone      = "none"
	RemoteConsul    = "consul"
	RemoteEtcd      = "etcd"
	RemoteZookeeper = "zookeeper"
)

// Settings are the process level options read from the environment.
type Settings struct {
	MaxConcurrency  int      `env:"MAX_CONCURRENCY"`
	LogLevel        string   `env:"LOG_LEVEL"`
	LogFormat       string   `env:"LOG_FORMAT"`
	TraceExporter   string   `env:"TRACE_EXPORTER"`
	OTLPEndpoint    string   `env:"OTLP_ENDPOINT"`
	SamplingRate    float64  `env:"TRACE_SAMPLING_RATE"`
	ServiceName     string   `env:"SERVICE_NAME"`
	Remote          string   `env:"REMOTE"`
	RemoteEndpoints []string `env:"REMOTE_ENDPOINTS"`
	RemotePrefix    string   `env:"REMOTE_PREFIX"`
	Declarations    string   `env:"DECLARATIONS"`
	MetricsAddr     string   `env:"METRICS_ADDR"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		MaxConcurrency: 10,
		LogLevel:       "info",
		LogFormat:      "text",
		TraceExporter:  "none",
		SamplingRate:   1,
		ServiceName:    "agentforge",
		Remote:         RemoteNone,
		RemotePrefix:   DefaultPrefix,
	}
}

// LoadSettings loads the given dotenv files (".env" when none are given,
// silently skipped if missing) and reads AGENTFORGE_* variables over the
// defaults. Variables already set in the process win over dotenv values.
func LoadSettings(envFiles ...string) (Settings, error) {
	files := envFiles
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}

	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("failed to load env files: %w", err)
		}
	}

	return SettingsFromEnv(os.Environ())
}

// SettingsFromEnv decodes settings from KEY=VALUE pairs.
func SettingsFromEnv(environ []string) (Settings, error) {
	values := map[string]any{}

	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) || value == "" {
			continue
		}

		values[strings.TrimPrefix(key, EnvPrefix)] = value
	}

	s := DefaultSettings()

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		TagName:          "env",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return Settings{}, err
	}

	if err := dec.Decode(values); err != nil {
		return Settings{}, fmt.Errorf("invalid %s settings: %w", EnvPrefix, err)
	}

	if s.MaxConcurrency < 1 {
		return Settings{}, fmt.Errorf("invalid %sMAX_CONCURRENCY: must be at least 1", EnvPrefix)
	}

	return s, nil
}

// OpenRemote connects the remote backend selected by s.
func OpenRemote(s Settings) (RemoteSource, error) {
	switch strings.ToLower(s.Remote) {
	case "", RemoteNone:
		return NoopSource{}, nil
	case RemoteConsul:
		addr := ""
		if len(s.RemoteEndpoints) > 0 {
			addr = s.RemoteEndpoints[0]
		}

		return NewConsulSource(addr, s.RemotePrefix)
	case RemoteEtcd:
		return NewEtcdSource(s.RemoteEndpoints, s.RemotePrefix)
	case RemoteZookeeper:
		return NewZookeeperSource(s.RemoteEndpoints, s.RemotePrefix)
	default:
		return nil, fmt.Errorf("unsupported remote config backend: %s", s.Remote)
	}
}
