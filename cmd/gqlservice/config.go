package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	launch "github.com/hanpama/gqlservice/internal/launch"
)

// Config is the serve configuration. Values from the -config file are
// overridden by command line flags.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	GraphQL GraphQLConfig `yaml:"graphql"`
	Otel    OtelConfig    `yaml:"otel"`
	Log     LogConfig     `yaml:"log"`
	Today   TodayConfig   `yaml:"today"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Pretty          bool          `yaml:"pretty"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	MetadataHeaders []string      `yaml:"metadata_headers"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	GraphiQL        bool          `yaml:"graphiql"`
	KeepAlive       time.Duration `yaml:"keep_alive"`
}

type GraphQLConfig struct {
	Introspection bool `yaml:"introspection"`
	// Launch is one of sync, goroutine, queue:N or bounded:N.
	Launch string `yaml:"launch"`
}

type OtelConfig struct {
	Endpoint string `yaml:"endpoint"`
	Service  string `yaml:"service"`
}

type LogConfig struct {
	Development bool   `yaml:"development"`
	Level       string `yaml:"level"`
}

type TodayConfig struct {
	// Tick is the interval of the sample appointment change events. 0
	// disables them.
	Tick time.Duration `yaml:"tick"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:      ":8080",
			Timeout:   10 * time.Second,
			GraphiQL:  true,
			KeepAlive: 30 * time.Second,
		},
		GraphQL: GraphQLConfig{Introspection: true, Launch: "goroutine"},
		Otel:    OtelConfig{Service: "gqlservice"},
		Log:     LogConfig{Level: "info"},
	}
}

// loadConfig returns the defaults overlaid with the file named by the
// -config flag in args, if any.
func loadConfig(args []string) (Config, error) {
	cfg := defaultConfig()
	path := configPath(args)
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func configPath(args []string) string {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// newFlagSet returns the serve flags bound to cfg.
func newFlagSet(cfg *Config) *flag.FlagSet {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	cfg.bind(fs)
	return fs
}

// bind registers the serve flags on fs with the values of cfg as defaults.
func (cfg *Config) bind(fs *flag.FlagSet) {
	fs.String("config", "", "YAML configuration file")
	fs.StringVar(&cfg.Server.Addr, "server.addr", cfg.Server.Addr, "HTTP listen address")
	fs.BoolVar(&cfg.Server.Pretty, "server.pretty", cfg.Server.Pretty, "Pretty-print JSON responses")
	fs.DurationVar(&cfg.Server.Timeout, "server.timeout", cfg.Server.Timeout, "Per-request timeout")
	fs.Int64Var(&cfg.Server.MaxBodyBytes, "server.max-body-bytes", cfg.Server.MaxBodyBytes, "Request body limit")
	fs.Var((*stringListFlag)(&cfg.Server.MetadataHeaders), "server.metadata-header", "Forward HTTP header to resolver metadata")
	fs.Var((*stringListFlag)(&cfg.Server.CORSOrigins), "server.cors-origin", "Allowed CORS origin")
	fs.BoolVar(&cfg.Server.GraphiQL, "server.graphiql", cfg.Server.GraphiQL, "Serve GraphiQL")
	fs.DurationVar(&cfg.Server.KeepAlive, "server.keep-alive", cfg.Server.KeepAlive, "Websocket keep-alive interval")
	fs.BoolVar(&cfg.GraphQL.Introspection, "graphql.introspection", cfg.GraphQL.Introspection, "Enable GraphQL introspection")
	fs.StringVar(&cfg.GraphQL.Launch, "graphql.launch", cfg.GraphQL.Launch, "Launch policy")
	fs.StringVar(&cfg.Otel.Endpoint, "otel.endpoint", cfg.Otel.Endpoint, "OTLP collector endpoint")
	fs.StringVar(&cfg.Otel.Service, "otel.service", cfg.Otel.Service, "OpenTelemetry service name")
	fs.BoolVar(&cfg.Log.Development, "log.dev", cfg.Log.Development, "Development logging")
	fs.StringVar(&cfg.Log.Level, "log.level", cfg.Log.Level, "Log level")
	fs.DurationVar(&cfg.Today.Tick, "today.tick", cfg.Today.Tick, "Interval of sample subscription events")
}

type stringListFlag []string

func (s *stringListFlag) String() string { return strings.Join(*s, ",") }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// parseLaunch returns the policy named by s and a function releasing
// its workers.
func parseLaunch(s string) (launch.Policy, func(), error) {
	name, arg, _ := strings.Cut(s, ":")
	size := func() (int, error) {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid launch policy %q: want a positive size", s)
		}
		return n, nil
	}
	switch name {
	case "", "sync":
		return launch.Sync, func() {}, nil
	case "goroutine":
		return launch.Goroutine, func() {}, nil
	case "queue":
		n, err := size()
		if err != nil {
			return nil, nil, err
		}
		q := launch.NewQueue(n)
		return q, q.Close, nil
	case "bounded":
		n, err := size()
		if err != nil {
			return nil, nil, err
		}
		return launch.NewBounded(int64(n)), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown launch policy %q", s)
	}
}
