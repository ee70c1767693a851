package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"subgraphMonitor/internal/model"
	"subgraphMonitor/internal/oracle"
	"subgraphMonitor/internal/status"
)

// DefaultNetworks maps index-node network names to Infura endpoints.
var DefaultNetworks = map[string]string{
	"mainnet": "https://mainnet.infura.io/v3/" + oracle.TokenPlaceholder,
	"matic":   "https://polygon-mainnet.infura.io/v3/" + oracle.TokenPlaceholder,
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	StatusURL       string
	OracleToken     string
	Networks        map[string]string
	Subgraphs       []model.Job
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	Out             string
	PGDSN           string
	MetricsTextfile string
	Notify          bool
	LogLevel        string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("status-url", status.DefaultURL)
	v.SetDefault("networks", DefaultNetworks)
	v.SetDefault("timeout", 2*time.Second)
	v.SetDefault("max-retries", 0)
	v.SetDefault("retry-backoff", 250*time.Millisecond)
	v.SetDefault("notify", true)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var subgraphs []model.Job
	if v.IsSet("subgraphs") {
		if err := v.UnmarshalKey("subgraphs", &subgraphs); err != nil {
			return Config{}, fmt.Errorf("parse subgraphs: %w", err)
		}
	}
	subgraphs = mergeJobs(subgraphs, getStringSlice(v, "subgraph"))

	cfg := Config{
		StatusURL:       v.GetString("status-url"),
		OracleToken:     v.GetString("oracle-token"),
		Networks:        v.GetStringMapString("networks"),
		Subgraphs:       subgraphs,
		Timeout:         v.GetDuration("timeout"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		Out:             v.GetString("out"),
		PGDSN:           v.GetString("pg-dsn"),
		MetricsTextfile: v.GetString("metrics-textfile"),
		Notify:          v.GetBool("notify"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks the values every command needs.
func (c Config) Validate() error {
	if c.StatusURL == "" {
		return fmt.Errorf("status url is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if len(c.Subgraphs) == 0 {
		return fmt.Errorf("at least one subgraph is required")
	}
	for i, job := range c.Subgraphs {
		if strings.TrimSpace(job.Name) == "" {
			return fmt.Errorf("subgraphs[%d].name is required", i)
		}
	}
	return nil
}

// mergeJobs appends names given on the command line that are not already
// configured. Such jobs have no notification target.
func mergeJobs(jobs []model.Job, names []string) []model.Job {
	seen := make(map[string]struct{}, len(jobs))
	out := make([]model.Job, 0, len(jobs)+len(names))
	for _, job := range jobs {
		job.Name = strings.TrimSpace(job.Name)
		job.Target = strings.TrimSpace(job.Target)
		if _, ok := seen[job.Name]; ok && job.Name != "" {
			continue
		}
		seen[job.Name] = struct{}{}
		out = append(out, job)
	}
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, model.Job{Name: name})
	}
	return out
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
