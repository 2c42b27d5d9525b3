// Package config loads the relay's file-based configuration: a YAML topology
// naming the feeds to poll, the channels that receive digests, per-dependency
// resilience policies, and the ops-server security settings. Operational
// tuning (timeouts, pool sizes, schedules) stays in the environment; the file
// holds only wiring.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"catchup-relay/internal/resilience/circuitbreaker"
	"catchup-relay/internal/resilience/retry"
)

// Channel types the relay can deliver to.
const (
	ChannelDiscord = "discord"
	ChannelSlack   = "slack"
)

// Topology is the relay's declarative wiring. Webhook URLs never appear in
// the file because the secret rides in the URL; channels name the environment
// variable that holds them instead.
type Topology struct {
	Feeds    []FeedConfig            `yaml:"feeds"`
	Channels []ChannelConfig         `yaml:"channels"`
	Policies map[string]PolicyConfig `yaml:"policies"`
	Security SecuritySection         `yaml:"security"`
}

// FeedConfig names one RSS/Atom source.
type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ChannelConfig names one delivery target. Language selects the digest
// language the translator produces for this channel.
type ChannelConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Language   string `yaml:"language"`
	WebhookEnv string `yaml:"webhook_env"`

	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled reports whether the channel should receive deliveries.
func (c ChannelConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// PolicyConfig overrides resilience defaults for one named dependency.
// The map key must match the breaker name the pipeline registers for that
// dependency.
type PolicyConfig struct {
	Breaker *BreakerPolicy `yaml:"breaker"`
	Retry   *RetryPolicy   `yaml:"retry"`
}

// BreakerPolicy is a partial circuit breaker configuration; omitted fields
// keep their defaults.
type BreakerPolicy struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	SuccessThreshold int      `yaml:"success_threshold"`
	Timeout          Duration `yaml:"timeout"`
	MinRequests      int      `yaml:"min_requests"`
	WindowSize       int      `yaml:"window_size"`

	// FailureRateThreshold is a pointer so an explicit 0 can disable the
	// rate rule while an omitted field keeps the default.
	FailureRateThreshold *float64 `yaml:"failure_rate_threshold"`
}

// Config materializes the policy on top of the breaker defaults.
func (p *BreakerPolicy) Config() circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig()
	if p == nil {
		return cfg
	}
	if p.FailureThreshold > 0 {
		cfg.FailureThreshold = p.FailureThreshold
	}
	if p.SuccessThreshold > 0 {
		cfg.SuccessThreshold = p.SuccessThreshold
	}
	if p.Timeout > 0 {
		cfg.Timeout = p.Timeout.Std()
	}
	if p.MinRequests > 0 {
		cfg.MinRequests = p.MinRequests
	}
	if p.WindowSize > 0 {
		cfg.WindowSize = p.WindowSize
	}
	if p.FailureRateThreshold != nil {
		cfg.FailureRateThreshold = *p.FailureRateThreshold
	}
	return cfg
}

// RetryPolicy is a partial retry configuration; omitted fields keep their
// defaults.
type RetryPolicy struct {
	MaxAttempts  int      `yaml:"max_attempts"`
	InitialDelay Duration `yaml:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
	Multiplier   float64  `yaml:"multiplier"`
	Jitter       *float64 `yaml:"jitter"`
}

// Config materializes the policy on top of the retry defaults.
func (p *RetryPolicy) Config() retry.Config {
	cfg := retry.DefaultConfig()
	if p == nil {
		return cfg
	}
	if p.MaxAttempts > 0 {
		cfg.MaxAttempts = p.MaxAttempts
	}
	if p.InitialDelay > 0 {
		cfg.InitialDelay = p.InitialDelay.Std()
	}
	if p.MaxDelay > 0 {
		cfg.MaxDelay = p.MaxDelay.Std()
	}
	if p.Multiplier > 0 {
		cfg.Multiplier = p.Multiplier
	}
	if p.Jitter != nil {
		cfg.JitterFraction = *p.Jitter
	}
	return cfg
}

// Duration lets policy delays be written as "30s" or "2m" in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// LoadTopology loads and validates the relay topology from a YAML file.
// The path parameter is expected to come from a trusted source (command-line argument or environment).
func LoadTopology(path string) (*Topology, error) {
	// #nosec G304 -- path is provided by trusted source (CLI arg or env), not user input
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	// 知らないキーはタイポとして弾く
	dec.KnownFields(true)

	var topo Topology
	if err := dec.Decode(&topo); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := topo.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &topo, nil
}

// Validate checks the topology for values the relay cannot run with.
func (t *Topology) Validate() error {
	if len(t.Feeds) == 0 {
		return fmt.Errorf("at least one feed is required")
	}

	feedNames := make(map[string]bool, len(t.Feeds))
	for i, feed := range t.Feeds {
		if feed.Name == "" {
			return fmt.Errorf("feed %d: name is required", i)
		}
		if feedNames[feed.Name] {
			return fmt.Errorf("feed %q: duplicate name", feed.Name)
		}
		feedNames[feed.Name] = true

		u, err := url.Parse(feed.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("feed %q: invalid url %q", feed.Name, feed.URL)
		}
	}

	if len(t.Channels) == 0 {
		return fmt.Errorf("at least one channel is required")
	}

	channelNames := make(map[string]bool, len(t.Channels))
	for i, ch := range t.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channel %d: name is required", i)
		}
		if channelNames[ch.Name] {
			return fmt.Errorf("channel %q: duplicate name", ch.Name)
		}
		channelNames[ch.Name] = true

		if ch.Type != ChannelDiscord && ch.Type != ChannelSlack {
			return fmt.Errorf("channel %q: unknown type %q", ch.Name, ch.Type)
		}
		if ch.Language == "" {
			return fmt.Errorf("channel %q: language is required", ch.Name)
		}
		if ch.IsEnabled() && ch.WebhookEnv == "" {
			return fmt.Errorf("channel %q: webhook_env is required", ch.Name)
		}
	}

	for name, policy := range t.Policies {
		if policy.Breaker != nil {
			if err := policy.Breaker.Config().Validate(); err != nil {
				return fmt.Errorf("policy %q: breaker: %w", name, err)
			}
		}
		if policy.Retry != nil {
			if err := policy.Retry.Config().Validate(); err != nil {
				return fmt.Errorf("policy %q: retry: %w", name, err)
			}
		}
	}

	return t.Security.validate()
}

// EnabledChannels returns the channels that should receive deliveries.
func (t *Topology) EnabledChannels() []ChannelConfig {
	channels := make([]ChannelConfig, 0, len(t.Channels))
	for _, ch := range t.Channels {
		if ch.IsEnabled() {
			channels = append(channels, ch)
		}
	}
	return channels
}

// BreakerConfigFor returns the breaker configuration for a named dependency,
// falling back to defaults when no policy overrides it.
func (t *Topology) BreakerConfigFor(name string) circuitbreaker.Config {
	if policy, ok := t.Policies[name]; ok {
		return policy.Breaker.Config()
	}
	return circuitbreaker.DefaultConfig()
}

// RetryConfigFor returns the retry configuration for a named dependency,
// falling back to defaults when no policy overrides it.
func (t *Topology) RetryConfigFor(name string) retry.Config {
	if policy, ok := t.Policies[name]; ok {
		return policy.Retry.Config()
	}
	return retry.DefaultConfig()
}
