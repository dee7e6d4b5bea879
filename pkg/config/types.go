package config

// Config is the resolved runtime configuration the rest of the system
// consumes. It is built once at startup from .sprint.yml merged over
// built-in defaults; nothing re-reads the file afterwards except the
// budget tracker's one-shot cache.
type Config struct {
	Server        ServerConfig
	Recording     RecordingConfig
	Sprint        SprintConfig
	Agents        AgentsConfig
	Notifications NotificationsConfig
	Verification  VerificationConfig
	Watch         WatchConfig
	Launch        LaunchConfig
	Plugins       []string
}

// ServerConfig holds the HTTP/WebSocket listener settings.
type ServerConfig struct {
	Port int
}

// RecordingConfig gates the replay recorder.
type RecordingConfig struct {
	Enabled bool
}

// SprintConfig holds per-sprint budget limits. Zero means unconfigured.
type SprintConfig struct {
	TokenBudget    int
	TokenBudgetUSD float64
}

// HasBudget reports whether any budget limit is configured.
func (c SprintConfig) HasBudget() bool {
	return c.TokenBudget > 0 || c.TokenBudgetUSD > 0
}

// AgentsConfig describes the agent fleet as the user configured it.
type AgentsConfig struct {
	Model string
	Roles []string
}

// NotificationsConfig holds outbound webhook settings.
type NotificationsConfig struct {
	Webhook string
	// Events filters which webhook event names are delivered; empty
	// means all.
	Events  []string
	Headers map[string]string
}

// VerificationConfig lists the external check commands the gate runs.
type VerificationConfig struct {
	Commands []string
}

// WatchConfig points at the host runtime's data directory.
type WatchConfig struct {
	Root string
}

// LaunchConfig holds the command the runner spawns on /api/launch.
type LaunchConfig struct {
	Command string
}

// sprintYAMLConfig represents the complete .sprint.yml file structure.
// Sections are pointers so an absent section and an empty one are
// distinguishable during the defaults merge.
type sprintYAMLConfig struct {
	Server        *serverYAMLConfig        `yaml:"server"`
	Recording     *recordingYAMLConfig     `yaml:"recording"`
	Sprint        *sprintYAMLSection       `yaml:"sprint"`
	Agents        *agentsYAMLConfig        `yaml:"agents"`
	Notifications *notificationsYAMLConfig `yaml:"notifications"`
	Verification  *verificationYAMLConfig  `yaml:"verification"`
	Watch         *watchYAMLConfig         `yaml:"watch"`
	Launch        *launchYAMLConfig        `yaml:"launch"`
	Plugins       []string                 `yaml:"plugins"`
}

type serverYAMLConfig struct {
	Port int `yaml:"port"`
}

type recordingYAMLConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

type sprintYAMLSection struct {
	TokenBudget    int     `yaml:"token_budget"`
	TokenBudgetUSD float64 `yaml:"token_budget_usd"`
}

type agentsYAMLConfig struct {
	Model string   `yaml:"model"`
	Roles []string `yaml:"roles"`
}

type notificationsYAMLConfig struct {
	Webhook string            `yaml:"webhook"`
	Events  []string          `yaml:"events"`
	Headers map[string]string `yaml:"headers"`
}

type verificationYAMLConfig struct {
	Commands []string `yaml:"commands"`
}

type watchYAMLConfig struct {
	Root string `yaml:"root"`
}

type launchYAMLConfig struct {
	Command string `yaml:"command"`
}
