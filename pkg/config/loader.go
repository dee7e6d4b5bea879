package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/albertnahas/teamclaude/pkg/paths"
)

// ConfigFileName is the per-project configuration file.
const ConfigFileName = ".sprint.yml"

// DefaultPort is the dashboard listener port when server.port is unset.
const DefaultPort = 4270

// Load reads <projectRoot>/.sprint.yml and returns the resolved
// configuration. A missing file is not an error; every setting then
// carries its built-in default.
//
// Steps performed:
//  1. Read the YAML file (absent file short-circuits to defaults)
//  2. Parse into the file-shaped struct
//  3. Merge built-in defaults into unset fields
//  4. Resolve into the flat Config
func Load(projectRoot string) (*Config, error) {
	path := filepath.Join(projectRoot, ConfigFileName)
	log := slog.With("config_file", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("No sprint configuration file, using defaults")
			return resolve(defaultYAML()), nil
		}
		return nil, NewLoadError(ConfigFileName, err)
	}

	var fileCfg sprintYAMLConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, NewLoadError(ConfigFileName, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	// Fill unset fields from defaults; user-set values win.
	if err := mergo.Merge(&fileCfg, defaultYAML()); err != nil {
		return nil, NewLoadError(ConfigFileName, err)
	}

	cfg := resolve(&fileCfg)
	log.Info("Configuration loaded",
		"port", cfg.Server.Port,
		"recording", cfg.Recording.Enabled,
		"budget_configured", cfg.Sprint.HasBudget(),
		"verification_commands", len(cfg.Verification.Commands),
		"webhook_configured", cfg.Notifications.Webhook != "",
		"plugins", len(cfg.Plugins))
	return cfg, nil
}

// defaultYAML returns the built-in configuration in file shape so the
// mergo merge treats built-ins and user values uniformly.
func defaultYAML() *sprintYAMLConfig {
	enabled := true
	return &sprintYAMLConfig{
		Server:    &serverYAMLConfig{Port: DefaultPort},
		Recording: &recordingYAMLConfig{Enabled: &enabled},
		Watch:     &watchYAMLConfig{Root: paths.DefaultWatchRoot()},
	}
}

// resolve flattens the file-shaped struct into the runtime Config.
func resolve(fileCfg *sprintYAMLConfig) *Config {
	cfg := &Config{
		Server: ServerConfig{Port: DefaultPort},
		Watch:  WatchConfig{Root: paths.DefaultWatchRoot()},
	}
	cfg.Recording.Enabled = true
	cfg.Plugins = fileCfg.Plugins

	if s := fileCfg.Server; s != nil && s.Port > 0 {
		cfg.Server.Port = s.Port
	}
	if r := fileCfg.Recording; r != nil && r.Enabled != nil {
		cfg.Recording.Enabled = *r.Enabled
	}
	if s := fileCfg.Sprint; s != nil {
		cfg.Sprint.TokenBudget = s.TokenBudget
		cfg.Sprint.TokenBudgetUSD = s.TokenBudgetUSD
	}
	if a := fileCfg.Agents; a != nil {
		cfg.Agents.Model = a.Model
		cfg.Agents.Roles = a.Roles
	}
	if n := fileCfg.Notifications; n != nil {
		cfg.Notifications.Webhook = n.Webhook
		cfg.Notifications.Events = n.Events
		cfg.Notifications.Headers = n.Headers
	}
	if v := fileCfg.Verification; v != nil {
		cfg.Verification.Commands = v.Commands
	}
	if w := fileCfg.Watch; w != nil && w.Root != "" {
		cfg.Watch.Root = w.Root
	}
	if l := fileCfg.Launch; l != nil {
		cfg.Launch.Command = l.Command
	}
	return cfg
}
