package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes a .sprint.yml into a fresh project root.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte(content), 0o644))
	return root
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.True(t, cfg.Recording.Enabled)
	assert.False(t, cfg.Sprint.HasBudget())
	assert.NotEmpty(t, cfg.Watch.Root)
	assert.Empty(t, cfg.Verification.Commands)
}

func TestLoadFullConfig(t *testing.T) {
	root := writeConfig(t, `
server:
  port: 9000
recording:
  enabled: false
sprint:
  token_budget: 500000
  token_budget_usd: 12.5
agents:
  model: claude-sonnet-4
  roles:
    - pm
    - engineer
notifications:
  webhook: https://hooks.example.com/sprint
  events:
    - task_completed
    - sprint_complete
  headers:
    X-Auth: secret
verification:
  commands:
    - make test
    - make lint
watch:
  root: /tmp/claude-home
launch:
  command: claude-sprint start
plugins:
  - ./hooks/notify.sh
`)

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.False(t, cfg.Recording.Enabled)
	assert.Equal(t, 500000, cfg.Sprint.TokenBudget)
	assert.InDelta(t, 12.5, cfg.Sprint.TokenBudgetUSD, 1e-9)
	assert.True(t, cfg.Sprint.HasBudget())
	assert.Equal(t, "claude-sonnet-4", cfg.Agents.Model)
	assert.Equal(t, []string{"pm", "engineer"}, cfg.Agents.Roles)
	assert.Equal(t, "https://hooks.example.com/sprint", cfg.Notifications.Webhook)
	assert.Equal(t, []string{"task_completed", "sprint_complete"}, cfg.Notifications.Events)
	assert.Equal(t, "secret", cfg.Notifications.Headers["X-Auth"])
	assert.Equal(t, []string{"make test", "make lint"}, cfg.Verification.Commands)
	assert.Equal(t, "/tmp/claude-home", cfg.Watch.Root)
	assert.Equal(t, "claude-sprint start", cfg.Launch.Command)
	assert.Equal(t, []string{"./hooks/notify.sh"}, cfg.Plugins)
}

func TestLoadPartialConfigKeepsDefaults(t *testing.T) {
	root := writeConfig(t, `
sprint:
  token_budget: 1000
`)

	cfg, err := Load(root)
	require.NoError(t, err)

	// Unset sections fall back to built-ins.
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.True(t, cfg.Recording.Enabled)
	assert.Equal(t, 1000, cfg.Sprint.TokenBudget)
	assert.Zero(t, cfg.Sprint.TokenBudgetUSD)
}

func TestLoadExplicitFalseSurvivesMerge(t *testing.T) {
	root := writeConfig(t, `
recording:
  enabled: false
`)

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.False(t, cfg.Recording.Enabled)
}

func TestLoadInvalidYAML(t *testing.T) {
	root := writeConfig(t, "server: [broken")

	_, err := Load(root)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ConfigFileName, loadErr.File)
}

func TestSprintConfigHasBudget(t *testing.T) {
	tests := []struct {
		name string
		cfg  SprintConfig
		want bool
	}{
		{name: "none", cfg: SprintConfig{}, want: false},
		{name: "tokens only", cfg: SprintConfig{TokenBudget: 100}, want: true},
		{name: "dollars only", cfg: SprintConfig{TokenBudgetUSD: 1.5}, want: true},
		{name: "both", cfg: SprintConfig{TokenBudget: 100, TokenBudgetUSD: 1.5}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.HasBudget())
		})
	}
}
