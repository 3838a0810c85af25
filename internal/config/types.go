package config

import "time"

// Config is the complete groundwork configuration.
type Config struct {
	Service    ServiceConfig  `yaml:"service"`
	Workspaces WorkspacesConf `yaml:"workspaces"`
	State      StateConfig    `yaml:"state"`
	API        APIConfig      `yaml:"api,omitempty"`
	Commands   CommandsConfig `yaml:"commands"`
	Tooling    ToolingConfig  `yaml:"tooling"`
	Timeouts   TimeoutsConfig `yaml:"timeouts,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// WorkspacesConf defines where provisioning workspaces live.
type WorkspacesConf struct {
	Dir string `yaml:"dir"`
}

// StateConfig defines durable record storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines the panel HTTP server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines panel API authentication settings.
type APIAuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// CommandsConfig lists ordered fallback candidates per external tool.
// Candidates are command names or absolute paths tried in sequence.
type CommandsConfig struct {
	Git    []string `yaml:"git"`
	Python []string `yaml:"python"`
	Elan   []string `yaml:"elan"`
	Lake   []string `yaml:"lake"`
}

// ToolingConfig names the tracing library installed into the venv.
type ToolingConfig struct {
	Package string `yaml:"package"`
}

// TimeoutsConfig defines per-step timeouts. Zero means no limit; the trace
// step defaults to unlimited because traces legitimately run for hours.
type TimeoutsConfig struct {
	Clone   time.Duration `yaml:"clone"`
	Install time.Duration `yaml:"install"`
	Build   time.Duration `yaml:"build"`
	Trace   time.Duration `yaml:"trace"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "groundwork",
			LogLevel: "INFO",
		},
		Workspaces: WorkspacesConf{
			Dir: "./workspaces",
		},
		State: StateConfig{
			Path: "./groundwork.db",
		},
		API: APIConfig{
			Enabled: true,
			Listen:  "127.0.0.1:8791",
		},
		Commands: CommandsConfig{
			Git:    []string{"git"},
			Python: []string{"python3.11", "python3.10", "python3", "python"},
			Elan:   []string{"elan", "~/.elan/bin/elan"},
			Lake:   []string{"lake", "~/.elan/bin/lake"},
		},
		Tooling: ToolingConfig{
			Package: "lean-dojo",
		},
		Timeouts: TimeoutsConfig{
			Clone:   10 * time.Minute,
			Install: 15 * time.Minute,
			Build:   2 * time.Hour,
			Trace:   0,
		},
	}
}
