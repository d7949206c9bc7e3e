package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk CLI configuration.
type Config struct {
	APIVersion     string         `yaml:"apiVersion"`
	Kind           string         `yaml:"kind"`
	CurrentContext string         `yaml:"current-context"`
	Contexts       []NamedContext `yaml:"contexts"`
}

// NamedContext is one connection profile.
type NamedContext struct {
	Name    string        `yaml:"name"`
	Context ContextDetail `yaml:"context"`
}

// ContextDetail holds the connection settings of a context.
type ContextDetail struct {
	APIURL    string `yaml:"api-url"`
	Token     string `yaml:"token,omitempty"`
	TokenFile string `yaml:"token-file,omitempty"`
}

// configPath honours CONSOLE_CONFIG, then ~/.console/config.yaml.
func configPath() string {
	if p := os.Getenv("CONSOLE_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".console", "config.yaml")
}

func expandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, p[2:])
	}
	return p
}

func loadConfig() (*Config, error) {
	data, err := os.ReadFile(configPath())
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func saveConfig(cfg *Config) error {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "console/v1"
	}
	if cfg.Kind == "" {
		cfg.Kind = "Config"
	}

	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// GetContext returns the named context or nil.
func (c *Config) GetContext(name string) *NamedContext {
	for i := range c.Contexts {
		if c.Contexts[i].Name == name {
			return &c.Contexts[i]
		}
	}
	return nil
}

// SetContext adds or replaces a context.
func (c *Config) SetContext(name string, ctx ContextDetail) {
	for i := range c.Contexts {
		if c.Contexts[i].Name == name {
			c.Contexts[i].Context = ctx
			return
		}
	}
	c.Contexts = append(c.Contexts, NamedContext{Name: name, Context: ctx})
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
}

func init() {
	setCtxCmd := &cobra.Command{
		Use:   "set-context NAME",
		Short: "Create or update a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			apiURL, _ := cmd.Flags().GetString("api-url")
			token, _ := cmd.Flags().GetString("token")
			tokenFile, _ := cmd.Flags().GetString("token-file")

			if apiURL == "" {
				return errors.New("--api-url is required")
			}
			if token == "" && tokenFile == "" {
				return errors.New("--token or --token-file is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				cfg = &Config{}
			}
			cfg.SetContext(name, ContextDetail{APIURL: apiURL, Token: token, TokenFile: tokenFile})
			if cfg.CurrentContext == "" {
				cfg.CurrentContext = name
			}
			if err := saveConfig(cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Context %q set.\n", name)
			if cfg.CurrentContext == name {
				fmt.Fprintf(out, "Current context is %q.\n", name)
			}
			return nil
		},
	}
	// Local flags shadow the persistent --api-url/--token of the root.
	setCtxCmd.Flags().String("api-url", "", "API URL")
	setCtxCmd.Flags().String("token", "", "Bearer token")
	setCtxCmd.Flags().String("token-file", "", "Path to a file holding the bearer token")

	useCtxCmd := &cobra.Command{
		Use:   "use-context NAME",
		Short: "Switch to a different context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("no config found: %w", err)
			}
			if cfg.GetContext(name) == nil {
				return fmt.Errorf("context %q not found", name)
			}
			cfg.CurrentContext = name
			if err := saveConfig(cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q.\n", name)
			return nil
		},
	}

	getCtxCmd := &cobra.Command{
		Use:   "get-contexts",
		Short: "List all configured contexts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("no config found: %w", err)
			}
			return render(cmd.OutOrStdout(), cfg.Contexts, func(t *tableWriter) {
				t.Header("CURRENT", "NAME", "API-URL")
				for _, c := range cfg.Contexts {
					current := ""
					if c.Name == cfg.CurrentContext {
						current = "*"
					}
					t.AddRow(current, c.Name, c.Context.APIURL)
				}
			})
		},
	}

	curCtxCmd := &cobra.Command{
		Use:   "current-context",
		Short: "Show the current context",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("no config found: %w", err)
			}
			if cfg.CurrentContext == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "No current context set.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.CurrentContext)
			return nil
		},
	}

	configCmd.AddCommand(setCtxCmd, useCtxCmd, getCtxCmd, curCtxCmd)
}
