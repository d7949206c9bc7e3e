package cmd

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

var (
	version string

	// Global flags
	flagAPIURL  string
	flagToken   string
	flagContext string
	flagOutput  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "consolectl",
	Short: "Console module and role menu administration CLI",
	Long: `consolectl manages the modules installed for an account and the
menu trees of its roles.

Use "consolectl config set-context" to configure your connection and
"consolectl token" to mint a development token.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the CLI version from build flags.
func SetVersion(v string) {
	version = v
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "Override API URL (env: CONSOLE_API_URL)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "Override bearer token (env: CONSOLE_TOKEN)")
	rootCmd.PersistentFlags().StringVarP(&flagContext, "context", "c", "", "Use specific context (env: CONSOLE_CONTEXT)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(modulesCmd)
	rootCmd.AddCommand(rolesCmd)
	rootCmd.AddCommand(tokenCmd)
}

func initConfig() {
	if flagAPIURL == "" {
		flagAPIURL = os.Getenv("CONSOLE_API_URL")
	}
	if flagToken == "" {
		flagToken = os.Getenv("CONSOLE_TOKEN")
	}

	if flagAPIURL == "" || flagToken == "" {
		u, tok := resolveFromConfigFile()
		if flagAPIURL == "" {
			flagAPIURL = u
		}
		if flagToken == "" {
			flagToken = tok
		}
	}
}

func resolveFromConfigFile() (string, string) {
	ctxName := flagContext
	if ctxName == "" {
		ctxName = os.Getenv("CONSOLE_CONTEXT")
	}

	cfg, err := loadConfig()
	if err != nil {
		return "", ""
	}
	if ctxName == "" {
		ctxName = cfg.CurrentContext
	}

	ctx := cfg.GetContext(ctxName)
	if ctx == nil {
		return "", ""
	}

	token := ctx.Context.Token
	if token == "" && ctx.Context.TokenFile != "" {
		data, err := os.ReadFile(expandPath(ctx.Context.TokenFile))
		if err == nil {
			token = strings.TrimSpace(string(data))
		}
	}
	return ctx.Context.APIURL, token
}

func newClient() (*Client, error) {
	if flagAPIURL == "" {
		return nil, errors.New("API URL not configured. Use --api-url, CONSOLE_API_URL, or 'consolectl config set-context'")
	}
	if flagToken == "" {
		return nil, errors.New("token not configured. Use --token, CONSOLE_TOKEN, or 'consolectl config set-context'")
	}
	return NewClient(flagAPIURL, flagToken, flagVerbose), nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "consolectl version %s\n", version)
		fmt.Fprintf(out, "  Go:       %s\n", runtime.Version())
		fmt.Fprintf(out, "  OS/Arch:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}
