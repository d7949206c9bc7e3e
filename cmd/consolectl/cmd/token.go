package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openctemio/console/pkg/domain/shared"
	"github.com/openctemio/console/pkg/jwt"
)

var (
	flagSecret    string
	flagIssuer    string
	flagAccountID int64
	flagTokenType string
	flagTokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token for local use",
	Long: `Mint an access token signed with the server's shared secret.

The secret is read from --secret or AUTH_JWT_SECRET, the issuer from
--issuer or AUTH_JWT_ISSUER. Meant for development and operator scripts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		secret := flagSecret
		if secret == "" {
			secret = os.Getenv("AUTH_JWT_SECRET")
		}
		if secret == "" {
			return errors.New("a signing secret is required (--secret or AUTH_JWT_SECRET)")
		}
		issuer := flagIssuer
		if issuer == "" {
			issuer = os.Getenv("AUTH_JWT_ISSUER")
		}
		if !shared.AccountType(flagTokenType).IsValid() {
			return fmt.Errorf("invalid account type %q", flagTokenType)
		}

		gen := jwt.NewGenerator(jwt.TokenConfig{Secret: secret, Issuer: issuer, TTL: flagTokenTTL})
		token, expiresAt, err := gen.Generate(flagAccountID, flagTokenType)
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}

		if flagOutput == outputJSON || flagOutput == outputYAML {
			return render(cmd.OutOrStdout(), map[string]any{
				"token":      token,
				"expires_at": expiresAt.UTC(),
			}, nil)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&flagSecret, "secret", "", "HMAC signing secret")
	tokenCmd.Flags().StringVar(&flagIssuer, "issuer", "", "Token issuer")
	tokenCmd.Flags().Int64Var(&flagAccountID, "account-id", 1, "Account ID carried by the token")
	tokenCmd.Flags().StringVar(&flagTokenType, "account-type", string(shared.AccountTypeOperator), "Account type carried by the token")
	tokenCmd.Flags().DurationVar(&flagTokenTTL, "ttl", time.Hour, "Token lifetime")
}
