package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/securemint/lp-bundler/internal/clients"
	"github.com/securemint/lp-bundler/internal/verifier"
)

// verifyCmd represents the post-deploy authority check
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify that the token's privileged authorities are revoked",
	Long: `Runs six read-only checks against the token mint and prints a table of the results:
mint authority, freeze authority, metadata update authority, metadata mutability,
treasury token account ownership and LP lock status.

Exits 0 if every check passes and 1 otherwise, so it can gate a deployment pipeline.
Unset optional addresses skip their check.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		printBanner()
	},
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String(
		"mint",
		"",
		"Token mint address (required)")

	verifyCmd.Flags().String(
		"treasury-token-account",
		"",
		"Token account that must be owned by a program-derived address")

	verifyCmd.Flags().String(
		"expected-owner",
		"",
		"Exact owner expected for the treasury token account")

	verifyCmd.Flags().String(
		"lp-mint",
		"",
		"LP token mint that must be burned or locked")

	viper.BindPFlag("token_mint", verifyCmd.Flags().Lookup("mint"))
	viper.BindPFlag("treasury_token_account", verifyCmd.Flags().Lookup("treasury-token-account"))
	viper.BindPFlag("expected_owner", verifyCmd.Flags().Lookup("expected-owner"))
	viper.BindPFlag("lp_mint", verifyCmd.Flags().Lookup("lp-mint"))

	bindEnv("token_mint", "TOKEN_MINT")
	bindEnv("treasury_token_account", "TREASURY_TOKEN_ACCOUNT")
	bindEnv("expected_owner", "EXPECTED_OWNER")
	bindEnv("lp_mint", "LP_MINT")
}

func loadVerifyConfig() (verifier.Config, error) {
	var config verifier.Config

	mint, err := parseOptionalKey("token mint", viper.GetString("token_mint"))
	if err != nil {
		return config, err
	}
	if mint == nil {
		return config, fmt.Errorf("token mint is required (--mint or TOKEN_MINT)")
	}
	config.Mint = *mint

	if config.TreasuryTokenAccount, err = parseOptionalKey("treasury token account", viper.GetString("treasury_token_account")); err != nil {
		return config, err
	}
	if config.ExpectedOwner, err = parseOptionalKey("expected owner", viper.GetString("expected_owner")); err != nil {
		return config, err
	}
	if config.LPMint, err = parseOptionalKey("LP mint", viper.GetString("lp_mint")); err != nil {
		return config, err
	}
	return config, nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)

	config, err := loadVerifyConfig()
	if err != nil {
		return err
	}
	rpcURL := viper.GetString("rpc_url")

	out := cmd.OutOrStdout()
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(out, "%s\n  POST-DEPLOY AUTHORITY VERIFICATION\n%s\n", rule, rule)
	fmt.Fprintf(out, "\nToken Mint: %s\nRPC:        %s\n", config.Mint, rpcURL)

	ctx, cancel := signalContext(logger)
	defer cancel()

	v := verifier.NewVerifier(logger, clients.NewSolanaClient(logger, rpcURL), config)
	report, err := v.Verify(ctx)
	if err != nil {
		logger.Error("Cannot verify", zap.Error(err))
		return err
	}

	fmt.Fprintf(out, "Token Standard: %s\n\n", report.Standard)
	if err := report.Render(out); err != nil {
		return err
	}
	fmt.Fprintln(out, rule)

	if !report.AllPassed() {
		return fmt.Errorf("verification failed: %d/%d checks passed", report.PassCount(), len(report.Results))
	}
	return nil
}
