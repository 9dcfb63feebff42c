package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/securemint/lp-bundler/internal"
	"github.com/securemint/lp-bundler/internal/bundle"
	"github.com/securemint/lp-bundler/internal/clients"
	"github.com/securemint/lp-bundler/internal/submitter"
)

const (
	// DefaultTipLamports is 0.01 SOL
	DefaultTipLamports uint64 = 10_000_000

	// BalanceReserveLamports is kept on top of the tip for fees and rent
	BalanceReserveLamports uint64 = 50_000_000

	// DefaultRequestTimeout bounds every relay call
	DefaultRequestTimeout = 30 * time.Second

	simulationLogLines = 5
)

// deployCmd represents the command to submit the liquidity transactions as a bundle
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Submit signed liquidity transactions as a private bundle",
	Long: `Submits pre-signed liquidity transactions to the block engine as one atomic bundle,
paying the relay tip from the payer keypair.

The transactions are read from --tx-file, one base64 encoded transaction per line.
A tip transaction is appended unless the set already pays exactly one tip.
After --max-retries failed bundle attempts the same signed transactions are sent through
the public RPC endpoint, which exposes them to the public mempool.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		printBanner()
	},
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().String(
		"relay-url",
		clients.DefaultRelayURL,
		"Block engine base URL")

	deployCmd.Flags().Uint64(
		"tip-lamports",
		DefaultTipLamports,
		"Relay tip in lamports")

	deployCmd.Flags().Int(
		"max-retries",
		internal.DefaultMaxRetries,
		"Bundle attempts before the public fallback")

	deployCmd.Flags().Bool(
		"dry-run",
		false,
		"Simulate the transactions without submitting anything")

	deployCmd.Flags().String(
		"keypair",
		"",
		"Path to the payer keypair file (solana-keygen JSON, required)")

	deployCmd.Flags().String(
		"tx-file",
		"",
		"File with the signed liquidity transactions, base64, one per line (required)")

	deployCmd.Flags().Duration(
		"confirm-timeout",
		submitter.DefaultConfirmTimeout,
		"How long to wait for each bundle or public transaction to confirm")

	deployCmd.Flags().Duration(
		"poll-interval",
		submitter.DefaultPollInterval,
		"Delay between status queries")

	deployCmd.Flags().Duration(
		"backoff-unit",
		internal.DefaultBackoffUnit,
		"Backoff after attempt k is 2^k units")

	deployCmd.Flags().Duration(
		"max-backoff",
		0,
		"Upper bound for a single backoff delay (0 = uncapped)")

	deployCmd.Flags().Duration(
		"request-timeout",
		DefaultRequestTimeout,
		"Timeout of a single relay request")

	deployCmd.Flags().StringSlice(
		"tip-accounts",
		bundle.DefaultTipAccounts,
		"Relay tip destination addresses")

	deployCmd.Flags().Bool(
		"yes",
		false,
		"Skip the confirmation prompt before live submission")

	// Bind flags to viper
	viper.BindPFlag("relay_url", deployCmd.Flags().Lookup("relay-url"))
	viper.BindPFlag("tip_lamports", deployCmd.Flags().Lookup("tip-lamports"))
	viper.BindPFlag("max_retries", deployCmd.Flags().Lookup("max-retries"))
	viper.BindPFlag("dry_run", deployCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("keypair", deployCmd.Flags().Lookup("keypair"))
	viper.BindPFlag("tx_file", deployCmd.Flags().Lookup("tx-file"))
	viper.BindPFlag("confirm_timeout", deployCmd.Flags().Lookup("confirm-timeout"))
	viper.BindPFlag("poll_interval", deployCmd.Flags().Lookup("poll-interval"))
	viper.BindPFlag("backoff_unit", deployCmd.Flags().Lookup("backoff-unit"))
	viper.BindPFlag("max_backoff", deployCmd.Flags().Lookup("max-backoff"))
	viper.BindPFlag("request_timeout", deployCmd.Flags().Lookup("request-timeout"))
	viper.BindPFlag("tip_accounts", deployCmd.Flags().Lookup("tip-accounts"))

	bindEnv("relay_url", "JITO_BLOCK_ENGINE")
	bindEnv("tip_lamports", "JITO_TIP_LAMPORTS")
	bindEnv("max_retries", "MAX_RETRIES")
	bindEnv("dry_run", "DRY_RUN")
	bindEnv("keypair", "PAYER_KEYPAIR_PATH")
}

type DeployConfig struct {
	RPCURL         string        // Public node for reads, simulation and fallback
	RelayURL       string        // Block engine base URL
	TipLamports    uint64        // Relay tip
	MaxRetries     int           // Bundle attempts before fallback
	DryRun         bool          // Simulate only
	KeypairPath    string        // Payer keypair file
	TxFile         string        // Signed liquidity transactions
	ConfirmTimeout time.Duration // Per bundle and per public transaction
	PollInterval   time.Duration // Between status queries
	BackoffUnit    time.Duration // Backoff time-unit
	MaxBackoff     time.Duration // Backoff cap, 0 = none
	RequestTimeout time.Duration // Per relay call
	TipAccounts    []string      // Tip destinations
}

func loadDeployConfig() (DeployConfig, error) {
	config := DeployConfig{
		RPCURL:         viper.GetString("rpc_url"),
		RelayURL:       viper.GetString("relay_url"),
		TipLamports:    viper.GetUint64("tip_lamports"),
		MaxRetries:     viper.GetInt("max_retries"),
		DryRun:         viper.GetBool("dry_run"),
		KeypairPath:    viper.GetString("keypair"),
		TxFile:         viper.GetString("tx_file"),
		ConfirmTimeout: viper.GetDuration("confirm_timeout"),
		PollInterval:   viper.GetDuration("poll_interval"),
		BackoffUnit:    viper.GetDuration("backoff_unit"),
		MaxBackoff:     viper.GetDuration("max_backoff"),
		RequestTimeout: viper.GetDuration("request_timeout"),
		TipAccounts:    viper.GetStringSlice("tip_accounts"),
	}

	// Validate required config
	if config.KeypairPath == "" {
		return config, fmt.Errorf("payer keypair is required (--keypair or PAYER_KEYPAIR_PATH)")
	}
	if config.TxFile == "" {
		return config, fmt.Errorf("signed transaction file is required (--tx-file)")
	}
	if config.TipLamports == 0 {
		return config, fmt.Errorf("tip must be greater than zero")
	}
	if config.MaxRetries < 1 {
		return config, fmt.Errorf("max retries must be at least 1, got %d", config.MaxRetries)
	}
	if config.ConfirmTimeout <= 0 || config.PollInterval <= 0 {
		return config, fmt.Errorf("confirm timeout and poll interval must be positive")
	}
	return config, nil
}

func runDeploy(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)
	logger.Info("Starting LP bundle deployment")

	config, err := loadDeployConfig()
	if err != nil {
		return err
	}

	logger.Info("Configuration",
		zap.String("rpcURL", config.RPCURL),
		zap.String("relayURL", config.RelayURL),
		zap.Uint64("tipLamports", config.TipLamports),
		zap.Int("maxRetries", config.MaxRetries),
		zap.Bool("dryRun", config.DryRun),
		zap.Duration("confirmTimeout", config.ConfirmTimeout))

	payer, err := solana.PrivateKeyFromSolanaKeygenFile(config.KeypairPath)
	if err != nil {
		return fmt.Errorf("failed to load payer keypair: %v", err)
	}

	tipAccounts, err := bundle.ParseTipAccounts(config.TipAccounts)
	if err != nil {
		return err
	}
	tips, err := bundle.NewTipSelector(tipAccounts, nil)
	if err != nil {
		return err
	}

	lpSet, err := readTransactionFile(config.TxFile)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	solanaClient := clients.NewSolanaClient(logger, config.RPCURL)

	builder, err := bundle.NewBuilder(logger, payer, solanaClient, tips, config.TipLamports)
	if err != nil {
		return err
	}
	set, err := withTip(ctx, builder, lpSet, tipAccounts)
	if err != nil {
		return err
	}

	logger.Info("Bundle ready",
		zap.String("payer", payer.PublicKey().String()),
		zap.Int("transactions", set.Len()),
		zap.String("fingerprint", internal.Fingerprint(set)))

	if config.DryRun {
		return runDryRun(ctx, cmd.OutOrStdout(), logger, config, solanaClient, set)
	}

	if err := checkBalance(ctx, logger, solanaClient, payer.PublicKey(), config.TipLamports); err != nil {
		return err
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		ok, err := confirm(os.Stdin, cmd.OutOrStdout(), fmt.Sprintf(
			"Submit %d transaction(s) to %s with a %s SOL tip? [y/N] ",
			set.Len(), config.RelayURL, formatSOL(config.TipLamports)))
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("Aborted by operator")
			return nil
		}
	}

	relayClient, err := clients.NewRelayClient(logger, config.RelayURL, config.RequestTimeout)
	if err != nil {
		return fmt.Errorf("failed to create relay client: %v", err)
	}
	defer relayClient.Close()

	deployer, err := internal.NewDeployer(logger,
		internal.DeployerConfig{
			MaxRetries:     config.MaxRetries,
			ConfirmTimeout: config.ConfirmTimeout,
			BackoffUnit:    config.BackoffUnit,
			MaxBackoff:     config.MaxBackoff,
		},
		submitter.NewBundleSubmitter(logger, relayClient),
		submitter.NewPoller(logger, relayClient, submitter.WithPollInterval(config.PollInterval)),
		submitter.NewPublicFallback(logger, solanaClient, config.ConfirmTimeout, submitter.WithPollInterval(config.PollInterval)),
		nil)
	if err != nil {
		return fmt.Errorf("failed to initialize deployer: %v", err)
	}

	result, err := deployer.Deploy(ctx, set)
	out := cmd.OutOrStdout()
	if err != nil {
		var exhausted *submitter.FallbackExhaustedError
		if errors.As(err, &exhausted) && exhausted.Record != nil && exhausted.Record.Confirmed > 0 {
			fmt.Fprintf(out, "\nPARTIAL: %d of %d transaction(s) confirmed publicly before the failure.\n",
				exhausted.Record.Confirmed, set.Len())
		}
		return fmt.Errorf("deployment failed: %w", err)
	}

	switch result.Outcome {
	case internal.OutcomeBundleConfirmed:
		fmt.Fprintf(out, "\nBundle confirmed after %d attempt(s): %s\n", len(result.Attempts), result.Handle.ID)
	case internal.OutcomeFallbackConfirmed:
		fmt.Fprintf(out, "\nWARNING: bundle path exhausted, transactions confirmed through the public RPC.\n")
		fmt.Fprintf(out, "Privacy was lost: the transactions were visible in the public mempool.\n")
		fmt.Fprintf(out, "Signature: %s\n", result.Fallback.Signature())
	}

	fmt.Fprintf(out, "\nNext step: verify authorities with\n  TOKEN_MINT=<mint> lp-bundler verify --rpc-url %s\n", config.RPCURL)
	return nil
}

func runDryRun(ctx context.Context, out io.Writer, logger *zap.Logger, config DeployConfig, solanaClient *clients.SolanaClient, set bundle.SignedTransactionSet) error {
	deployer, err := internal.NewDeployer(logger,
		internal.DeployerConfig{MaxRetries: config.MaxRetries, DryRun: true},
		nil, nil, nil,
		submitter.NewSimulator(logger, solanaClient))
	if err != nil {
		return err
	}

	result, err := deployer.Deploy(ctx, set)
	if err != nil {
		return err
	}

	printSimulation(out, result.Simulation)

	if !result.Simulation.Passed() {
		return fmt.Errorf("simulation failed")
	}
	return nil
}

func printSimulation(out io.Writer, report *submitter.SimulationReport) {
	fmt.Fprintln(out, "\nDRY RUN: nothing was submitted")
	for _, res := range report.Results {
		status := "PASS"
		if !res.Passed() {
			status = fmt.Sprintf("FAIL (%v)", res.Err)
		}
		fmt.Fprintf(out, "Transaction %d: %s\n", res.Index, status)
		for _, line := range internal.TailLines(res.Logs, simulationLogLines) {
			fmt.Fprintf(out, "    %s\n", line)
		}
	}
}

// withTip appends a tip transaction unless the set already pays exactly one tip
// withTip appends a tip transaction when set carries none, then requires exactly one tip in the result
func withTip(ctx context.Context, builder *bundle.Builder, set bundle.SignedTransactionSet, tipAccounts []solana.PublicKey) (bundle.SignedTransactionSet, error) {
	count, err := bundle.CountTipTransfers(set, tipAccounts)
	if err != nil {
		return bundle.SignedTransactionSet{}, err
	}
	if count == 0 {
		if set, err = builder.AppendTipTransaction(ctx, set); err != nil {
			return bundle.SignedTransactionSet{}, err
		}
	}
	if _, err := bundle.ValidateTip(set, tipAccounts); err != nil {
		return bundle.SignedTransactionSet{}, err
	}
	return set, nil
}

func checkBalance(ctx context.Context, logger *zap.Logger, solanaClient *clients.SolanaClient, payer solana.PublicKey, tip uint64) error {
	balance, err := solanaClient.Balance(ctx, payer)
	if err != nil {
		return err
	}
	required := tip + BalanceReserveLamports

	logger.Info("Payer balance",
		zap.String("payer", payer.String()),
		zap.String("balanceSOL", formatSOL(balance)),
		zap.String("requiredSOL", formatSOL(required)))

	if balance < required {
		return fmt.Errorf("insufficient balance: %s SOL, need at least %s SOL", formatSOL(balance), formatSOL(required))
	}
	return nil
}

// readTransactionFile reads base64 transactions, one per line. Blank lines and # comments are skipped.
func readTransactionFile(path string) (bundle.SignedTransactionSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return bundle.SignedTransactionSet{}, fmt.Errorf("failed to open transaction file: %v", err)
	}
	defer f.Close()
	return parseTransactions(f)
}

func parseTransactions(r io.Reader) (bundle.SignedTransactionSet, error) {
	var encoded []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		encoded = append(encoded, line)
	}
	if err := scanner.Err(); err != nil {
		return bundle.SignedTransactionSet{}, fmt.Errorf("failed to read transactions: %v", err)
	}
	if len(encoded) == 0 {
		return bundle.SignedTransactionSet{}, fmt.Errorf("no transactions found")
	}

	set, err := bundle.ParseBase64(encoded...)
	if err != nil {
		return bundle.SignedTransactionSet{}, err
	}
	if _, err := set.Decode(); err != nil {
		return bundle.SignedTransactionSet{}, fmt.Errorf("invalid transaction: %v", err)
	}
	return set, nil
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read confirmation: %v", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func formatSOL(lamports uint64) string {
	return fmt.Sprintf("%d.%09d", lamports/solana.LAMPORTS_PER_SOL, lamports%solana.LAMPORTS_PER_SOL)
}
