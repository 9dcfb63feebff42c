package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gagliardetto/solana-go"
	dotenv "github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/securemint/lp-bundler/internal/clients"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "lp-bundler",
	Short:        "Private bundle submission and post-deploy authority checks for Solana token launches",
	SilenceUsage: true,
}

func init() {
	// Tentatively load .env file
	_ = dotenv.Load()

	rootCmd.PersistentFlags().Bool(
		"debug",
		false,
		"Enables debug output.")

	rootCmd.PersistentFlags().Bool(
		"json",
		false,
		"Enables structured logging in JSON format.")

	// Shared by deploy and verify, so it lives on the root to keep a single viper binding
	rootCmd.PersistentFlags().String(
		"rpc-url",
		clients.DefaultSolanaRPCURL,
		"Solana RPC endpoint used for reads, simulation and the public fallback")

	viper.BindPFlag("rpc_url", rootCmd.PersistentFlags().Lookup("rpc-url"))
	bindEnv("rpc_url", "RPC_URL")

	cobra.OnInitialize(initConfig)
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("lp_bundler")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// bindEnv makes key readable from LP_BUNDLER_<KEY> and from the plain legacy name
func bindEnv(key, legacy string) {
	viper.BindEnv(key, "LP_BUNDLER_"+strings.ToUpper(key), legacy)
}

// parseOptionalKey returns nil for an empty value
func parseOptionalKey(name, value string) (*solana.PublicKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %v", name, value, err)
	}
	return &key, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(c)
	}()

	return ctx, cancel
}

func printBanner() {
	colours := []string{
		"\033[38;5;214m",
		"\033[38;5;208m",
		"\033[38;5;202m",
		"\033[38;5;166m",
		"\033[38;5;130m",
	}
	banner := `
 _     ___     ___              _ _
| |   | _ \___| _ )_  _ _ _  __| | |___ _ _
| |__ |  _/___| _ \ || | ' \/ _' | / -_) '_|
|____||_|     |___/\_,_|_||_\__,_|_\___|_|
`
	lines := strings.Split(banner, "\n")

	// remove empty lines
	for i := 0; i < len(lines); i++ {
		if lines[i] == "" {
			lines = append(lines[:i], lines[i+1:]...)
			i--
		}
	}

	for i, line := range lines {
		fmt.Printf("%s%s\n", colours[i%len(colours)], line)
	}

	fmt.Println("\033[0m") // Reset
}

func configureLogging(cmd *cobra.Command, _ []string) *zap.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	json, _ := cmd.Flags().GetBool("json")

	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.Development = true
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Configure JSON output if requested
	if json {
		config.Encoding = "json"
	} else {
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := config.Build()
	if err != nil {
		// Fallback to a basic logger if config fails
		logger, _ = zap.NewProduction()
	}

	// Replace the global logger
	zap.ReplaceGlobals(logger)

	return logger
}
