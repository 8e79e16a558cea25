package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/myzuwa/pawapay-go/libs/clients"
	appctx "github.com/myzuwa/pawapay-go/libs/context"
	errorutils "github.com/myzuwa/pawapay-go/libs/errors"
	"github.com/myzuwa/pawapay-go/libs/logging"
)

var (
	// RootCmd is the base command (what the binary is called)
	RootCmd = &cobra.Command{
		Use:   "pawapay-gateway",
		Short: "pawapay-gateway integrates mobile money deposits and payouts into the marketplace",
	}
	ctx = context.Background()
)

// Must helper to make sure there is no errors
func Must(err error) {
	if err != nil {
		fmt.Printf("failed to initialize: %s\n", err.Error())
		// exit with failure
		os.Exit(1)
	}
}

// Execute - the main entrypoint for all subcommands
func Execute(version, commit, buildTime string) {
	// setup context with logging, but first we need to setup the environment
	var logger *zerolog.Logger
	ctx = context.WithValue(ctx, appctx.EnvironmentCTXKey, viper.Get("environment"))
	ctx = context.WithValue(ctx, appctx.DebugLoggingCTXKey, viper.GetBool("debug"))
	ctx, logger = logging.SetupLogger(ctx)

	ctx = context.WithValue(ctx, appctx.VersionCTXKey, version)
	ctx = context.WithValue(ctx, appctx.CommitCTXKey, commit)
	ctx = context.WithValue(ctx, appctx.BuildTimeCTXKey, buildTime)

	// execute the root cmd
	if err := RootCmd.ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("./pawapay-gateway command encountered an error")
		os.Exit(1)
	}
}

func init() {
	// env - defaults to local
	RootCmd.PersistentFlags().String("environment", "local",
		"the default environment")
	Must(viper.BindPFlag("environment", RootCmd.PersistentFlags().Lookup("environment")))
	Must(viper.BindEnv("environment", "ENV"))

	// debug logging - defaults to off
	RootCmd.PersistentFlags().Bool("debug", false, "turn on debug logging")
	Must(viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug")))
	Must(viper.BindEnv("debug", "DEBUG"))

	// pawapayService (required by all)
	RootCmd.PersistentFlags().String("pawapay-service", "",
		"the pawapay api address for this service")
	Must(viper.BindPFlag("pawapay-service", RootCmd.PersistentFlags().Lookup("pawapay-service")))
	Must(viper.BindEnv("pawapay-service", "PAWAPAY_SERVICE"))

	// pawapayToken (required by all)
	RootCmd.PersistentFlags().String("pawapay-token", "",
		"the pawapay api bearer token for this service")
	Must(viper.BindPFlag("pawapay-token", RootCmd.PersistentFlags().Lookup("pawapay-token")))
	Must(viper.BindEnv("pawapay-token", "PAWAPAY_TOKEN"))

	// webhookSecret - shared secret for webhook signature verification
	RootCmd.PersistentFlags().String("webhook-secret", "",
		"the shared secret used to verify webhook signatures")
	Must(viper.BindPFlag("webhook-secret", RootCmd.PersistentFlags().Lookup("webhook-secret")))
	Must(viper.BindEnv("webhook-secret", "PAWAPAY_WEBHOOK_SECRET"))

	// country - the marketplace's mobile money country
	RootCmd.PersistentFlags().String("country", "ZMB",
		"the iso3 country the marketplace operates in")
	Must(viper.BindPFlag("country", RootCmd.PersistentFlags().Lookup("country")))
	Must(viper.BindEnv("country", "GATEWAY_COUNTRY"))

	// operatorCacheTTL
	RootCmd.PersistentFlags().Duration("operator-cache-ttl", 1*time.Hour,
		"the operator directory cache eviction duration")
	Must(viper.BindPFlag("operator-cache-ttl", RootCmd.PersistentFlags().Lookup("operator-cache-ttl")))
	Must(viper.BindEnv("operator-cache-ttl", "OPERATOR_CACHE_TTL"))

	RootCmd.AddCommand(VersionCmd)
}

// VersionCmd is the command to get the code's version information
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "get the version of this binary",
	Run:   versionRun,
}

func versionRun(command *cobra.Command, args []string) {
	version := command.Context().Value(appctx.VersionCTXKey).(string)
	commit := command.Context().Value(appctx.CommitCTXKey).(string)
	buildTime := command.Context().Value(appctx.BuildTimeCTXKey).(string)
	fmt.Printf("version: %s\ncommit: %s\nbuild time: %s\n",
		version, commit, buildTime,
	)
}

// Perform performs a run
func Perform(action string, fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		err := fn(cmd, args)
		if err != nil {
			logger, lerr := appctx.GetLogger(cmd.Context())
			if lerr != nil {
				_, logger = logging.SetupLogger(cmd.Context())
			}

			log := logger.Err(err).Str("action", action)
			httpError, ok := err.(*errorutils.ErrorBundle)
			if ok {
				state, ok := httpError.Data().(clients.HTTPState)
				if ok {
					log = log.Int("status", state.Status).
						Str("path", state.Path).
						Interface("data", state.Body)
				}
			}
			log.Msg("failed")
		}
		<-time.After(10 * time.Millisecond)
		if err != nil {
			os.Exit(1)
		}
	}
}
