package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	chiware "github.com/go-chi/chi/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/myzuwa/pawapay-go/libs/clients/pawapay"
	appctx "github.com/myzuwa/pawapay-go/libs/context"
	"github.com/myzuwa/pawapay-go/libs/cryptography"
	"github.com/myzuwa/pawapay-go/libs/handlers"
	"github.com/myzuwa/pawapay-go/libs/logging"
	"github.com/myzuwa/pawapay-go/middleware"
	"github.com/myzuwa/pawapay-go/operator"
	"github.com/myzuwa/pawapay-go/payment"
	"github.com/myzuwa/pawapay-go/payout"
)

func init() {
	RootCmd.AddCommand(ServeCmd)

	// address - the default address to bind to
	ServeCmd.PersistentFlags().StringP("address", "a", ":8080",
		"the default address to bind to")
	Must(viper.BindPFlag("address", ServeCmd.PersistentFlags().Lookup("address")))
	Must(viper.BindEnv("address", "ADDR"))

	// datastore - the database connection url
	ServeCmd.PersistentFlags().String("datastore", "",
		"the datastore for the service")
	Must(viper.BindPFlag("datastore", ServeCmd.PersistentFlags().Lookup("datastore")))
	Must(viper.BindEnv("datastore", "DATABASE_URL"))
}

// ServeCmd - the serve subcommand, starts up the gateway rest microservice
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the payment gateway rest api",
	Run:   GatewayRestRun,
}

// validateServeConfig checks the configuration the gateway cannot run without.
// An empty webhook secret would verify any signature made with an empty key,
// so it is rejected here instead of at the first webhook.
func validateServeConfig() error {
	required := []string{"datastore", "pawapay-token", "webhook-secret"}
	var missing []string
	for _, key := range required {
		if viper.GetString(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// GatewayRestRun - Main entrypoint of the REST subcommand
// This function takes a cobra command and starts up the payment gateway
// rest microservice.
func GatewayRestRun(command *cobra.Command, args []string) {
	ctx := command.Context()
	logger, err := appctx.GetLogger(ctx)
	if err != nil {
		// no logger, setup
		ctx, logger = logging.SetupLogger(ctx)
	}

	// add our command line params to context
	ctx = context.WithValue(ctx, appctx.PawaPayServerCTXKey, viper.Get("pawapay-service"))
	ctx = context.WithValue(ctx, appctx.PawaPayAccessTokenCTXKey, viper.Get("pawapay-token"))
	ctx = context.WithValue(ctx, appctx.WebhookSecretCTXKey, viper.Get("webhook-secret"))
	ctx = context.WithValue(ctx, appctx.GatewayCountryCTXKey, viper.Get("country"))
	ctx = context.WithValue(ctx, appctx.DatabaseURLCTXKey, viper.Get("datastore"))
	ctx = context.WithValue(ctx, appctx.OperatorCacheTTLCTXKey, viper.GetDuration("operator-cache-ttl"))

	if err := validateServeConfig(); err != nil {
		logger.Fatal().Err(err).Msg("refusing to start")
	}

	country := viper.GetString("country")

	paymentDB, err := payment.NewPostgres(viper.GetString("datastore"), true)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize payment datastore")
	}
	payoutDB, err := payout.NewPostgres(viper.GetString("datastore"), false)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize payout datastore")
	}

	var gateway pawapay.Client
	if server := viper.GetString("pawapay-service"); server != "" {
		gateway, err = pawapay.NewWithOptions(server, viper.GetString("pawapay-token"))
	} else {
		gateway, err = pawapay.New()
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize pawapay client")
	}

	depositDirectory := operator.NewDirectory(gateway, country, "DEPOSIT", viper.GetDuration("operator-cache-ttl"))
	secret := cryptography.NewWebhookSecret(viper.GetString("webhook-secret"))

	paymentService := payment.InitService(paymentDB, gateway, depositDirectory, secret, country)
	payoutService := payout.InitService(payoutDB, gateway)

	// do rest endpoints
	r := setupRouter(ctx, logger)
	r.Mount("/v1/payment", payment.Router(paymentService))
	r.Mount("/v1/payout", payout.Router(payoutService))

	// setup server, and run
	srv := http.Server{
		Addr:         viper.GetString("address"),
		Handler:      chi.ServerBaseContext(ctx, r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	// make sure exceptions go to sentry
	defer sentry.Flush(time.Second * 2)

	if err = srv.ListenAndServe(); err != nil {
		sentry.CaptureException(err)
		logger.Fatal().Err(err).Msg("HTTP server start failed!")
	}
}

func setupRouter(ctx context.Context, logger *zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(
		chiware.RequestID,
		chiware.RealIP,
		chiware.Heartbeat("/"),
		chiware.Timeout(10*time.Second),
		middleware.BearerToken,
		middleware.RateLimiter(ctx, 180),
		middleware.RequestIDTransfer)
	if logger != nil {
		// Also handles panic recovery
		r.Use(
			hlog.NewHandler(*logger),
			hlog.UserAgentHandler("user_agent"),
			hlog.RequestIDHandler("req_id", "Request-Id"),
			middleware.RequestLogger(logger))

		logger.Info().
			Str("version", versionFromContext(ctx, appctx.VersionCTXKey)).
			Str("commit", versionFromContext(ctx, appctx.CommitCTXKey)).
			Str("build_time", versionFromContext(ctx, appctx.BuildTimeCTXKey)).
			Str("pawapay_service", viper.GetString("pawapay-service")).
			Str("address", viper.GetString("address")).
			Str("environment", viper.GetString("environment")).
			Msg("server starting")
	}
	// we will always have metrics and health-check
	r.Get("/metrics", middleware.Metrics())
	r.Get("/health-check", handlers.HealthCheckHandler(
		versionFromContext(ctx, appctx.VersionCTXKey),
		versionFromContext(ctx, appctx.BuildTimeCTXKey),
		versionFromContext(ctx, appctx.CommitCTXKey)))
	return r
}

func versionFromContext(ctx context.Context, key appctx.CTXKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return "unknown"
}
