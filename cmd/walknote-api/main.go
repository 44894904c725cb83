package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/walknote/backend/internal/ai"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/billing"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/config"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/database"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/server"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/storage"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/users"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "walknote-api",
		Short: "WalkNote voice-note backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("cookie-name", defaults.GetString("auth.cookie_name"), "Session cookie name")
	cmd.PersistentFlags().String("gemini-api-key", "", "Gemini API key (overrides env)")
	cmd.PersistentFlags().String("gemini-model", defaults.GetString("gemini.model"), "Gemini model name")
	cmd.PersistentFlags().String("storage-endpoint", defaults.GetString("storage.endpoint"), "Object store endpoint")
	cmd.PersistentFlags().String("storage-bucket", defaults.GetString("storage.bucket"), "Object store bucket for audio")
	cmd.PersistentFlags().String("webhook-secret", "", "Billing webhook signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.cookie_name", "cookie-name")
	bindFlag(cmd, "gemini.api_key", "gemini-api-key")
	bindFlag(cmd, "gemini.model", "gemini-model")
	bindFlag(cmd, "storage.endpoint", "storage-endpoint")
	bindFlag(cmd, "storage.bucket", "storage-bucket")
	bindFlag(cmd, "billing.webhook_secret", "webhook-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	sessions, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SessionSigningKey),
		Issuer:        appConfig.SessionIssuer,
		CookieName:    appConfig.SessionCookieName,
	})
	if err != nil {
		return err
	}

	usersService, err := users.NewService(users.ServiceConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	audioStore, err := storage.NewAudioStore(ctx, storage.Config{
		Endpoint:  appConfig.StorageEndpoint,
		AccessKey: appConfig.StorageAccessKey,
		SecretKey: appConfig.StorageSecretKey,
		Bucket:    appConfig.StorageBucket,
		Secure:    appConfig.StorageSecure,
	}, logger)
	if err != nil {
		return err
	}

	generator, err := ai.NewGeminiGenerator(ctx, ai.GeminiConfig{
		APIKey: appConfig.GeminiAPIKey,
		Model:  appConfig.GeminiModel,
	})
	if err != nil {
		return err
	}
	aiClient, err := ai.NewClient(generator, logger)
	if err != nil {
		return err
	}

	repository, err := notes.NewRepository(db)
	if err != nil {
		return err
	}
	notesService, err := notes.NewService(notes.ServiceConfig{
		Repository: repository,
		Blobs:      audioStore,
		AI:         aiClient,
		Premium:    usersService,
		Clock:      time.Now,
		IDProvider: notes.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	var webhooks *billing.Processor
	if appConfig.WebhookSecret != "" {
		webhooks, err = billing.NewProcessor(appConfig.WebhookSecret, usersService, logger)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("billing webhook secret not configured; webhook endpoint disabled")
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:     sessions,
		NotesService: notesService,
		UsersService: usersService,
		Webhooks:     webhooks,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
