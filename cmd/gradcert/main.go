package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/gradcert/console-client/api"
	"github.com/gradcert/console-client/broadcast"
	"github.com/gradcert/console-client/credstore"
	"github.com/gradcert/console-client/gateway"
	"github.com/gradcert/console-client/internal/config"
	"github.com/gradcert/console-client/session"
	"github.com/gradcert/console-client/token"
	"github.com/gradcert/console-client/token/refresh"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const appName = "gradcert"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Command-line client for the gradcert certificate console",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(viper.GetBool("verbose"))
		},
		Run: func(cmd *cobra.Command, args []string) {
			displayAppName()
			_ = cmd.Help()
		},
	}

	config.SetDefaults()
	rootCmd.PersistentFlags().String("base_url", "", "Console backend base URL")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	_ = viper.BindPFlag("base_url", rootCmd.PersistentFlags().Lookup("base_url"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(
		newLoginCommand(),
		newLogoutCommand(),
		newWhoamiCommand(),
		newRegisterCommand(),
		newResetPasswordCommand(),
		newTemplatesCommand(),
		newGraduantsCommand(),
		newCertificatesCommand(),
		newStatsCommand(),
	)
	return rootCmd
}

func setupLogging(verbose bool) {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func displayAppName() {
	banner := figure.NewFigure(appName, "cybermedium", true)
	banner.Print()
	fmt.Println()
}

// app bundles the wired client services for one command invocation.
type app struct {
	cfg        config.Config
	store      credstore.Store
	tokens     *token.Manager
	controller *session.Controller
	client     *api.Client
}

func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store := credstore.NewFileStore(cfg.SessionPath)
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	validator := token.NewValidator(store)
	refresher := refresh.NewCoordinator(store, cfg.BaseURL, refresh.WithHTTPClient(httpClient))
	tokens, err := token.NewManager(store, validator, refresher)
	if err != nil {
		return nil, err
	}

	logoutBroadcast := broadcast.New()
	logoutBroadcast.Register(func() {
		fmt.Fprintf(os.Stderr, "Session ended. Run '%s login' to sign in again.\n", appName)
	})

	gw, err := gateway.New(cfg.BaseURL, tokens, logoutBroadcast, gateway.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	controller, err := session.New(store, tokens, gw, logoutBroadcast,
		session.WithCheckInterval(cfg.CheckInterval),
		session.WithNotifier(func(notice session.Notice) {
			fmt.Fprintf(os.Stderr, "%s: %s\n", notice.Title, notice.Message)
		}))
	if err != nil {
		return nil, err
	}

	client, err := api.New(gw)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		store:      store,
		tokens:     tokens,
		controller: controller,
		client:     client,
	}, nil
}
