package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-tagger/internal/api"
	"github.com/Veraticus/spice-tagger/internal/certs"
	"github.com/Veraticus/spice-tagger/internal/config"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		Long: `Run the HTTP API. Predictions, confirmations and tag memory are
available under /api/v1.

Examples:
  tagger serve
  tagger serve --addr 127.0.0.1:9090
  tagger serve --tls --tls-host tagger.lan`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default: server.addr)")
	cmd.Flags().Bool("tls", false, "Serve HTTPS with a self-signed certificate")
	cmd.Flags().StringSlice("tls-host", nil, "Extra host names or IPs the certificate covers")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.tls", cmd.Flags().Lookup("tls"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	e, err := initEngine(store)
	if err != nil {
		return err
	}

	cfg := api.DefaultConfig()
	if addr := viper.GetString("server.addr"); addr != "" {
		cfg.Addr = addr
	}
	if origins := viper.GetStringSlice("server.allowed_origins"); len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}
	if viper.IsSet("server.request_timeout") {
		cfg.RequestTimeout = viper.GetDuration("server.request_timeout")
	}

	srv := api.New(e, store, cfg)

	var tlsConfig *tls.Config
	if viper.GetBool("server.tls") {
		hosts, _ := cmd.Flags().GetStringSlice("tls-host")
		certStore := certs.NewStore(config.ExpandPath(viper.GetString("server.cert_dir")), hosts...)
		tlsConfig, err = certStore.TLSConfig()
		if err != nil {
			return fmt.Errorf("failed to prepare TLS certificate: %w", err)
		}
		certFile, _ := certStore.Paths()
		slog.Info("Using self-signed certificate", "cert", certFile)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", srv.Addr(), "tls", tlsConfig != nil)
		if tlsConfig != nil {
			errCh <- srv.StartTLS(tlsConfig)
			return
		}
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	return nil
}
