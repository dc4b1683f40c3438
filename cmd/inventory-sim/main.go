// Command inventory-sim sirve una flota simulada, cargada de un fixture YAML,
// por el mismo API REST que consume secproto.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/secproto/internal/config"
	"github.com/dropDatabas3/secproto/internal/inventory/memory"
	"github.com/dropDatabas3/secproto/internal/inventory/server"
	"github.com/dropDatabas3/secproto/internal/metrics"
	"github.com/dropDatabas3/secproto/internal/observability/logger"
)

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load(".env")

	var (
		configPath string
		fleetPath  string
		addr       = envOr("SIM_ADDR", ":8989")
		username   = envOr("SIM_USERNAME", "admin")
		password   = envOr("SIM_PASSWORD", "")
		secret     = envOr("SIM_TOKEN_SECRET", "")
		tokenTTL   = time.Hour
	)

	root := &cobra.Command{
		Use:          "inventory-sim",
		Short:        "Inventario simulado para probar secproto sin infraestructura real",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "inventory-sim"})
			defer func() { _ = logger.Sync() }()
			log := logger.L()

			if fleetPath == "" {
				return errors.New("--fleet es requerido")
			}
			if password == "" {
				return errors.New("password requerido (--password o SIM_PASSWORD)")
			}
			fleet, err := memory.LoadFleet(fleetPath)
			if err != nil {
				return err
			}
			inv, err := memory.New(memory.Config{
				Port:      cfg.Change.Port,
				OptionKey: cfg.Change.OptionKey,
				Values:    cfg.EncodedValues(),
				Service:   cfg.SSH.Service,
			}, fleet)
			if err != nil {
				return err
			}
			if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
				return err
			}
			srv, err := server.New(inv, server.Config{
				Username: username,
				Password: password,
				Secret:   []byte(secret),
				TokenTTL: tokenTTL,
			})
			if err != nil {
				return err
			}

			httpSrv := &http.Server{
				Addr:         addr,
				Handler:      srv.Handler(),
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errCh := make(chan error, 1)
			go func() {
				log.Info("inventory simulator listening",
					logger.String("addr", addr),
					logger.Int("clusters", len(fleet.Clusters)),
					logger.Port(cfg.Change.Port))
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}
			log.Info("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(sctx)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "Archivo YAML de secproto (sección change)")
	root.Flags().StringVar(&fleetPath, "fleet", "", "Fixture YAML de la flota")
	root.Flags().StringVar(&addr, "addr", addr, "Dirección de escucha (env SIM_ADDR)")
	root.Flags().StringVar(&username, "username", username, "Usuario del API (env SIM_USERNAME)")
	root.Flags().StringVar(&password, "password", password, "Password del API (env SIM_PASSWORD)")
	root.Flags().StringVar(&secret, "token-secret", secret, "Clave HS256 de los tokens (env SIM_TOKEN_SECRET)")
	root.Flags().DurationVar(&tokenTTL, "token-ttl", tokenTTL, "Vida de los tokens de sesión")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
