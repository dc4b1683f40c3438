package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/secproto/internal/config"
	"github.com/dropDatabas3/secproto/internal/history"
	historypg "github.com/dropDatabas3/secproto/internal/history/pg"
	"github.com/dropDatabas3/secproto/internal/metrics"
	"github.com/dropDatabas3/secproto/internal/notify"
	"github.com/dropDatabas3/secproto/internal/observability/logger"
	"github.com/dropDatabas3/secproto/internal/orchestrator"
	"github.com/dropDatabas3/secproto/internal/protocol"
	"github.com/dropDatabas3/secproto/internal/report"
)

func applyCmd(f *flags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:       "apply enable|disable",
		Short:     "Aplica el cambio en todos los clusters con HA habilitado",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"enable", "disable", "enablessl", "disablessl"},
		RunE: func(cmd *cobra.Command, args []string) error {
			intent, err := protocol.ParseIntent(args[0])
			if err != nil {
				return setupErr(err)
			}
			cfg, err := f.load()
			if err != nil {
				return setupErr(err)
			}
			initLogger(cfg)

			if intent == protocol.Disable && !yes {
				fmt.Fprint(cmd.ErrOrStderr(), disableWarning)
				if !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), "Would you like to continue? Please enter") {
					fmt.Fprintln(cmd.ErrOrStderr(), "Ending the script execution")
					return nil
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return apply(ctx, cfg, f.simulate, intent, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "No pedir confirmación al deshabilitar")
	return cmd
}

func changeRequest(cfg *config.Config, intent protocol.Intent) (orchestrator.Request, error) {
	ch, err := protocol.NewChangeRequest(intent, cfg.Change.OptionKey, cfg.EncodedValues())
	if err != nil {
		return orchestrator.Request{}, err
	}
	return orchestrator.Request{Change: ch, Port: cfg.Change.Port}, nil
}

func apply(ctx context.Context, cfg *config.Config, simulate bool, intent protocol.Intent, out io.Writer) error {
	log := logger.From(ctx).With(logger.Op("apply"))
	req, err := changeRequest(cfg, intent)
	if err != nil {
		return setupErr(err)
	}
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn("metrics registration failed", logger.Err(err))
	}

	s, err := newSession(ctx, cfg, simulate)
	if err != nil {
		return setupErr(err)
	}
	defer s.Close()

	agg := report.NewAggregator(report.Meta{Change: req.Change, Port: req.Port, ServiceName: cfg.Change.ServiceName})
	run, err := s.orchestrator().Run(ctx, req, agg)
	if err != nil {
		return setupErr(err)
	}
	fr := agg.Report(run)

	if err := writeReports(ctx, cfg, fr, out); err != nil {
		log.Error("report write failed", logger.Err(err))
	}
	saveHistory(ctx, cfg, fr)
	alert(ctx, cfg, fr)
	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile, prometheus.DefaultGatherer); err != nil {
			log.Error("metrics textfile write failed", logger.Err(err))
		}
	}

	log.Info("run finished",
		logger.RunID(fr.RunID),
		logger.Int("clusters", fr.Summary.Clusters),
		logger.Int("succeeded", fr.Summary.Succeeded),
		logger.Int("rolled_back", fr.Summary.RolledBack),
		logger.Int("rollback_failed", fr.Summary.RollbackFailed),
	)
	if code := fr.ExitCode(); code != exitOK {
		return &exitError{code: code, err: fmt.Errorf("run %s finished with exit code %d", fr.RunID, code)}
	}
	return nil
}

func writeReports(ctx context.Context, cfg *config.Config, fr report.FleetReport, out io.Writer) error {
	var errs []error
	if err := report.WriteTable(out, fr); err != nil {
		errs = append(errs, err)
	}
	if cfg.Report.CSV != nil && *cfg.Report.CSV {
		path, err := report.WriteCSVFile(cfg.Report.Dir, fr, time.Now())
		if err != nil {
			errs = append(errs, err)
		} else {
			logger.From(ctx).Info("csv report written", logger.String("path", path))
		}
	}
	if cfg.Report.JSON {
		path, err := report.WriteJSONFile(cfg.Report.Dir, fr)
		if err != nil {
			errs = append(errs, err)
		} else {
			logger.From(ctx).Info("json report written", logger.String("path", path))
		}
	}
	return errors.Join(errs...)
}

// saveHistory nunca cambia el resultado de la corrida.
func saveHistory(ctx context.Context, cfg *config.Config, fr report.FleetReport) {
	log := logger.From(ctx).With(logger.Component("history"))
	store, err := openHistory(ctx, cfg.History.DSN)
	if err != nil {
		log.Error("history unavailable", logger.Err(err))
		return
	}
	defer store.Close()
	if err := store.Save(ctx, fr); err != nil {
		log.Error("history save failed", logger.RunID(fr.RunID), logger.Err(err))
	}
}

// openHistory devuelve Noop sin DSN.
func openHistory(ctx context.Context, dsn string) (history.Store, error) {
	if dsn == "" {
		return history.Noop{}, nil
	}
	pg, err := historypg.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("history schema: %w", err)
	}
	return pg, nil
}

func alert(ctx context.Context, cfg *config.Config, fr report.FleetReport) {
	manual := fr.NeedsManualAction()
	if len(manual) == 0 {
		return
	}
	log := logger.From(ctx)
	for _, cr := range manual {
		log.Error("cluster requires manual intervention", logger.Cluster(cr.Cluster), logger.State(cr.State), logger.String("error", cr.Error))
	}
	var n notify.Notifier = notify.Noop{}
	if cfg.NotifyEnabled() {
		smtp, err := notify.NewSMTP(notify.SMTPConfig{
			Host:     cfg.Notify.SMTP.Host,
			Port:     cfg.Notify.SMTP.Port,
			Username: cfg.Notify.SMTP.Username,
			Password: cfg.Notify.SMTP.Password,
			From:     cfg.Notify.SMTP.From,
			To:       cfg.Notify.SMTP.To,
			TLSMode:  cfg.Notify.SMTP.TLS,
		})
		if err != nil {
			log.Error("smtp notifier misconfigured", logger.Err(err))
		} else {
			n = smtp
		}
	}
	if err := n.RollbackFailed(ctx, fr, manual); err != nil {
		log.Error("manual action alert failed", logger.Err(err))
	}
}
