package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dropDatabas3/secproto/internal/cache"
	"github.com/dropDatabas3/secproto/internal/config"
	"github.com/dropDatabas3/secproto/internal/credentials"
	"github.com/dropDatabas3/secproto/internal/inventory/httpclient"
	"github.com/dropDatabas3/secproto/internal/observability/logger"
	"github.com/dropDatabas3/secproto/internal/orchestrator"
	"github.com/dropDatabas3/secproto/internal/remote"
	"github.com/dropDatabas3/secproto/internal/remote/sshexec"
	"github.com/dropDatabas3/secproto/internal/scanner"
	"github.com/dropDatabas3/secproto/internal/scanner/tlsprobe"
	"github.com/dropDatabas3/secproto/internal/security/secretbox"
	"github.com/dropDatabas3/secproto/internal/task"
	"github.com/dropDatabas3/secproto/internal/versiongate"
)

func initLogger(cfg *config.Config) {
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "secproto", Version: version})
}

// session agrupa los colaboradores de una corrida.
type session struct {
	cfg   *config.Config
	inv   *httpclient.Client
	scan  scanner.Scanner
	exec  remote.Executor
	creds credentials.Store
	cache cache.Client
	gate  *versiongate.Gate
}

func (s *session) Close() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
}

// login abre la sesión contra el inventario, pidiendo el password si falta.
func login(ctx context.Context, cfg *config.Config) (*httpclient.Client, error) {
	if cfg.Inventory.URL == "" {
		return nil, errors.New("inventory url requerida (--inventory-url o INVENTORY_URL)")
	}
	if cfg.Inventory.Username == "" {
		return nil, errors.New("usuario del inventario requerido (--username o INVENTORY_USERNAME)")
	}
	if cfg.Inventory.Password == "" {
		pw, err := readSecret("Inventory password: ")
		if err != nil {
			return nil, err
		}
		cfg.Inventory.Password = pw
	}
	c, err := httpclient.New(httpclient.Config{
		BaseURL:            cfg.Inventory.URL,
		Username:           cfg.Inventory.Username,
		Password:           cfg.Inventory.Password,
		InsecureSkipVerify: cfg.Inventory.InsecureSkipVerify,
		Timeout:            cfg.Inventory.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if err := c.Login(ctx); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return c, nil
}

// hostsFileKey usa SECRETBOX_MASTER_KEY o la pide una vez.
func hostsFileKey() (string, error) {
	if v := strings.TrimSpace(os.Getenv(secretbox.MasterKeyEnv)); v != "" {
		return v, nil
	}
	return readSecret("Hosts file key: ")
}

func loadCredentials(ctx context.Context, cfg *config.Config) (credentials.Store, error) {
	if cfg.SSH.HostsFile != "" {
		m, err := credentials.LoadHostsFile(ctx, cfg.SSH.HostsFile, hostsFileKey)
		if err != nil {
			return nil, fmt.Errorf("hosts file: %w", err)
		}
		logger.From(ctx).Info("hosts file loaded", logger.String("path", cfg.SSH.HostsFile), logger.Count(len(m)))
		return m, nil
	}
	if cfg.SSH.Username == "" {
		return nil, errors.New("credenciales de host requeridas (--esx-username/--esx-password o --hosts-file)")
	}
	if cfg.SSH.Password == "" {
		pw, err := readSecret("Host password: ")
		if err != nil {
			return nil, err
		}
		cfg.SSH.Password = pw
	}
	return credentials.Common(cfg.SSH.Username, cfg.SSH.Password), nil
}

func newSession(ctx context.Context, cfg *config.Config, simulate bool) (*session, error) {
	inv, err := login(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, inv: inv}

	gateOpts := cfg.VersionGate()
	if !gateOpts.Disabled || cfg.SSH.HostsFile != "" || cfg.SSH.Username != "" {
		if s.creds, err = loadCredentials(ctx, cfg); err != nil {
			return nil, err
		}
	}

	if simulate {
		s.scan = httpclient.SimScanner{C: inv}
		s.exec = httpclient.SimExecutor{C: inv, Service: cfg.SSH.Service}
	} else {
		s.scan = tlsprobe.New(cfg.SSH.Timeout)
		ex, err := sshexec.New(sshexec.Config{Port: cfg.SSH.Port, Timeout: cfg.SSH.Timeout, KnownHosts: cfg.SSH.KnownHosts}, inv)
		if err != nil {
			return nil, err
		}
		s.exec = ex
	}

	s.cache, err = cache.New(ctx, cfg.CacheConfig())
	if err != nil {
		logger.From(ctx).Warn("version cache unavailable, probing live", logger.Err(err))
		s.cache = nil
	}
	s.gate = versiongate.New(s.exec, s.creds, s.cache, gateOpts)
	return s, nil
}

func (s *session) orchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Deps{
		Inventory:     s.inv,
		Scanner:       s.scan,
		Gate:          s.gate,
		Credentials:   s.creds,
		Clock:         task.RealClock{},
		ClusterBudget: s.cfg.Polling.Cluster,
		HostBudget:    s.cfg.Polling.Host,
	})
}
