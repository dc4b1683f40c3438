// Package sshexec implementa remote.Executor sobre SSH: una conexión y una
// sesión por comando, autenticando por password o keyboard-interactive.
// Los servicios del host se controlan por el inventario.
package sshexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/dropDatabas3/secproto/internal/credentials"
	"github.com/dropDatabas3/secproto/internal/errs"
	"github.com/dropDatabas3/secproto/internal/inventory"
	"github.com/dropDatabas3/secproto/internal/observability/logger"
	"github.com/dropDatabas3/secproto/internal/remote"
)

// Config del transporte.
type Config struct {
	Port    int
	Timeout time.Duration
	// KnownHosts es un archivo known_hosts; vacío acepta cualquier host key.
	KnownHosts string
}

// Executor es seguro para uso concurrente.
type Executor struct {
	cfg      Config
	services inventory.ServiceController
	hostKeys ssh.HostKeyCallback
}

var _ remote.Executor = (*Executor)(nil)

// New crea el executor. services resuelve ServiceState/Start/Stop.
func New(cfg Config, services inventory.ServiceController) (*Executor, error) {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cb := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHosts != "" {
		k, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("known_hosts: %w", err)
		}
		cb = k
	}
	return &Executor{cfg: cfg, services: services, hostKeys: cb}, nil
}

func (e *Executor) clientConfig(cred credentials.Credential) *ssh.ClientConfig {
	answer := func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		out := make([]string, len(questions))
		for i := range questions {
			out[i] = cred.Password
		}
		return out, nil
	}
	return &ssh.ClientConfig{
		User: cred.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(cred.Password),
			ssh.KeyboardInteractive(answer),
		},
		HostKeyCallback: e.hostKeys,
		Timeout:         e.cfg.Timeout,
	}
}

func (e *Executor) dial(ctx context.Context, host string, cred credentials.Credential) (*ssh.Client, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(e.cfg.Port))
	d := net.Dialer{Timeout: e.cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	} else {
		_ = conn.SetDeadline(time.Now().Add(e.cfg.Timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, e.clientConfig(cred))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

// Run abre una conexión, ejecuta command y la cierra. Un exit status distinto
// de cero no es error: vuelve en Result.
func (e *Executor) Run(ctx context.Context, host, command string, cred credentials.Credential) (remote.Result, error) {
	const op = "ssh.run"
	log := logger.From(ctx).With(logger.Component("sshexec"), logger.Host(host))

	client, err := e.dial(ctx, host, cred)
	if err != nil {
		log.Warn("ssh connection failed", logger.Err(err))
		return remote.Result{}, errs.E(errs.Transport, op, host, err)
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		return remote.Result{}, errs.E(errs.Transport, op, host, err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(command) }()

	select {
	case <-ctx.Done():
		_ = client.Close()
		return remote.Result{}, errs.E(errs.Transport, op, host, ctx.Err())
	case err = <-done:
	}

	res := remote.Result{Stdout: stdout.String()}
	var exitErr *ssh.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitStatus = exitErr.ExitStatus()
		log.Debug("remote command exited non-zero", logger.Int("exit_status", res.ExitStatus), logger.String("stderr", stderr.String()))
	default:
		return res, errs.E(errs.Transport, op, host, err)
	}
	return res, nil
}

func (e *Executor) ServiceState(ctx context.Context, host, service string) (inventory.ServiceState, error) {
	return e.services.ServiceState(ctx, host, service)
}

func (e *Executor) StartService(ctx context.Context, host, service string) error {
	return e.services.StartService(ctx, host, service)
}

func (e *Executor) StopService(ctx context.Context, host, service string) error {
	return e.services.StopService(ctx, host, service)
}
