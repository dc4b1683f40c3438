package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dropDatabas3/secproto/internal/credentials"
	"github.com/dropDatabas3/secproto/internal/errs"
	"github.com/dropDatabas3/secproto/internal/inventory"
	"github.com/dropDatabas3/secproto/internal/inventory/server"
	"github.com/dropDatabas3/secproto/internal/remote"
	"github.com/dropDatabas3/secproto/internal/scanner"
)

// SimScanner escanea a través de los endpoints simulados del inventario.
type SimScanner struct{ C *Client }

var _ scanner.Scanner = SimScanner{}

func (s SimScanner) Scan(ctx context.Context, host string, port int) ([]string, error) {
	var pr server.ProtocolsResponse
	path := "/api/sim/hosts/" + url.PathEscape(host) + "/ports/" + strconv.Itoa(port) + "/protocols"
	if err := s.C.do(ctx, "sim.scan", http.MethodGet, path, nil, &pr); err != nil {
		return nil, err
	}
	return pr.Protocols, nil
}

// SimExecutor ejecuta comandos en el simulador. Como por SSH, exige el
// servicio de acceso remoto corriendo y credenciales no vacías.
type SimExecutor struct {
	C       *Client
	Service string
}

var _ remote.Executor = SimExecutor{}

func (e SimExecutor) Run(ctx context.Context, host, command string, cred credentials.Credential) (remote.Result, error) {
	const op = "sim.exec"
	st, err := e.C.ServiceState(ctx, host, e.Service)
	if err != nil {
		return remote.Result{}, err
	}
	if st != inventory.ServiceRunning {
		return remote.Result{}, errs.E(errs.Transport, op, host, fmt.Errorf("connection refused"))
	}
	if cred.Username == "" || cred.Password == "" {
		return remote.Result{}, errs.E(errs.Transport, op, host, fmt.Errorf("authentication failed"))
	}
	var out server.ExecResponse
	if err := e.C.do(ctx, op, http.MethodPost, "/api/sim/hosts/"+url.PathEscape(host)+"/exec", server.ExecRequest{Command: command}, &out); err != nil {
		return remote.Result{}, err
	}
	return remote.Result{Stdout: out.Stdout, ExitStatus: out.ExitStatus}, nil
}

func (e SimExecutor) ServiceState(ctx context.Context, host, service string) (inventory.ServiceState, error) {
	return e.C.ServiceState(ctx, host, service)
}

func (e SimExecutor) StartService(ctx context.Context, host, service string) error {
	return e.C.StartService(ctx, host, service)
}

func (e SimExecutor) StopService(ctx context.Context, host, service string) error {
	return e.C.StopService(ctx, host, service)
}
