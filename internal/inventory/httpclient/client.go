// Package httpclient implementa inventory.Client sobre el API REST del
// inventario: login con usuario y password, token bearer reutilizado en
// cada llamada.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/secproto/internal/errs"
	"github.com/dropDatabas3/secproto/internal/inventory"
	"github.com/dropDatabas3/secproto/internal/inventory/server"
	"github.com/dropDatabas3/secproto/internal/observability/logger"
	"github.com/dropDatabas3/secproto/internal/task"
)

// ErrUnauthorized: el endpoint respondió 401.
var ErrUnauthorized = errors.New("unauthorized")

type Config struct {
	BaseURL            string
	Username           string
	Password           string
	InsecureSkipVerify bool
	Timeout            time.Duration
	// HTTPClient reemplaza el cliente armado a partir de Timeout/Insecure.
	HTTPClient *http.Client
}

type Client struct {
	base *url.URL
	cfg  Config
	hc   *http.Client

	mu    sync.RWMutex
	token string
}

var (
	_ inventory.Client            = (*Client)(nil)
	_ inventory.ServiceController = (*Client)(nil)
)

func New(cfg Config) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errs.E(errs.Config, "httpclient.new", cfg.BaseURL, fmt.Errorf("invalid inventory url"))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.InsecureSkipVerify {
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		hc = &http.Client{Timeout: cfg.Timeout, Transport: tr}
	}
	return &Client{base: u, cfg: cfg, hc: hc}, nil
}

// Login abre la sesión. Debe llamarse antes de cualquier otra operación.
func (c *Client) Login(ctx context.Context) error {
	var out server.SessionResponse
	in := server.SessionRequest{Username: c.cfg.Username, Password: c.cfg.Password}
	if err := c.do(ctx, "inventory.login", http.MethodPost, "/api/session", in, &out); err != nil {
		return err
	}
	c.mu.Lock()
	c.token = out.Token
	c.mu.Unlock()
	logger.From(ctx).Info("inventory session opened", logger.String("url", c.base.String()), logger.String("username", c.cfg.Username))
	return nil
}

func (c *Client) About(ctx context.Context) (inventory.About, error) {
	var a inventory.About
	err := c.do(ctx, "inventory.about", http.MethodGet, "/api/about", nil, &a)
	return a, err
}

func (c *Client) ListClusters(ctx context.Context) ([]inventory.Cluster, error) {
	var cs []inventory.Cluster
	err := c.do(ctx, "inventory.list_clusters", http.MethodGet, "/api/clusters", nil, &cs)
	return cs, err
}

func (c *Client) ListMemberHosts(ctx context.Context, cluster string) ([]inventory.Host, error) {
	var hs []inventory.Host
	err := c.do(ctx, "inventory.list_member_hosts", http.MethodGet, "/api/clusters/"+url.PathEscape(cluster)+"/hosts", nil, &hs)
	return hs, err
}

// AllHosts lista todos los hosts del inventario, incluso desconectados.
func (c *Client) AllHosts(ctx context.Context) ([]inventory.Host, error) {
	var hs []inventory.Host
	err := c.do(ctx, "inventory.all_hosts", http.MethodGet, "/api/hosts", nil, &hs)
	return hs, err
}

func (c *Client) GetAdvancedOptions(ctx context.Context, cluster string) ([]inventory.Option, error) {
	var body server.OptionsBody
	err := c.do(ctx, "inventory.get_advanced_options", http.MethodGet, "/api/clusters/"+url.PathEscape(cluster)+"/options", nil, &body)
	return body.Options, err
}

func (c *Client) SetAdvancedOptions(ctx context.Context, cluster string, opts []inventory.Option) (task.Handle, error) {
	var tr server.TaskResponse
	in := server.OptionsBody{Options: opts}
	if err := c.do(ctx, "inventory.set_advanced_options", http.MethodPut, "/api/clusters/"+url.PathEscape(cluster)+"/options", in, &tr); err != nil {
		return task.Handle{}, err
	}
	return task.Handle{ID: tr.ID}, nil
}

func (c *Client) ReconfigureHost(ctx context.Context, host string) (task.Handle, error) {
	var tr server.TaskResponse
	if err := c.do(ctx, "inventory.reconfigure_host", http.MethodPost, "/api/hosts/"+url.PathEscape(host)+"/reconfigure", nil, &tr); err != nil {
		return task.Handle{}, err
	}
	return task.Handle{ID: tr.ID}, nil
}

func (c *Client) PollTask(ctx context.Context, h task.Handle) (task.State, error) {
	var tr server.TaskResponse
	if err := c.do(ctx, "inventory.poll_task", http.MethodGet, "/api/tasks/"+url.PathEscape(h.ID), nil, &tr); err != nil {
		return "", err
	}
	st, err := task.ParseState(tr.State)
	if err != nil {
		return "", errs.E(errs.Transport, "inventory.poll_task", h.ID, err)
	}
	return st, nil
}

func (c *Client) ServiceState(ctx context.Context, host, service string) (inventory.ServiceState, error) {
	var sr server.ServiceResponse
	err := c.do(ctx, "inventory.service_state", http.MethodGet, servicePath(host, service), nil, &sr)
	return sr.State, err
}

func (c *Client) StartService(ctx context.Context, host, service string) error {
	return c.do(ctx, "inventory.start_service", http.MethodPost, servicePath(host, service)+"/start", nil, nil)
}

func (c *Client) StopService(ctx context.Context, host, service string) error {
	return c.do(ctx, "inventory.stop_service", http.MethodPost, servicePath(host, service)+"/stop", nil, nil)
}

func servicePath(host, service string) string {
	return "/api/hosts/" + url.PathEscape(host) + "/services/" + url.PathEscape(service)
}

// do serializa in (si no es nil), agrega el bearer y decodifica out. Todo
// error sale como errs.Transport.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errs.E(errs.Transport, op, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return errs.E(errs.Transport, op, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.hc.Do(req)
	if err != nil {
		return errs.E(errs.Transport, op, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errs.E(errs.Transport, op, path, fmt.Errorf("%w: %s", ErrUnauthorized, readAPIError(resp.Body)))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errs.E(errs.Transport, op, path, fmt.Errorf("status %d: %s", resp.StatusCode, readAPIError(resp.Body)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.E(errs.Transport, op, path, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func readAPIError(r io.Reader) string {
	var e struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	b, _ := io.ReadAll(io.LimitReader(r, 64<<10))
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		if e.ErrorDescription != "" {
			return e.Error + ": " + e.ErrorDescription
		}
		return e.Error
	}
	return strings.TrimSpace(string(b))
}
