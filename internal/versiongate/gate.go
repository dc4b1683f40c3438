// Package versiongate filtra hosts y endpoint según la versión de software.
//
// El gate falla cerrado: cualquier error de transporte o de parseo deja la
// entidad como no elegible, nunca se propaga como error duro.
package versiongate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dropDatabas3/secproto/internal/cache"
	"github.com/dropDatabas3/secproto/internal/credentials"
	"github.com/dropDatabas3/secproto/internal/errs"
	"github.com/dropDatabas3/secproto/internal/inventory"
	"github.com/dropDatabas3/secproto/internal/observability/logger"
	"github.com/dropDatabas3/secproto/internal/remote"
)

// Options del gate.
type Options struct {
	Minimum  Minimum
	Command  string
	Service  string
	CacheTTL time.Duration
	// Disabled deja pasar todo sin probar; para fleets ya auditados.
	Disabled bool
}

// Gate prueba la versión de cada host por el executor. Si el servicio de
// acceso remoto estaba detenido lo arranca y lo recuerda para Release.
type Gate struct {
	exec  remote.Executor
	creds credentials.Store
	cache cache.Client
	opts  Options

	mu      sync.Mutex
	started []string
}

// New crea un gate. cache puede ser nil.
func New(exec remote.Executor, creds credentials.Store, c cache.Client, opts Options) *Gate {
	return &Gate{exec: exec, creds: creds, cache: c, opts: opts}
}

// Endpoint chequea el endpoint de inventario antes de tocar clusters.
func (g *Gate) Endpoint(ctx context.Context, about inventory.About) error {
	if g.opts.Disabled {
		return nil
	}
	if !g.opts.Minimum.EndpointEligible(about.Version, about.Build) {
		return errs.E(errs.VersionUnsupported, "versiongate.endpoint", about.Name,
			fmt.Errorf("%s build %s; se requiere %s build %s o superior",
				about.Version, about.Build, g.opts.Minimum.Version, g.opts.Minimum.EndpointBuild))
	}
	return nil
}

// Eligible indica si host soporta el cambio.
func (g *Gate) Eligible(ctx context.Context, host string) bool {
	return g.check(ctx, host) == nil
}

// CheckAll corre el gate sobre cada host en orden y se detiene en el primero
// que no pasa. Devuelve un error VersionUnsupported describiendo ese host.
func (g *Gate) CheckAll(ctx context.Context, hosts []string) error {
	if g.opts.Disabled {
		return nil
	}
	for _, h := range hosts {
		if err := g.check(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gate) check(ctx context.Context, host string) error {
	const op = "versiongate.host"
	if g.opts.Disabled {
		return nil
	}
	log := logger.From(ctx).With(logger.Component("versiongate"), logger.Host(host))

	v, err := g.probe(ctx, host)
	if err != nil {
		log.Warn("version probe failed, host not eligible", logger.Err(err))
		return errs.E(errs.VersionUnsupported, op, host, err)
	}
	if !g.opts.Minimum.HostEligible(v) {
		m := g.opts.Minimum
		log.Warn("host version not supported", logger.String("version", v.String()))
		return errs.E(errs.VersionUnsupported, op, host,
			fmt.Errorf("%s; se requiere %s Update-%s Build-%s o superior", v, m.Version, m.Update, m.HostBuild))
	}
	log.Debug("host version supported", logger.String("version", v.String()))
	return nil
}

func cacheKey(host string) string { return "version:" + host }

// probe devuelve la terna de versión, del cache si está.
func (g *Gate) probe(ctx context.Context, host string) (Version, error) {
	if v, ok := g.cached(ctx, host); ok {
		return v, nil
	}
	cred, ok := g.creds.Lookup(host)
	if !ok {
		return Version{}, fmt.Errorf("sin credenciales para %s", host)
	}
	if err := g.ensureService(ctx, host); err != nil {
		return Version{}, err
	}
	res, err := g.exec.Run(ctx, host, g.opts.Command, cred)
	if err != nil {
		return Version{}, err
	}
	if res.ExitStatus != 0 {
		return Version{}, fmt.Errorf("%q exit status %d", g.opts.Command, res.ExitStatus)
	}
	v, err := ParseOutput(res.Stdout)
	if err != nil {
		return Version{}, err
	}
	g.store(ctx, host, v)
	return v, nil
}

func (g *Gate) cached(ctx context.Context, host string) (Version, bool) {
	if g.cache == nil {
		return Version{}, false
	}
	raw, err := g.cache.Get(ctx, cacheKey(host))
	if err != nil {
		if !cache.IsNotFound(err) {
			logger.From(ctx).Warn("version cache read failed", logger.Host(host), logger.Err(err))
		}
		return Version{}, false
	}
	var v Version
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Version{}, false
	}
	return v, true
}

func (g *Gate) store(ctx context.Context, host string, v Version) {
	if g.cache == nil {
		return
	}
	b, _ := json.Marshal(v)
	if err := g.cache.Set(ctx, cacheKey(host), string(b), g.opts.CacheTTL); err != nil {
		logger.From(ctx).Warn("version cache write failed", logger.Host(host), logger.Err(err))
	}
}

// ensureService arranca el servicio de acceso remoto si no corre.
func (g *Gate) ensureService(ctx context.Context, host string) error {
	st, err := g.exec.ServiceState(ctx, host, g.opts.Service)
	if err != nil {
		return fmt.Errorf("estado de %s: %w", g.opts.Service, err)
	}
	if st == inventory.ServiceRunning {
		return nil
	}
	if err := g.exec.StartService(ctx, host, g.opts.Service); err != nil {
		return fmt.Errorf("arrancar %s: %w", g.opts.Service, err)
	}
	g.mu.Lock()
	g.started = append(g.started, host)
	g.mu.Unlock()
	logger.From(ctx).Info("remote access service started", logger.Host(host), logger.String("service", g.opts.Service))
	return nil
}

// Started lista los hosts donde el gate arrancó el servicio y aún no lo detuvo.
func (g *Gate) Started() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.started...)
}

// Release detiene el servicio en los hosts dados donde lo arrancó el gate;
// sin hosts detiene todos. Los que fallan quedan pendientes.
func (g *Gate) Release(ctx context.Context, hosts ...string) error {
	want := map[string]bool{}
	for _, h := range hosts {
		want[h] = true
	}
	var todo []string
	for _, h := range g.Started() {
		if len(hosts) == 0 || want[h] {
			todo = append(todo, h)
		}
	}

	stopped := map[string]bool{}
	var firstErr error
	for _, h := range todo {
		if err := g.exec.StopService(ctx, h, g.opts.Service); err != nil {
			logger.From(ctx).Error("could not stop remote access service, stop it manually",
				logger.Host(h), logger.String("service", g.opts.Service), logger.Err(err))
			if firstErr == nil {
				firstErr = errs.E(errs.Transport, "versiongate.release", h, err)
			}
			continue
		}
		stopped[h] = true
		logger.From(ctx).Info("remote access service stopped", logger.Host(h), logger.String("service", g.opts.Service))
	}

	g.mu.Lock()
	pending := g.started[:0]
	for _, h := range g.started {
		if !stopped[h] {
			pending = append(pending, h)
		}
	}
	g.started = pending
	g.mu.Unlock()
	return firstErr
}
