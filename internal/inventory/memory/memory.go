// Package memory implementa un inventario en memoria: la flota simulada que
// sirve el simulador y el fake programable de los tests.
//
// Además del contrato de inventario implementa scanner.Scanner y
// remote.Executor sobre el mismo estado, de modo que una reconfiguración de
// host exitosa cambia lo que el scanner observa.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dropDatabas3/secproto/internal/credentials"
	"github.com/dropDatabas3/secproto/internal/errs"
	"github.com/dropDatabas3/secproto/internal/inventory"
	"github.com/dropDatabas3/secproto/internal/protocol"
	"github.com/dropDatabas3/secproto/internal/remote"
	"github.com/dropDatabas3/secproto/internal/task"
)

// VersionCommand es el comando que el inventario simulado sabe responder.
const VersionCommand = "esxcli system version get"

// ErrNotFound: host, cluster o tarea desconocidos.
var ErrNotFound = errors.New("not found")

// Config fija el puerto monitoreado y la codificación de la opción.
type Config struct {
	Port      int
	OptionKey string
	Values    protocol.EncodedValues
	Service   string
}

type host struct {
	spec      HostSpec
	connected bool
	protocols protocol.Set
	services  map[string]inventory.ServiceState
	steps     []Step
	scanErr   error
	submitErr error
}

type cluster struct {
	spec      ClusterSpec
	options   []inventory.Option
	hosts     []*host
	steps     []Step
	submitErr error
}

type taskRecord struct {
	pollsLeft int
	final     task.State
	done      bool
	onSuccess func()
}

// Calls cuenta las mutaciones recibidas.
type Calls struct {
	SetOptions  map[string]int
	Reconfigure map[string]int
}

// Inventory es seguro para uso concurrente.
type Inventory struct {
	cfg Config

	mu       sync.Mutex
	about    inventory.About
	clusters []*cluster
	byHost   map[string]*host
	tasks    map[string]*taskRecord
	calls    Calls
}

// New construye el inventario a partir del fixture.
func New(cfg Config, f Fleet) (*Inventory, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if cfg.Service == "" {
		cfg.Service = "TSM-SSH"
	}
	inv := &Inventory{
		cfg:    cfg,
		about:  f.About,
		byHost: map[string]*host{},
		tasks:  map[string]*taskRecord{},
		calls:  Calls{SetOptions: map[string]int{}, Reconfigure: map[string]int{}},
	}
	for _, cs := range f.Clusters {
		c := &cluster{spec: cs, options: inventory.CloneOptions(cs.Options), steps: cs.Tasks}
		for _, hs := range cs.Hosts {
			h := &host{
				spec:      hs,
				connected: !hs.Disconnected,
				protocols: protocol.NewSet(hs.Protocols...),
				services:  map[string]inventory.ServiceState{cfg.Service: inventory.ServiceStopped},
				steps:     hs.Tasks,
			}
			if hs.Protocols == nil {
				h.protocols = cfg.Values.SetForValue(lookupValue(c.options, cfg.OptionKey))
			}
			if hs.SSHRunning {
				h.services[cfg.Service] = inventory.ServiceRunning
			}
			if hs.ScanError != "" {
				h.scanErr = fmt.Errorf("%s", hs.ScanError)
			}
			c.hosts = append(c.hosts, h)
			inv.byHost[hs.Name] = h
		}
		inv.clusters = append(inv.clusters, c)
	}
	return inv, nil
}

func lookupValue(opts []inventory.Option, key string) string {
	v, _ := inventory.Lookup(opts, key)
	return v
}

func (m *Inventory) About(ctx context.Context) (inventory.About, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.about, nil
}

func (m *Inventory) ListClusters(ctx context.Context) ([]inventory.Cluster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]inventory.Cluster, 0, len(m.clusters))
	for _, c := range m.clusters {
		out = append(out, inventory.Cluster{Name: c.spec.Name, HAEnabled: c.spec.HAEnabled})
	}
	return out, nil
}

func (m *Inventory) ListMemberHosts(ctx context.Context, name string) ([]inventory.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cluster(name)
	if err != nil {
		return nil, err
	}
	var out []inventory.Host
	for _, h := range c.hosts {
		if !h.connected {
			continue
		}
		out = append(out, inventory.Host{Name: h.spec.Name, Cluster: name, Connection: inventory.Connected, Version: h.spec.Version})
	}
	return out, nil
}

// AllHosts devuelve todos los hosts, conectados o no, para el archivo de hosts.
func (m *Inventory) AllHosts(ctx context.Context) ([]inventory.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []inventory.Host
	for _, c := range m.clusters {
		for _, h := range c.hosts {
			st := inventory.Connected
			if !h.connected {
				st = inventory.Disconnected
			}
			out = append(out, inventory.Host{Name: h.spec.Name, Cluster: c.spec.Name, Connection: st, Version: h.spec.Version})
		}
	}
	return out, nil
}

func (m *Inventory) GetAdvancedOptions(ctx context.Context, name string) ([]inventory.Option, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cluster(name)
	if err != nil {
		return nil, err
	}
	return inventory.CloneOptions(c.options), nil
}

// SetAdvancedOptions reemplaza la lista completa. El cambio es visible
// apenas se acepta la tarea, sin importar cómo termine.
func (m *Inventory) SetAdvancedOptions(ctx context.Context, name string, opts []inventory.Option) (task.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cluster(name)
	if err != nil {
		return task.Handle{}, err
	}
	if c.submitErr != nil {
		return task.Handle{}, errs.E(errs.Transport, "inventory.set_advanced_options", name, c.submitErr)
	}
	m.calls.SetOptions[name]++
	c.options = inventory.CloneOptions(opts)
	return m.newTask(nextStep(&c.steps), nil), nil
}

// ReconfigureHost reaplica la configuración del cluster en el host: al
// terminar en success el host pasa a aceptar el set que codifica la opción
// vigente de su cluster.
func (m *Inventory) ReconfigureHost(ctx context.Context, name string) (task.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.byHost[name]
	if !ok {
		return task.Handle{}, errs.E(errs.Transport, "inventory.reconfigure_host", name, fmt.Errorf("host %w", ErrNotFound))
	}
	if h.submitErr != nil {
		return task.Handle{}, errs.E(errs.Transport, "inventory.reconfigure_host", name, h.submitErr)
	}
	m.calls.Reconfigure[name]++
	c := m.clusterOf(h)
	return m.newTask(nextStep(&h.steps), func() {
		h.protocols = m.cfg.Values.SetForValue(lookupValue(c.options, m.cfg.OptionKey))
	}), nil
}

func (m *Inventory) PollTask(ctx context.Context, hd task.Handle) (task.State, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[hd.ID]
	if !ok {
		return "", errs.E(errs.Transport, "inventory.poll_task", hd.ID, fmt.Errorf("task %w", ErrNotFound))
	}
	if t.done {
		return t.final, nil
	}
	if t.pollsLeft > 0 {
		t.pollsLeft--
		return task.Running, nil
	}
	if t.final == task.Running {
		return task.Running, nil
	}
	t.done = true
	if t.final == task.Success && t.onSuccess != nil {
		t.onSuccess()
	}
	return t.final, nil
}

func (m *Inventory) ServiceState(ctx context.Context, name, service string) (inventory.ServiceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.byHost[name]
	if !ok {
		return "", errs.E(errs.Transport, "inventory.service_state", name, fmt.Errorf("host %w", ErrNotFound))
	}
	if st, ok := h.services[service]; ok {
		return st, nil
	}
	return inventory.ServiceStopped, nil
}

func (m *Inventory) StartService(ctx context.Context, name, service string) error {
	return m.setService(name, service, inventory.ServiceRunning)
}

func (m *Inventory) StopService(ctx context.Context, name, service string) error {
	return m.setService(name, service, inventory.ServiceStopped)
}

func (m *Inventory) setService(name, service string, st inventory.ServiceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.byHost[name]
	if !ok {
		return errs.E(errs.Transport, "inventory.service", name, fmt.Errorf("host %w", ErrNotFound))
	}
	h.services[service] = st
	return nil
}

// Scan implementa scanner.Scanner con los nombres que usaría la herramienta
// real (ej. "TLSv1.0").
func (m *Inventory) Scan(ctx context.Context, name string, port int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.byHost[name]
	if !ok {
		return nil, fmt.Errorf("scan %s:%d: host %w", name, port, ErrNotFound)
	}
	if h.scanErr != nil {
		return nil, fmt.Errorf("scan %s:%d: %w", name, port, h.scanErr)
	}
	if port != m.cfg.Port {
		return nil, fmt.Errorf("scan %s:%d: connection refused", name, port)
	}
	out := make([]string, 0, h.protocols.Len())
	for _, p := range h.protocols.Sorted() {
		out = append(out, Display(p))
	}
	return out, nil
}

// Run implementa remote.Executor. Requiere el servicio de acceso remoto
// corriendo y credenciales no vacías.
func (m *Inventory) Run(ctx context.Context, name, command string, cred credentials.Credential) (remote.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.byHost[name]
	if !ok {
		return remote.Result{}, errs.E(errs.Transport, "ssh.run", name, fmt.Errorf("host %w", ErrNotFound))
	}
	if h.services[m.cfg.Service] != inventory.ServiceRunning {
		return remote.Result{}, errs.E(errs.Transport, "ssh.run", name, fmt.Errorf("connection refused"))
	}
	if cred.Username == "" || cred.Password == "" {
		return remote.Result{}, errs.E(errs.Transport, "ssh.run", name, fmt.Errorf("authentication failed"))
	}
	return h.exec(command), nil
}

// Exec responde un comando sin pasar por el transporte; lo usa el endpoint
// simulado de ejecución.
func (m *Inventory) Exec(name, command string) (remote.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.byHost[name]
	if !ok {
		return remote.Result{}, fmt.Errorf("host %s %w", name, ErrNotFound)
	}
	return h.exec(command), nil
}

func (h *host) exec(command string) remote.Result {
	if strings.TrimSpace(command) != VersionCommand {
		return remote.Result{Stdout: "sh: " + command + ": not found\n", ExitStatus: 127}
	}
	var b strings.Builder
	b.WriteString("   Product: VMware ESXi\n")
	fmt.Fprintf(&b, "   Version: %s\n", h.spec.Version)
	fmt.Fprintf(&b, "   Build: Releasebuild-%s\n", h.spec.Build)
	fmt.Fprintf(&b, "   Update: %s\n", h.spec.Update)
	return remote.Result{Stdout: b.String()}
}

func (m *Inventory) newTask(s Step, onSuccess func()) task.Handle {
	id := uuid.NewString()
	final := s.Final
	if final == "" {
		final = task.Success
	}
	m.tasks[id] = &taskRecord{pollsLeft: s.Polls, final: final, onSuccess: onSuccess}
	return task.Handle{ID: id}
}

// nextStep consume el próximo paso del guion; el último se repite.
func nextStep(steps *[]Step) Step {
	if len(*steps) == 0 {
		return Step{Final: task.Success}
	}
	s := (*steps)[0]
	if len(*steps) > 1 {
		*steps = (*steps)[1:]
	}
	return s
}

func (m *Inventory) cluster(name string) (*cluster, error) {
	for _, c := range m.clusters {
		if c.spec.Name == name {
			return c, nil
		}
	}
	return nil, errs.E(errs.Transport, "inventory.cluster", name, fmt.Errorf("cluster %w", ErrNotFound))
}

func (m *Inventory) clusterOf(h *host) *cluster {
	for _, c := range m.clusters {
		for _, ch := range c.hosts {
			if ch == h {
				return c
			}
		}
	}
	return nil
}

// Display renderiza un protocolo canónico como lo reporta el scanner.
func Display(p string) string {
	switch p {
	case protocol.SSLv3:
		return "SSLv3"
	case protocol.TLS10:
		return "TLSv1.0"
	case protocol.TLS11:
		return "TLSv1.1"
	case protocol.TLS12:
		return "TLSv1.2"
	}
	return p
}
