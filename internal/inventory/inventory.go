// Package inventory define el contrato con el directorio remoto de clusters y
// hosts: opciones avanzadas, tareas asíncronas y servicios de cada host.
package inventory

import (
	"context"

	"github.com/dropDatabas3/secproto/internal/task"
)

// ConnectionState de un host según el inventario.
type ConnectionState string

const (
	Connected    ConnectionState = "connected"
	Disconnected ConnectionState = "disconnected"
)

// Cluster es un grupo de hosts administrado como unidad.
type Cluster struct {
	Name      string `json:"name"`
	HAEnabled bool   `json:"ha_enabled"`
}

// Host es un miembro de exactamente un cluster.
type Host struct {
	Name       string          `json:"name"`
	Cluster    string          `json:"cluster"`
	Connection ConnectionState `json:"connection"`
	Version    string          `json:"version,omitempty"`
}

func (h Host) Connected() bool { return h.Connection == Connected }

// Option es una entrada clave/valor de configuración avanzada del cluster.
type Option struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// About describe el endpoint de inventario.
type About struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	Build   string `json:"build" yaml:"build"`
}

// ServiceState de un servicio remoto.
type ServiceState string

const (
	ServiceRunning ServiceState = "running"
	ServiceStopped ServiceState = "stopped"
)

// Client es lo que el orquestador consume del inventario.
type Client interface {
	task.Source

	About(ctx context.Context) (About, error)
	ListClusters(ctx context.Context) ([]Cluster, error)
	// ListMemberHosts devuelve sólo los hosts conectados, en orden estable.
	ListMemberHosts(ctx context.Context, cluster string) ([]Host, error)
	GetAdvancedOptions(ctx context.Context, cluster string) ([]Option, error)
	SetAdvancedOptions(ctx context.Context, cluster string, opts []Option) (task.Handle, error)
	ReconfigureHost(ctx context.Context, host string) (task.Handle, error)
}

// ServiceController arranca y detiene servicios de un host a través del inventario.
type ServiceController interface {
	ServiceState(ctx context.Context, host, service string) (ServiceState, error)
	StartService(ctx context.Context, host, service string) error
	StopService(ctx context.Context, host, service string) error
}

// CloneOptions copia una lista de opciones.
func CloneOptions(opts []Option) []Option {
	if opts == nil {
		return nil
	}
	return append([]Option(nil), opts...)
}

// Lookup busca key en opts.
func Lookup(opts []Option, key string) (string, bool) {
	for _, o := range opts {
		if o.Key == key {
			return o.Value, true
		}
	}
	return "", false
}

// HostNames extrae los nombres en el mismo orden.
func HostNames(hosts []Host) []string {
	out := make([]string, len(hosts))
	for i, h := range hosts {
		out[i] = h.Name
	}
	return out
}
