package memory

import (
	"fmt"

	"github.com/dropDatabas3/secproto/internal/inventory"
	"github.com/dropDatabas3/secproto/internal/protocol"
)

// Helpers de inspección y de inyección de fallas.

// Calls devuelve una copia de los contadores.
func (m *Inventory) Calls() Calls {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := Calls{SetOptions: map[string]int{}, Reconfigure: map[string]int{}}
	for k, v := range m.calls.SetOptions {
		out.SetOptions[k] = v
	}
	for k, v := range m.calls.Reconfigure {
		out.Reconfigure[k] = v
	}
	return out
}

// Protocols es el set actual del host en el puerto monitoreado.
func (m *Inventory) Protocols(name string) protocol.Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.byHost[name]; ok {
		return h.protocols.Clone()
	}
	return nil
}

// Options es la lista actual de opciones del cluster.
func (m *Inventory) Options(name string) []inventory.Option {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, err := m.cluster(name); err == nil {
		return inventory.CloneOptions(c.options)
	}
	return nil
}

// Service devuelve el estado de un servicio del host.
func (m *Inventory) Service(name, service string) inventory.ServiceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.byHost[name]; ok {
		return h.services[service]
	}
	return ""
}

// ScriptHost reemplaza el guion de tareas del host.
func (m *Inventory) ScriptHost(name string, steps ...Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.byHost[name]; ok {
		h.steps = steps
	}
}

// ScriptCluster reemplaza el guion de tareas de opciones del cluster.
func (m *Inventory) ScriptCluster(name string, steps ...Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, err := m.cluster(name); err == nil {
		c.steps = steps
	}
}

// FailSubmitHost hace que ReconfigureHost falle con error de transporte.
func (m *Inventory) FailSubmitHost(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.byHost[name]; ok {
		h.submitErr = err
	}
}

// FailSubmitCluster hace que SetAdvancedOptions falle con error de transporte.
func (m *Inventory) FailSubmitCluster(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, e := m.cluster(name); e == nil {
		c.submitErr = err
	}
}

// FailScan hace fallar el scanner para el host; nil lo restablece.
func (m *Inventory) FailScan(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.byHost[name]; ok {
		h.scanErr = err
	}
}

// SetHostProtocols fuerza el set observado de un host.
func (m *Inventory) SetHostProtocols(name string, names ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.byHost[name]
	if !ok {
		return fmt.Errorf("no such host %s", name)
	}
	h.protocols = protocol.NewSet(names...)
	return nil
}

// SimpleFleet arma un cluster HA con hosts elegibles (5.5.0 update 3).
func SimpleFleet(cluster string, hosts ...string) Fleet {
	cs := ClusterSpec{Name: cluster, HAEnabled: true}
	for _, h := range hosts {
		cs.Hosts = append(cs.Hosts, HostSpec{Name: h, Version: "5.5.0", Update: "3", Build: "3248547", SSHRunning: true})
	}
	return Fleet{
		About:    inventory.About{Name: "VMware vCenter Server", Version: "5.5.0", Build: "3252642"},
		Clusters: []ClusterSpec{cs},
	}
}
