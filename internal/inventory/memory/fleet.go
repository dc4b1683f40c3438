package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/secproto/internal/inventory"
	"github.com/dropDatabas3/secproto/internal/task"
)

// Step guiona una tarea: Polls consultas devuelven running y luego Final.
// Final running significa que la tarea nunca termina.
type Step struct {
	Polls int        `yaml:"polls"`
	Final task.State `yaml:"final"`
}

// HostSpec siembra un host.
type HostSpec struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	Update       string   `yaml:"update"`
	Build        string   `yaml:"build"`
	Disconnected bool     `yaml:"disconnected"`
	Protocols    []string `yaml:"protocols"`
	SSHRunning   bool     `yaml:"ssh_running"`
	Tasks        []Step   `yaml:"tasks"`
	ScanError    string   `yaml:"scan_error"`
}

// ClusterSpec siembra un cluster con sus hosts.
type ClusterSpec struct {
	Name      string             `yaml:"name"`
	HAEnabled bool               `yaml:"ha_enabled"`
	Options   []inventory.Option `yaml:"options"`
	Tasks     []Step             `yaml:"tasks"`
	Hosts     []HostSpec         `yaml:"hosts"`
}

// Fleet es el fixture completo.
type Fleet struct {
	About    inventory.About `yaml:"about"`
	Clusters []ClusterSpec   `yaml:"clusters"`
}

// LoadFleet lee un fixture YAML.
func LoadFleet(path string) (Fleet, error) {
	var f Fleet
	b, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("parse fleet %s: %w", path, err)
	}
	return f, f.Validate()
}

// Validate chequea nombres únicos y estados de tarea válidos.
func (f Fleet) Validate() error {
	seen := map[string]bool{}
	for _, c := range f.Clusters {
		if c.Name == "" {
			return fmt.Errorf("cluster sin nombre")
		}
		if seen["c/"+c.Name] {
			return fmt.Errorf("cluster duplicado: %s", c.Name)
		}
		seen["c/"+c.Name] = true
		if err := validateSteps(c.Tasks); err != nil {
			return fmt.Errorf("cluster %s: %w", c.Name, err)
		}
		for _, h := range c.Hosts {
			if h.Name == "" {
				return fmt.Errorf("cluster %s: host sin nombre", c.Name)
			}
			if seen["h/"+h.Name] {
				return fmt.Errorf("host duplicado: %s", h.Name)
			}
			seen["h/"+h.Name] = true
			if err := validateSteps(h.Tasks); err != nil {
				return fmt.Errorf("host %s: %w", h.Name, err)
			}
		}
	}
	return nil
}

func validateSteps(steps []Step) error {
	for _, s := range steps {
		if s.Polls < 0 {
			return fmt.Errorf("polls negativo")
		}
		switch s.Final {
		case task.Success, task.Error, task.Running, "":
		default:
			return fmt.Errorf("final inválido %q", s.Final)
		}
	}
	return nil
}
