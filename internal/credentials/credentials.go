// Package credentials resuelve usuario/contraseña por host: un par común para
// toda la flota o el archivo de hosts con contraseñas opcionalmente cifradas.
package credentials

import (
	"strings"
)

// Credential es un par usuario/contraseña.
type Credential struct {
	Username string
	Password string
}

// String nunca expone la contraseña.
func (c Credential) String() string { return c.Username + ":******" }

// Store resuelve credenciales por host.
type Store interface {
	Lookup(host string) (Credential, bool)
	// Covers indica si el store tiene credenciales para todos los hosts.
	Covers(hosts []string) bool
}

type common struct{ cred Credential }

// Common aplica el mismo par a todos los hosts.
func Common(username, password string) Store {
	return common{cred: Credential{Username: username, Password: password}}
}

func (c common) Lookup(string) (Credential, bool) { return c.cred, true }
func (c common) Covers([]string) bool             { return true }

// Map es un store por host; las claves son case-insensitive.
type Map map[string]Credential

func (m Map) Lookup(host string) (Credential, bool) {
	c, ok := m[strings.ToLower(host)]
	return c, ok
}

func (m Map) Covers(hosts []string) bool {
	for _, h := range hosts {
		if _, ok := m.Lookup(h); !ok {
			return false
		}
	}
	return true
}

// Put agrega o reemplaza la credencial de host.
func (m Map) Put(host string, c Credential) { m[strings.ToLower(host)] = c }
