// Package protocol modela los sets de protocolos de seguridad aceptados en un
// puerto y el pedido de cambio (enable/disable del protocolo legado).
package protocol

import (
	"strings"

	"golang.org/x/exp/slices"
)

// Identificadores canónicos, con la nomenclatura del lado del host.
const (
	SSLv3 = "sslv3"
	TLS10 = "tlsv1"
	TLS11 = "tlsv1.1"
	TLS12 = "tlsv1.2"
)

// scannerAliases renombra lo que reporta el scanner a la nomenclatura del host.
var scannerAliases = map[string]string{
	"tlsv1.0": TLS10,
}

// Normalize pasa un nombre a minúsculas sin espacios y aplica los alias.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := scannerAliases[n]; ok {
		return alias
	}
	return n
}

// Set es un set no ordenado de protocolos normalizados.
// La igualdad es de sets: tamaño y pertenencia, nunca orden.
type Set map[string]struct{}

// NewSet crea un Set normalizando cada nombre. Los vacíos se ignoran.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		if n = Normalize(n); n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// Parse lee la forma renderizada por String ("[a, b]") o una lista con comas.
func Parse(v string) Set {
	v = strings.Trim(strings.TrimSpace(v), "[]")
	if v == "" {
		return Set{}
	}
	return NewSet(strings.Split(v, ",")...)
}

func (s Set) Contains(name string) bool {
	_, ok := s[Normalize(name)]
	return ok
}

func (s Set) Len() int { return len(s) }

// Equal compara por tamaño y pertenencia.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if _, ok := o[k]; !ok {
			return false
		}
	}
	return true
}

// Clone devuelve una copia independiente.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for k := range s {
		c[k] = struct{}{}
	}
	return c
}

// Sorted devuelve los miembros ordenados, para salidas deterministas.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// String renderiza "[a, b, c]" ordenado.
func (s Set) String() string {
	return "[" + strings.Join(s.Sorted(), ", ") + "]"
}
