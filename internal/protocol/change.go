package protocol

import (
	"fmt"
	"strings"
)

// Intent es la intención del operador sobre el protocolo legado.
type Intent uint8

const (
	Enable Intent = iota + 1
	Disable
)

func (i Intent) String() string {
	switch i {
	case Enable:
		return "enable"
	case Disable:
		return "disable"
	default:
		return "unknown"
	}
}

// ParseIntent acepta enable|disable y los alias históricos enablessl|disablessl.
func ParseIntent(v string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "enable", "enablessl":
		return Enable, nil
	case "disable", "disablessl":
		return Disable, nil
	}
	return 0, fmt.Errorf("intent inválido %q (esperado enable|disable)", v)
}

// EncodedValues son las dos representaciones remotas del set pedido,
// guardadas como valor de la opción avanzada del cluster.
type EncodedValues struct {
	Enable  string
	Disable string
}

// ChangeRequest es el único set pedido más su codificación remota.
type ChangeRequest struct {
	Intent    Intent
	Requested Set
	Values    EncodedValues
	OptionKey string
}

// LegacyProtocol es el protocolo que el intent agrega o quita.
const LegacyProtocol = SSLv3

// Baseline es la postura sin el protocolo legado.
func Baseline() Set { return NewSet(TLS10, TLS11, TLS12) }

// NewChangeRequest deriva el set pedido del intent.
func NewChangeRequest(intent Intent, optionKey string, values EncodedValues) (ChangeRequest, error) {
	if optionKey == "" {
		return ChangeRequest{}, fmt.Errorf("option key vacío")
	}
	if values.Enable == "" || values.Disable == "" || values.Enable == values.Disable {
		return ChangeRequest{}, fmt.Errorf("valores codificados inválidos: enable=%q disable=%q", values.Enable, values.Disable)
	}
	req := ChangeRequest{Intent: intent, Values: values, OptionKey: optionKey}
	switch intent {
	case Enable:
		req.Requested = NewSet(LegacyProtocol, TLS10, TLS11, TLS12)
	case Disable:
		req.Requested = Baseline()
	default:
		return ChangeRequest{}, fmt.Errorf("intent desconocido: %d", intent)
	}
	return req, nil
}

// Value es el valor codificado que representa el set pedido.
func (r ChangeRequest) Value() string {
	if r.Intent == Enable {
		return r.Values.Enable
	}
	return r.Values.Disable
}

// InverseValue representa la postura opuesta; se usa al revertir un cluster
// que originalmente no tenía la opción explícita.
func (r ChangeRequest) InverseValue() string {
	if r.Intent == Enable {
		return r.Values.Disable
	}
	return r.Values.Enable
}

// SetForValue decodifica un valor de opción al set que produce en los hosts.
// Un valor vacío o desconocido es la postura baseline.
func (v EncodedValues) SetForValue(value string) Set {
	if value != "" && value == v.Enable {
		return NewSet(LegacyProtocol, TLS10, TLS11, TLS12)
	}
	return Baseline()
}
