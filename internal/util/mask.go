// Package util junta helpers chicos sin dependencias de dominio.
package util

import "strings"

// MaskEmail deja la primera letra del usuario y del dominio: "oncall@corp.io"
// queda "o…@c….io". Lo que no parece un mail se enmascara entero.
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	user, dom, ok := strings.Cut(s, "@")
	if !ok || user == "" {
		if s == "" {
			return ""
		}
		return "***"
	}
	labels := strings.Split(dom, ".")
	labels[0] = head(labels[0])
	return head(user) + "@" + strings.Join(labels, ".")
}

// MaskEmails aplica MaskEmail a cada elemento.
func MaskEmails(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = MaskEmail(s)
	}
	return out
}

func head(s string) string {
	if len(s) <= 1 {
		return s
	}
	return s[:1] + "…"
}
