package server

import (
	"time"

	"github.com/dropDatabas3/secproto/internal/inventory"
)

// Cuerpos del API REST compartidos con el cliente HTTP.

type SessionRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type TaskResponse struct {
	ID    string `json:"id"`
	State string `json:"state,omitempty"`
}

type OptionsBody struct {
	Options []inventory.Option `json:"options"`
}

type ServiceResponse struct {
	Host  string                 `json:"host"`
	Name  string                 `json:"name"`
	State inventory.ServiceState `json:"state"`
}

type ExecRequest struct {
	Command string `json:"command"`
}

type ExecResponse struct {
	Stdout     string `json:"stdout"`
	ExitStatus int    `json:"exit_status"`
}

type ProtocolsResponse struct {
	Host      string   `json:"host"`
	Port      int      `json:"port"`
	Protocols []string `json:"protocols"`
}
