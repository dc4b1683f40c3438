// Package notify avisa al operador cuando un cluster queda en un estado que
// requiere intervención manual. Se envía un solo aviso por corrida.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/secproto/internal/report"
)

type Notifier interface {
	RollbackFailed(ctx context.Context, fr report.FleetReport, clusters []report.ClusterReport) error
}

// Noop se usa cuando no hay SMTP configurado.
type Noop struct{}

func (Noop) RollbackFailed(context.Context, report.FleetReport, []report.ClusterReport) error {
	return nil
}

// compose arma asunto y cuerpo en texto plano.
func compose(fr report.FleetReport, clusters []report.ClusterReport) (string, string) {
	subject := fmt.Sprintf("[secproto] manual action required: %d cluster(s), run %s", len(clusters), fr.RunID)

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s %s on port %d) left clusters in an unknown state.\n\n",
		fr.RunID, fr.Intent, fr.Requested, fr.Port)
	for _, cr := range clusters {
		fmt.Fprintf(&b, "cluster %s: %s\n", cr.Cluster, cr.State)
		if cr.Error != "" {
			fmt.Fprintf(&b, "  error: %s\n", cr.Error)
		}
		if len(cr.FailedHosts) > 0 {
			fmt.Fprintf(&b, "  failed hosts: %s\n", strings.Join(cr.FailedHosts, ", "))
		}
		for _, h := range cr.Hosts {
			if !h.Match {
				fmt.Fprintf(&b, "  %s before=%s after=%s\n", h.Host, h.Before, h.After)
			}
		}
	}
	b.WriteString("\nVerify the cluster advanced options and host protocols by hand.\n")
	return subject, b.String()
}
