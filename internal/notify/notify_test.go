package notify

import (
	"bytes"
	"context"
	"io"
	"testing"

	mail "github.com/go-mail/mail"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/secproto/internal/report"
)

func fleet() report.FleetReport {
	return report.FleetReport{
		RunID:     "run-1",
		Intent:    "enable",
		Requested: "[sslv3, tlsv1, tlsv1.1, tlsv1.2]",
		Port:      8182,
		Clusters: []report.ClusterReport{
			{Cluster: "ok", State: "DONE_SUCCESS"},
			{Cluster: "broken", State: "DONE_ROLLBACK_FAILED", ManualAction: true, Error: "rollback failed",
				FailedHosts: []string{"esx-c"},
				Hosts:       []report.HostRow{{Host: "esx-c", Before: "[tlsv1]", After: report.MissingAfter}}},
		},
	}
}

func TestSMTP_SendsOnce(t *testing.T) {
	s, err := NewSMTP(SMTPConfig{Host: "smtp.local", From: "ops@local", To: []string{"oncall@local"}})
	require.NoError(t, err)

	var sent []string
	s.sender = mail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
		var buf bytes.Buffer
		_, err := msg.WriteTo(&buf)
		sent = append(sent, buf.String())
		require.Equal(t, "ops@local", from)
		require.Equal(t, []string{"oncall@local"}, to)
		return err
	})

	fr := fleet()
	require.NoError(t, s.RollbackFailed(context.Background(), fr, fr.NeedsManualAction()))
	require.Len(t, sent, 1)
	require.Contains(t, sent[0], "broken: DONE_ROLLBACK_FAILED")
	require.Contains(t, sent[0], "esx-c")

	// sin clusters no se manda nada
	require.NoError(t, s.RollbackFailed(context.Background(), fr, nil))
	require.Len(t, sent, 1)
}

func TestNewSMTP_RequiresFields(t *testing.T) {
	_, err := NewSMTP(SMTPConfig{Host: "smtp.local"})
	require.Error(t, err)
}
