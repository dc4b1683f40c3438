package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/secproto/internal/errs"
	"github.com/dropDatabas3/secproto/internal/protocol"
	"github.com/dropDatabas3/secproto/internal/scanner"
)

func TestTake_Normalizes(t *testing.T) {
	sc := scanner.Func(func(ctx context.Context, host string, port int) ([]string, error) {
		return []string{"TLSv1.0", "TLSv1.1", "TLSv1.2", "SSLv3"}, nil
	})
	snap, err := New(sc).Take(context.Background(), []string{"esx-a", "esx-b"}, 8182)
	require.NoError(t, err)
	require.Len(t, snap, 2)
	require.True(t, snap["esx-a"].Equal(protocol.NewSet(protocol.SSLv3, protocol.TLS10, protocol.TLS11, protocol.TLS12)))
	require.Equal(t, "[sslv3, tlsv1, tlsv1.1, tlsv1.2]", snap.Strings()["esx-b"])
}

func TestTake_FailFast(t *testing.T) {
	var scanned []string
	sc := scanner.Func(func(ctx context.Context, host string, port int) ([]string, error) {
		scanned = append(scanned, host)
		if host == "esx-b" {
			return nil, errors.New("handshake timeout")
		}
		return []string{"TLSv1.2"}, nil
	})
	snap, err := New(sc).Take(context.Background(), []string{"esx-a", "esx-b", "esx-c"}, 8182)
	require.Nil(t, snap)
	require.True(t, errors.Is(err, errs.ErrScan))
	require.Equal(t, []string{"esx-a", "esx-b"}, scanned)
}

func TestClone_IsDeep(t *testing.T) {
	s := Snapshot{"esx-a": protocol.NewSet(protocol.TLS12)}
	c := s.Clone()
	c["esx-a"][protocol.SSLv3] = struct{}{}
	require.False(t, s["esx-a"].Contains(protocol.SSLv3))
}
