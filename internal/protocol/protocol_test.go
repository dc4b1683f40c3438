package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var testValues = EncodedValues{Enable: "16924672", Disable: "50479104"}

func TestNormalize_AliasAndCase(t *testing.T) {
	require.Equal(t, TLS10, Normalize("TLSv1.0"))
	require.Equal(t, TLS11, Normalize(" TLSv1.1 "))
	require.Equal(t, SSLv3, Normalize("SSLv3"))
}

func TestSet_EqualIsSetEquality(t *testing.T) {
	a := NewSet("TLSv1.2", "TLSv1.0", "TLSv1.1")
	b := NewSet(TLS10, TLS11, TLS12)
	require.True(t, a.Equal(b))
	require.True(t, b.Equal(a))

	require.False(t, a.Equal(NewSet(TLS10, TLS11)))
	require.False(t, a.Equal(NewSet(TLS10, TLS11, SSLv3)))
	require.True(t, NewSet().Equal(Set{}))
}

func TestSet_StringAndParse(t *testing.T) {
	s := NewSet(TLS12, SSLv3, TLS10)
	require.Equal(t, "[sslv3, tlsv1, tlsv1.2]", s.String())
	require.True(t, Parse(s.String()).Equal(s))
	require.Equal(t, 0, Parse("[]").Len())
	require.True(t, Parse("tlsv1,tlsv1.1").Equal(NewSet(TLS10, TLS11)))
}

func TestParseIntent(t *testing.T) {
	for in, want := range map[string]Intent{"enable": Enable, "ENABLESSL": Enable, "disable": Disable, "disablessl": Disable} {
		got, err := ParseIntent(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseIntent("toggle")
	require.Error(t, err)
}

func TestNewChangeRequest(t *testing.T) {
	en, err := NewChangeRequest(Enable, "das.config.vmacore.ssl.sslOptions", testValues)
	require.NoError(t, err)
	require.True(t, en.Requested.Contains(SSLv3))
	require.Equal(t, 4, en.Requested.Len())
	require.Equal(t, "16924672", en.Value())
	require.Equal(t, "50479104", en.InverseValue())

	dis, err := NewChangeRequest(Disable, "das.config.vmacore.ssl.sslOptions", testValues)
	require.NoError(t, err)
	require.False(t, dis.Requested.Contains(SSLv3))
	require.True(t, dis.Requested.Equal(Baseline()))
	require.Equal(t, "50479104", dis.Value())
	require.Equal(t, "16924672", dis.InverseValue())

	_, err = NewChangeRequest(Enable, "k", EncodedValues{Enable: "1", Disable: "1"})
	require.Error(t, err)
	_, err = NewChangeRequest(Enable, "", testValues)
	require.Error(t, err)
}

func TestSetForValue(t *testing.T) {
	require.True(t, testValues.SetForValue("16924672").Contains(SSLv3))
	require.True(t, testValues.SetForValue("50479104").Equal(Baseline()))
	require.True(t, testValues.SetForValue("").Equal(Baseline()))
}
