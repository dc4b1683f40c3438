// Package tlsprobe implementa scanner.Scanner con handshakes reales: uno por
// versión de TLS (min = max) y un ClientHello SSLv3 armado a mano, porque
// crypto/tls ya no habla SSLv3.
package tlsprobe

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/secproto/internal/observability/logger"
	"github.com/dropDatabas3/secproto/internal/scanner"
)

// Nombres tal como los reporta el scanner.
const (
	NameSSLv3 = "SSLv3"
	NameTLS10 = "TLSv1.0"
	NameTLS11 = "TLSv1.1"
	NameTLS12 = "TLSv1.2"
)

var tlsVersions = []struct {
	name    string
	version uint16
}{
	{NameTLS10, tls.VersionTLS10},
	{NameTLS11, tls.VersionTLS11},
	{NameTLS12, tls.VersionTLS12},
}

// ErrUnreachable: no se pudo abrir ninguna conexión TCP al puerto.
var ErrUnreachable = errors.New("tlsprobe: port unreachable")

type Prober struct {
	Timeout time.Duration
	// SkipSSLv3 desactiva la sonda SSLv3 cruda.
	SkipSSLv3 bool
}

var _ scanner.Scanner = (*Prober)(nil)

func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Prober{Timeout: timeout}
}

type probeResult struct {
	ok      bool
	dialErr error
}

// Scan devuelve las versiones aceptadas en orden SSLv3, TLSv1.0, TLSv1.1,
// TLSv1.2. Un handshake rechazado excluye la versión; si ningún intento
// pudo conectar se devuelve ErrUnreachable.
func (p *Prober) Scan(ctx context.Context, host string, port int) ([]string, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	log := logger.From(ctx).With(logger.Component("tlsprobe"), logger.Host(host), logger.Port(port))

	names := []string{NameSSLv3}
	for _, v := range tlsVersions {
		names = append(names, v.name)
	}
	results := make([]probeResult, len(names))

	g, gctx := errgroup.WithContext(ctx)
	if !p.SkipSSLv3 {
		g.Go(func() error {
			ok, err := p.probeSSLv3(gctx, addr)
			results[0] = probeResult{ok: ok, dialErr: err}
			return nil
		})
	}
	for i, v := range tlsVersions {
		i, v := i, v
		g.Go(func() error {
			ok, err := p.probeTLS(gctx, addr, host, v.version)
			results[i+1] = probeResult{ok: ok, dialErr: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		accepted []string
		dialErr  error
		dialed   bool
	)
	for i, r := range results {
		if i == 0 && p.SkipSSLv3 {
			continue
		}
		if r.dialErr != nil {
			dialErr = r.dialErr
			continue
		}
		dialed = true
		if r.ok {
			accepted = append(accepted, names[i])
		}
	}
	if !dialed {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, addr, dialErr)
	}
	log.Debug("port scanned", logger.Strings("accepted", accepted))
	return accepted, nil
}

func (p *Prober) dial(ctx context.Context, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	_ = conn.SetDeadline(time.Now().Add(p.Timeout))
	return conn, nil
}

// probeTLS: el error solo se devuelve si falla el TCP; un handshake fallido
// es (false, nil).
func (p *Prober) probeTLS(ctx context.Context, addr, host string, version uint16) (bool, error) {
	conn, err := p.dial(ctx, addr)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	tc := tls.Client(conn, &tls.Config{
		ServerName:         host,
		MinVersion:         version,
		MaxVersion:         version,
		InsecureSkipVerify: true, // solo interesa la versión negociada
	})
	if err := tc.HandshakeContext(ctx); err != nil {
		return false, nil
	}
	return tc.ConnectionState().Version == version, nil
}

// Suites que un servidor SSLv3 típico acepta.
var sslv3Suites = []uint16{
	0x0035, // TLS_RSA_WITH_AES_256_CBC_SHA
	0x002f, // TLS_RSA_WITH_AES_128_CBC_SHA
	0x000a, // TLS_RSA_WITH_3DES_EDE_CBC_SHA
	0x0005, // TLS_RSA_WITH_RC4_128_SHA
	0x0004, // TLS_RSA_WITH_RC4_128_MD5
	0x0039, // TLS_DHE_RSA_WITH_AES_256_CBC_SHA
	0x0033, // TLS_DHE_RSA_WITH_AES_128_CBC_SHA
}

func sslv3ClientHello() ([]byte, error) {
	body := []byte{0x03, 0x00}
	random := make([]byte, 32)
	if _, err := rand.Read(random); err != nil {
		return nil, err
	}
	body = append(body, random...)
	body = append(body, 0x00) // session id vacío
	body = binary.BigEndian.AppendUint16(body, uint16(2*len(sslv3Suites)))
	for _, s := range sslv3Suites {
		body = binary.BigEndian.AppendUint16(body, s)
	}
	body = append(body, 0x01, 0x00) // compresión: null

	hs := []byte{0x01, byte(len(body) >> 16), byte(len(body) >> 8), byte(len(body))}
	hs = append(hs, body...)

	rec := []byte{0x16, 0x03, 0x00}
	rec = binary.BigEndian.AppendUint16(rec, uint16(len(hs)))
	return append(rec, hs...), nil
}

// probeSSLv3 envía el ClientHello y acepta solo un ServerHello con versión 3.0.
func (p *Prober) probeSSLv3(ctx context.Context, addr string) (bool, error) {
	conn, err := p.dial(ctx, addr)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	hello, err := sslv3ClientHello()
	if err != nil {
		return false, nil
	}
	if _, err := conn.Write(hello); err != nil {
		return false, nil
	}

	// header de record (5) + tipo de handshake (1) + largo (3) + versión (2)
	buf := make([]byte, 11)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return false, nil
	}
	if buf[0] != 0x16 || buf[5] != 0x02 {
		return false, nil
	}
	return buf[9] == 0x03 && buf[10] == 0x00, nil
}
