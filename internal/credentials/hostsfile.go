package credentials

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dropDatabas3/secproto/internal/observability/logger"
	"github.com/dropDatabas3/secproto/internal/security/secretbox"
	"github.com/dropDatabas3/secproto/internal/util/atomicwrite"
)

// DefaultHostsFile es el nombre que genera el comando hostsfile.
const DefaultHostsFile = "hostsinfo.csv"

// HostsHeader es la primera fila del archivo de hosts.
var HostsHeader = []string{"HOSTNAME", "VERSION", "USERNAME", "PASSWORD", "PASSWORD_ENCRYPTED"}

// HostEntry es una fila del archivo de hosts.
type HostEntry struct {
	Host      string
	Version   string
	Username  string
	Password  string
	Encrypted bool
}

// KeyFunc entrega la clave de descifrado; se llama a lo sumo una vez, al
// encontrar la primera contraseña cifrada.
type KeyFunc func() (string, error)

// LoadHostsFile lee el archivo de hosts. Las filas con PASSWORD_ENCRYPTED=yes
// se descifran con la clave de key. Una fila que no se puede descifrar o que
// está incompleta se saltea con un warning.
func LoadHostsFile(ctx context.Context, path string, key KeyFunc) (Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseHostsFile(ctx, f, key)
}

// ParseHostsFile es LoadHostsFile sobre un reader.
func ParseHostsFile(ctx context.Context, r io.Reader, key KeyFunc) (Map, error) {
	log := logger.From(ctx).With(logger.Component("credentials"))
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	resolveKey := onceKey(key)
	out := Map{}
	for line := 0; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("hosts file: %w", err)
		}
		if line == 0 {
			continue
		}
		if len(rec) < len(HostsHeader) {
			log.Warn("skipping incomplete hosts file row", logger.Int("line", line+1))
			continue
		}
		host := strings.TrimSpace(rec[0])
		cred := Credential{Username: strings.TrimSpace(rec[2]), Password: strings.TrimSpace(rec[3])}
		if strings.EqualFold(strings.TrimSpace(rec[4]), "yes") {
			k, err := resolveKey()
			if err != nil {
				log.Warn("skipping host, no decryption key", logger.Host(host), logger.Err(err))
				continue
			}
			pt, err := secretbox.DecryptWithKey(k, cred.Password)
			if err != nil {
				log.Warn("skipping host, failed to decrypt password", logger.Host(host), logger.Err(err))
				continue
			}
			cred.Password = pt
			log.Debug("host password decrypted", logger.Host(host))
		}
		out.Put(host, cred)
	}
	return out, nil
}

func onceKey(key KeyFunc) KeyFunc {
	var (
		once sync.Once
		k    string
		err  error
	)
	return func() (string, error) {
		once.Do(func() {
			if key == nil {
				err = errors.New("no key source")
				return
			}
			k, err = key()
		})
		return k, err
	}
}

// WriteHostsFile escribe el archivo de hosts a completar por el operador.
// Nunca pisa un archivo existente.
func WriteHostsFile(path string, entries []HostEntry) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	_ = cw.Write(HostsHeader)
	for _, e := range entries {
		enc := "no"
		if e.Encrypted {
			enc = "yes"
		}
		_ = cw.Write([]string{e.Host, e.Version, e.Username, e.Password, enc})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return atomicwrite.Create(path, buf.Bytes(), 0o600)
}
