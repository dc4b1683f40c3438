package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dropDatabas3/secproto/internal/util/atomicwrite"
)

// WriteTable escribe el reporte de consola: un bloque por cluster con
// HOST NAME | PORT | Before | After y el resumen al final.
func WriteTable(w io.Writer, fr FleetReport) error {
	fmt.Fprintf(w, "Run %s: %s %s on port %d (%s)\n", fr.RunID, fr.Intent, fr.Requested, fr.Port, fr.ServiceName)
	if fr.Endpoint != "" {
		fmt.Fprintf(w, "Endpoint not supported: %s\n", fr.Endpoint)
	}
	for _, c := range fr.Clusters {
		fmt.Fprintf(w, "\nCluster %s: %s", c.Cluster, c.State)
		if c.SkipReason != "" {
			fmt.Fprintf(w, " (%s)", c.SkipReason)
		}
		fmt.Fprintln(w)
		if c.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", c.Error)
		}
		if c.ManualAction {
			fmt.Fprintln(w, "  ALERT: rollback failed, manual intervention required")
		}
		if len(c.Hosts) == 0 {
			continue
		}
		tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.Debug)
		fmt.Fprintln(tw, " HOST NAME\t PORT\t Before\t After\t")
		for _, h := range c.Hosts {
			fmt.Fprintf(tw, " %s\t %d\t %s\t %s\t\n", h.Host, fr.Port, orDash(h.Before), h.After)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	s := fr.Summary
	_, err := fmt.Fprintf(w, "\nSummary: %d clusters, %d succeeded, %d skipped, %d failed, %d rolled back, %d rollback failed; %d/%d hosts match\n",
		s.Clusters, s.Succeeded, s.Skipped, s.Failed, s.RolledBack, s.RollbackFailed, s.HostsMatching, s.Hosts)
	return err
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

// CSVName es el nombre del archivo de resultados para t.
func CSVName(t time.Time) string {
	return "HostsSSLConfigResult-" + t.Format("20060102_150405") + ".csv"
}

// EncodeCSV escribe una fila por host.
func EncodeCSV(w io.Writer, fr FleetReport) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"RUN ID", "CLUSTER NAME", "SERVICE NAME", "PORT", "HOST NAME",
		"Before TLS/SSL Protocols", "After TLS/SSL Protocols", "CLUSTER STATE"})
	port := strconv.Itoa(fr.Port)
	for _, c := range fr.Clusters {
		for _, h := range c.Hosts {
			_ = cw.Write([]string{fr.RunID, c.Cluster, fr.ServiceName, port, h.Host,
				spaced(h.Before), spaced(h.After), c.State})
		}
	}
	cw.Flush()
	return cw.Error()
}

// spaced quita las comas del set para que la celda sea legible sin comillas.
func spaced(v string) string { return strings.ReplaceAll(v, ", ", " ") }

// WriteCSVFile escribe el CSV en dir sin pisar archivos existentes.
func WriteCSVFile(dir string, fr FleetReport, at time.Time) (string, error) {
	var buf bytes.Buffer
	if err := EncodeCSV(&buf, fr); err != nil {
		return "", err
	}
	path := filepath.Join(dir, CSVName(at))
	if err := atomicwrite.Create(path, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// WriteJSON escribe el reporte indentado.
func WriteJSON(w io.Writer, fr FleetReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fr)
}

// WriteJSONFile escribe report-<run>.json en dir.
func WriteJSONFile(dir string, fr FleetReport) (string, error) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, fr); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "report-"+fr.RunID+".json")
	return path, atomicwrite.Write(path, buf.Bytes(), 0o644)
}
