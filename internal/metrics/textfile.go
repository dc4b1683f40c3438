package metrics

import (
	"bytes"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/dropDatabas3/secproto/internal/util/atomicwrite"
)

// WriteTextfile vuelca los métricos del gatherer (default si nil) en formato
// texto, para el textfile collector de node_exporter. La escritura es atómica.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	mfs, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather: %w", err)
	}
	var buf bytes.Buffer
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return atomicwrite.Write(path, buf.Bytes(), 0o644)
}
