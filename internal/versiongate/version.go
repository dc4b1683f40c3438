package versiongate

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Version es la terna reportada por el host.
type Version struct {
	Version string `json:"version"`
	Update  string `json:"update"`
	Build   string `json:"build"`
}

func (v Version) String() string {
	return fmt.Sprintf("%s Update-%s Build-%s", v.Version, v.Update, v.Build)
}

// Minimum es la versión mínima que soporta el cambio.
type Minimum struct {
	Version       string
	Update        string
	HostBuild     string
	EndpointBuild string
}

// ParseOutput lee la salida del comando de versión. Cada línea se toma sin
// espacios y en minúsculas; la clave es lo anterior al primer ':'.
func ParseOutput(out string) (Version, error) {
	var v Version
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.ToLower(strings.Join(strings.Fields(sc.Text()), ""))
		k, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch k {
		case "version":
			v.Version = val
		case "update":
			v.Update = val
		case "build":
			v.Build = strings.TrimPrefix(val, "releasebuild-")
		}
	}
	if err := sc.Err(); err != nil {
		return v, err
	}
	if v.Version == "" || v.Update == "" || v.Build == "" {
		return v, fmt.Errorf("salida de versión incompleta: %q", v)
	}
	if _, err := strconv.Atoi(v.Update); err != nil {
		return v, fmt.Errorf("update inválido %q", v.Update)
	}
	if _, err := strconv.Atoi(v.Build); err != nil {
		return v, fmt.Errorf("build inválido %q", v.Build)
	}
	return v, nil
}

// segmentWidth es el ancho al que se rellena cada segmento de la versión.
const segmentWidth = 3

// normalize rellena a izquierda cada segmento separado por '.', así la
// comparación de strings ordena "5.5" antes que "5.10".
func normalize(v string) string {
	var b strings.Builder
	for _, s := range strings.Split(v, ".") {
		fmt.Fprintf(&b, "%*s", segmentWidth, s)
	}
	return b.String()
}

// CompareVersions devuelve <0, 0 o >0.
func CompareVersions(a, b string) int {
	return strings.Compare(normalize(a), normalize(b))
}

// atLeastNum compara dos enteros decimales; un valor que no parsea nunca
// alcanza el mínimo.
func atLeastNum(got, min string) bool {
	g, err := strconv.Atoi(got)
	if err != nil {
		return false
	}
	m, err := strconv.Atoi(min)
	if err != nil {
		return false
	}
	return g >= m
}

// HostEligible exige versión, update y build mayores o iguales al mínimo.
func (m Minimum) HostEligible(v Version) bool {
	return CompareVersions(v.Version, m.Version) >= 0 &&
		atLeastNum(v.Update, m.Update) &&
		atLeastNum(v.Build, m.HostBuild)
}

// EndpointEligible exige versión y build del endpoint de inventario.
func (m Minimum) EndpointEligible(version, build string) bool {
	return CompareVersions(version, m.Version) >= 0 && atLeastNum(build, m.EndpointBuild)
}
