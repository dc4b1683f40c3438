package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readSecret lee sin eco si stdin es una terminal.
func readSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%s requerido y stdin no es una terminal", strings.TrimSuffix(label, ": "))
	}
	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// confirm devuelve true solo si la respuesta es "yes".
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [Yes/No]: ", question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(line), "yes")
}

const disableWarning = `
 * * * * * * * * * * * * * * * * *  W A R N I N G  * * * * * * * * * * * * * * * * *
Disabling SSLv3 protocol might break VC/ESXi product interoperability and with
Solutions that are on top of vSphere.
Please refer to compatibility guide, before proceeding.
`
