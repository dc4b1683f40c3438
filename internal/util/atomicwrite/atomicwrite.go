// Package atomicwrite provee helpers de escritura atómica de archivos.
// Si rename falla (Windows con destino bloqueado), intenta remove+rename.
package atomicwrite

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrExists se devuelve por Create cuando el destino ya existe.
var ErrExists = errors.New("atomicwrite: destination already exists")

// Write escribe data a path de forma atómica: tmp, Sync, Close, Chmod, Rename.
// Un archivo existente se reemplaza.
func Write(path string, data []byte, perm fs.FileMode) error {
	tmpPath, err := writeTemp(path, data, perm)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(path)
		if err2 := os.Rename(tmpPath, path); err2 != nil {
			return fmt.Errorf("rename: %v (after remove: %v)", err, err2)
		}
	}
	return nil
}

// Create es como Write pero nunca pisa un archivo existente: el contenido
// completo aparece bajo path o no aparece nada.
func Create(path string, data []byte, perm fs.FileMode) error {
	if _, err := os.Lstat(path); err == nil {
		return fmt.Errorf("%s: %w", path, ErrExists)
	}
	tmpPath, err := writeTemp(path, data, perm)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	// Link falla si el destino apareció entre medio.
	if err := os.Link(tmpPath, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", path, ErrExists)
		}
		return fmt.Errorf("link: %w", err)
	}
	return nil
}

func writeTemp(path string, data []byte, perm fs.FileMode) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	fail := func(format string, err error) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf(format, err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fail("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close temp: %w", err)
	}
	_ = os.Chmod(tmpPath, perm)
	return tmpPath, nil
}
