package main

import (
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/secproto/internal/config"
)

// flags persistentes; pisan config y entorno cuando se pasan.
type flags struct {
	configPath   string
	inventoryURL string
	username     string
	password     string
	esxUsername  string
	esxPassword  string
	hostsFile    string
	reportDir    string
	simulate     bool
	insecure     bool
}

func (f *flags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Archivo YAML de configuración")
	pf.StringVar(&f.inventoryURL, "inventory-url", "", "URL del inventario (env INVENTORY_URL)")
	pf.StringVar(&f.username, "username", "", "Usuario del inventario (env INVENTORY_USERNAME)")
	pf.StringVar(&f.password, "password", "", "Password del inventario (env INVENTORY_PASSWORD)")
	pf.StringVar(&f.esxUsername, "esx-username", "", "Usuario común de los hosts (env SSH_USERNAME)")
	pf.StringVar(&f.esxPassword, "esx-password", "", "Password común de los hosts (env SSH_PASSWORD)")
	pf.StringVar(&f.hostsFile, "hosts-file", "", "Archivo CSV con credenciales por host (env HOSTS_FILE)")
	pf.StringVar(&f.reportDir, "report-dir", "", "Directorio de reportes (env REPORT_DIR)")
	pf.BoolVar(&f.simulate, "simulate", false, "Usar scanner y ejecutor simulados de inventory-sim")
	pf.BoolVar(&f.insecure, "insecure", false, "No verificar el certificado del inventario")
}

// load arma la config: archivo (o defaults), entorno y por último flags.
func (f *flags) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}
	if f.inventoryURL != "" {
		cfg.Inventory.URL = f.inventoryURL
	}
	if f.username != "" {
		cfg.Inventory.Username = f.username
	}
	if f.password != "" {
		cfg.Inventory.Password = f.password
	}
	if f.esxUsername != "" {
		cfg.SSH.Username = f.esxUsername
	}
	if f.esxPassword != "" {
		cfg.SSH.Password = f.esxPassword
	}
	if f.hostsFile != "" {
		cfg.SSH.HostsFile = f.hostsFile
	}
	if f.reportDir != "" {
		cfg.Report.Dir = f.reportDir
	}
	if f.insecure {
		cfg.Inventory.InsecureSkipVerify = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
