package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/secproto/internal/credentials"
	"github.com/dropDatabas3/secproto/internal/observability/logger"
)

func hostsfileCmd(f *flags) *cobra.Command {
	var out, user string
	cmd := &cobra.Command{
		Use:   "hostsfile",
		Short: "Genera el archivo de hosts a completar con credenciales",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load()
			if err != nil {
				return setupErr(err)
			}
			initLogger(cfg)
			ctx := cmd.Context()

			inv, err := login(ctx, cfg)
			if err != nil {
				return setupErr(err)
			}
			hosts, err := inv.AllHosts(ctx)
			if err != nil {
				return setupErr(err)
			}
			if user == "" {
				user = cfg.SSH.Username
			}
			entries := make([]credentials.HostEntry, 0, len(hosts))
			for _, h := range hosts {
				entries = append(entries, credentials.HostEntry{Host: h.Name, Version: h.Version, Username: user})
			}
			if err := credentials.WriteHostsFile(out, entries); err != nil {
				return setupErr(fmt.Errorf("write %s: %w", out, err))
			}
			logger.From(ctx).Info("hosts file written", logger.String("path", out), logger.Count(len(entries)))
			fmt.Fprintf(cmd.OutOrStdout(), "%s written with %d hosts; fill in PASSWORD (or run 'secproto encrypt') and set PASSWORD_ENCRYPTED\n", out, len(entries))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", credentials.DefaultHostsFile, "Archivo de salida (no se pisa si existe)")
	cmd.Flags().StringVar(&user, "default-username", "", "Usuario a precargar en cada fila")
	return cmd
}
