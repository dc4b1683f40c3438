package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/secproto/internal/security/secretbox"
)

func encryptCmd() *cobra.Command {
	var genKey bool
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Cifra un password para la columna PASSWORD del archivo de hosts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if genKey {
				k, err := secretbox.GenerateKey()
				if err != nil {
					return setupErr(err)
				}
				fmt.Fprintln(out, k)
				return nil
			}

			key, err := hostsFileKey()
			if err != nil {
				return setupErr(err)
			}
			pw, err := readSecret("Password: ")
			if err != nil {
				return setupErr(err)
			}
			again, err := readSecret("Confirm password: ")
			if err != nil {
				return setupErr(err)
			}
			if pw != again {
				return setupErr(errors.New("passwords do not match"))
			}
			ct, err := secretbox.EncryptWithKey(key, pw)
			if err != nil {
				return setupErr(err)
			}
			fmt.Fprintln(out, ct)
			return nil
		},
	}
	cmd.Flags().BoolVar(&genKey, "generate-key", false, "Imprime una clave nueva en base64 y sale")
	return cmd
}
