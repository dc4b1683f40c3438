package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/secproto/internal/orchestrator"
	"github.com/dropDatabas3/secproto/internal/protocol"
)

func checkCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "check enable|disable",
		Short: "Clasifica cada cluster contra el cambio pedido, sin mutar nada",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			intent, err := protocol.ParseIntent(args[0])
			if err != nil {
				return setupErr(err)
			}
			cfg, err := f.load()
			if err != nil {
				return setupErr(err)
			}
			initLogger(cfg)
			req, err := changeRequest(cfg, intent)
			if err != nil {
				return setupErr(err)
			}

			ctx := cmd.Context()
			s, err := newSession(ctx, cfg, f.simulate)
			if err != nil {
				return setupErr(err)
			}
			defer s.Close()

			run, err := s.orchestrator().Check(ctx, req, nil)
			if err != nil {
				return setupErr(err)
			}
			return writeCheck(cmd.OutOrStdout(), run)
		},
	}
}

func writeCheck(w io.Writer, run orchestrator.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLUSTER\tHOSTS\tRESULT\tDETAIL")
	for _, oc := range run.Outcomes {
		result, detail := oc.Classification.String(), ""
		if oc.State != "" && oc.State.Terminal() {
			result, detail = string(oc.State), oc.SkipReason
			if detail == "" {
				detail = oc.ErrString()
			}
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", oc.Cluster, len(oc.Hosts), result, detail)
	}
	return tw.Flush()
}
