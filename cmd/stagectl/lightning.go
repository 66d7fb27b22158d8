package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newLightningCmd(opts *rootOptions) *cobra.Command {
	var (
		owner     string
		pathway   string
		intensity string
		consent   bool
		pf        processFlags
	)
	cmd := &cobra.Command{
		Use:   "lightning",
		Short: "Start a paced lightning run",
		Long: `Start a lightning run over all stages in a pathway order.

Without --consent the server only describes the pathway.`,
		Example: `  stagectl lightning --owner alice --pathway classic --intensity gentle --consent --input "..."`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := pf.body(cmd)
			if err != nil {
				return err
			}
			body["owner_id"] = owner
			body["pathway"] = pathway
			body["intensity"] = intensity
			body["consent_confirmed"] = consent

			data, err := opts.client().do(cmd.Context(), "POST", "/api/v1/lightning", body)
			if err != nil {
				return err
			}
			var resp struct {
				ConsentRequired bool   `json:"consent_required"`
				Message         string `json:"message"`
			}
			if err := json.Unmarshal(data, &resp); err == nil && resp.ConsentRequired {
				fmt.Fprintf(cmd.ErrOrStderr(), "[stagectl] %s (re-run with --consent)\n", resp.Message)
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	f := cmd.Flags()
	f.StringVar(&owner, "owner", "", "run owner ID")
	f.StringVar(&pathway, "pathway", "classic", "pathway: classic, ascent, centered, cascade, spiral")
	f.StringVar(&intensity, "intensity", "moderate", "intensity: gentle, moderate, intense, breakthrough")
	f.BoolVar(&consent, "consent", false, "confirm consent to run")
	pf.register(cmd)
	_ = cmd.MarkFlagRequired("owner")

	cmd.AddCommand(&cobra.Command{
		Use:   "get <run-id>",
		Short: "Show a lightning run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := opts.client().do(cmd.Context(), "GET", "/api/v1/lightning/"+args[0], nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	})
	return cmd
}
