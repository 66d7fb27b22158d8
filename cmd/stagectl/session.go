package main

import (
	"github.com/spf13/cobra"
)

func newSessionCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create and drive orchestration sessions",
	}
	cmd.AddCommand(
		newSessionCreateCmd(opts),
		newSessionProcessCmd(opts),
		newSessionAdapterCmd(opts),
		newSessionGetCmd(opts),
		newSessionCompleteCmd(opts),
	)
	return cmd
}

func newSessionCreateCmd(opts *rootOptions) *cobra.Command {
	var body struct {
		OwnerID        string   `json:"owner_id"`
		Intent         string   `json:"intent,omitempty"`
		WorkflowName   string   `json:"workflow_name,omitempty"`
		ExplicitStages []string `json:"explicit_stages,omitempty"`
		FlowPattern    string   `json:"flow_pattern,omitempty"`
	}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session from a workflow, explicit stages or the defaults",
		Example: `  stagectl session create --owner alice --workflow foundation_building
  stagectl session create --owner alice --stages chesed,tiferet,gevurah --pattern balancing`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := opts.client().do(cmd.Context(), "POST", "/api/v1/sessions", body)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	f := cmd.Flags()
	f.StringVar(&body.OwnerID, "owner", "", "session owner ID")
	f.StringVar(&body.Intent, "intent", "", "free-text intent")
	f.StringVar(&body.WorkflowName, "workflow", "", "workflow name")
	f.StringSliceVar(&body.ExplicitStages, "stages", nil, "explicit stage IDs (overrides --workflow)")
	f.StringVar(&body.FlowPattern, "pattern", "", "flow pattern: descending, ascending, balancing")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

type processFlags struct {
	input   string
	context []string
}

func (p *processFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.input, "input", "-", "input text, or - for stdin")
	cmd.Flags().StringArrayVar(&p.context, "context", nil, "context entry key=value (repeatable)")
}

func (p *processFlags) body(cmd *cobra.Command) (map[string]any, error) {
	input, err := readInput(cmd, p.input)
	if err != nil {
		return nil, err
	}
	ctx, err := parseContext(p.context)
	if err != nil {
		return nil, err
	}
	return map[string]any{"input": input, "context": ctx}, nil
}

func newSessionProcessCmd(opts *rootOptions) *cobra.Command {
	var pf processFlags
	cmd := &cobra.Command{
		Use:   "process <session-id>",
		Short: "Run the session's stages over input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := pf.body(cmd)
			if err != nil {
				return err
			}
			data, err := opts.client().do(cmd.Context(), "POST", "/api/v1/sessions/"+args[0]+"/process", body)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	pf.register(cmd)
	return cmd
}

func newSessionAdapterCmd(opts *rootOptions) *cobra.Command {
	var pf processFlags
	cmd := &cobra.Command{
		Use:   "adapter <session-id> <module>",
		Short: "Process input through an external module and its mapped stages",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := pf.body(cmd)
			if err != nil {
				return err
			}
			data, err := opts.client().do(cmd.Context(), "POST", "/api/v1/sessions/"+args[0]+"/adapter/"+args[1], body)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	pf.register(cmd)
	return cmd
}

func newSessionGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show a session and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := opts.client().do(cmd.Context(), "GET", "/api/v1/sessions/"+args[0], nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
}

func newSessionCompleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <session-id>",
		Short: "Complete a session and print its final summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := opts.client().do(cmd.Context(), "POST", "/api/v1/sessions/"+args[0]+"/complete", nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
}
