package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/sensorthings/internal/cli/ui"
	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/crud"
)

func newPatchCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "patch <entity> <file|->",
		Short: "Update an entity with a JSON merge patch or JSON patch",
		Long: `Update an entity. A JSON object is applied as a merge patch, a JSON
array as a JSON patch (RFC 6902). The entity id cannot be changed.`,
		Example: `  echo '{"name": "Roof"}' | sensorthings patch '/Things(1)' -
  sensorthings patch '/Datastreams(7)' ops.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.load()
			if err != nil {
				return err
			}
			defer env.Close()

			rp, _, err := opts.parseRequest(env, args[:1])
			if err != nil {
				return err
			}
			body, err := readInput(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			mgr, err := env.connect(ctx)
			if err != nil {
				return err
			}

			var msg *model.ChangeMessage
			err = mgr.Do(ctx, func(s *crud.Session) error {
				var err error
				msg, err = s.Patch(ctx, rp, body)
				return err
			})
			if err != nil {
				return err
			}

			names := make([]string, 0, len(msg.Fields))
			for _, p := range msg.Fields {
				names = append(names, p.JSONName)
			}
			ui.WriteSuccess(cmd.OutOrStdout(),
				fmt.Sprintf("updated %s: %s", rp.String(env.ids()), strings.Join(names, ", ")), opts.noColor)
			return nil
		},
	}
}
