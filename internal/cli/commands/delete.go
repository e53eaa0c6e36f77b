package commands

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/sensorthings/internal/cli/ui"
	"github.com/conduit-lang/sensorthings/internal/orm/crud"
)

var deleteYes bool

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <path> [query]",
		Short: "Delete an entity, or every entity a collection query matches",
		Long: `Delete an entity with the entities that depend on it. A collection
path deletes every entity matching its $filter.`,
		Example: `  sensorthings delete '/Sensors(4)'
  sensorthings delete /Observations '$filter=phenomenonTime lt 2020-01-01T00:00:00Z' --yes`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.load()
			if err != nil {
				return err
			}
			defer env.Close()

			rp, q, err := opts.parseRequest(env, args)
			if err != nil {
				return err
			}

			target := rp.String(env.ids())
			if rp.IsCollection() {
				target = "every entity of " + target
				if len(args) > 1 {
					target += " matching " + args[1]
				}
			}
			if !deleteYes {
				confirmed := false
				prompt := &survey.Confirm{
					Message: fmt.Sprintf("Delete %s?", target),
					Default: false,
				}
				if err := survey.AskOne(prompt, &confirmed); err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}

			ctx := cmd.Context()
			mgr, err := env.connect(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rp.IsCollection() {
				var n int
				err = mgr.Do(ctx, func(s *crud.Session) error {
					var err error
					n, err = s.DeleteWhere(ctx, rp, q)
					return err
				})
				if err != nil {
					return err
				}
				ui.WriteSuccess(out, fmt.Sprintf("deleted %d %s", n, rp.MainType().Plural), opts.noColor)
				return nil
			}

			err = mgr.Do(ctx, func(s *crud.Session) error {
				return s.DeletePath(ctx, rp)
			})
			if err != nil {
				return err
			}
			ui.WriteSuccess(out, "deleted "+rp.String(env.ids()), opts.noColor)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
