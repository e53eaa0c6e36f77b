package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/sensorthings/internal/cli/ui"
	"github.com/conduit-lang/sensorthings/internal/jsonio"
	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/crud"
	"github.com/conduit-lang/sensorthings/internal/path"
)

func newCreateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <collection> <file|->",
		Short: "Create an entity with its inline related entities",
		Long: `Create an entity from a JSON document. Related entities given inline
are created in the same transaction, related entities given as
{"@iot.id": ...} must exist. A collection below an entity links the new
entity to it, e.g. /Things(1)/Datastreams.`,
		Example: `  sensorthings create /Things thing.json
  echo '{"result": 21.5}' | sensorthings create '/Datastreams(7)/Observations' -`,
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

			var created *model.Entity
			err = mgr.Do(ctx, func(s *crud.Session) error {
				// decoded per attempt: a failed attempt leaves ids behind
				e, err := jsonio.Read(env.reg, rp.MainType(), body)
				if err != nil {
					return err
				}
				if err := s.Create(ctx, rp, e); err != nil {
					return err
				}
				created = e
				return nil
			})
			if err != nil {
				return err
			}

			ui.WriteSuccess(cmd.OutOrStdout(),
				fmt.Sprintf("created %s", path.ForEntity(created.Type(), created.ID()).String(env.ids())), opts.noColor)
			return nil
		},
	}
}
