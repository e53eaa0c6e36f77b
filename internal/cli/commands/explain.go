package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/sensorthings/internal/cli/ui"
	"github.com/conduit-lang/sensorthings/internal/orm/compiler"
)

// parentPlaceholder stands in for the parent id of an expand
const parentPlaceholder = "<parent id>"

func newExplainCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <path> [query]",
		Short: "Show the SQL a read request compiles to",
		Long: `Compile a read request and print the statements it runs, without
connecting to the database. Expands are listed with their own statements,
which run once per parent entity.`,
		Example: `  sensorthings explain '/Things(1)/Datastreams'
  sensorthings explain /Observations '$filter=result gt 20&$orderby=phenomenonTime desc&$top=10'
  sensorthings explain /Things '$expand=Datastreams($select=name)&$count=true'`,
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
			res, err := env.compiler().ForPath(rp, q)
			if err != nil {
				return err
			}
			return explainResult(cmd.OutOrStdout(), "Read "+rp.String(env.ids()), res, nil, opts.noColor)
		},
	}
}

func explainResult(w io.Writer, title string, res *compiler.Result, params map[string]interface{}, noColor bool) error {
	stmt, args, err := res.Plan.Render(params)
	if err != nil {
		return err
	}

	ui.NewSection(w, title, noColor).Render()
	table := ui.NewKeyValueTable(w, noColor)
	table.AddRow("SQL", stmt)
	table.AddRow("Parameters", formatArgs(args))
	if res.Count != nil {
		countStmt, countArgs, err := res.Count.Render(params)
		if err != nil {
			return err
		}
		table.AddRow("Count SQL", countStmt)
		table.AddRow("Count parameters", formatArgs(countArgs))
	}
	if !res.Single {
		table.AddRow("Top", strconv.FormatInt(res.Top, 10))
		table.AddRow("Skip", strconv.FormatInt(res.Skip, 10))
	}
	table.Render()
	fmt.Fprintln(w)

	for _, exp := range res.Expands {
		err := explainResult(w, title+" > expand "+exp.Property.Name, exp.Result,
			map[string]interface{}{compiler.ParentParam: parentPlaceholder}, noColor)
		if err != nil {
			return err
		}
	}
	return nil
}

func formatArgs(args []interface{}) string {
	if len(args) == 0 {
		return "none"
	}
	parts := make([]string, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok && s != parentPlaceholder {
			parts[i] = fmt.Sprintf("$%d = %q", i+1, s)
			continue
		}
		parts[i] = fmt.Sprintf("$%d = %v", i+1, a)
	}
	return strings.Join(parts, ", ")
}
