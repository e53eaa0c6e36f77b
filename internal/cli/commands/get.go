package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/sensorthings/internal/jsonio"
	"github.com/conduit-lang/sensorthings/internal/orm/crud"
	"github.com/conduit-lang/sensorthings/internal/resultformat"
)

func newGetCommand(opts *rootOptions) *cobra.Command {
	var resultFormat string

	cmd := &cobra.Command{
		Use:   "get <path> [query]",
		Short: "Read entities, a property or a property value",
		Example: `  sensorthings get '/Things(1)'
  sensorthings get '/Datastreams(7)/Observations' '$top=5&$count=true'
  sensorthings get '/Things(1)/name/$value'
  sensorthings get /Observations '$select=result,phenomenonTime' --result-format=dataArray`,
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
			if resultFormat != "" {
				q.SetResultFormat(resultFormat)
			}
			if q.IsDataArray() {
				if err := resultformat.Prepare(env.model, rp, q); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			mgr, err := env.connect(ctx)
			if err != nil {
				return err
			}

			var out interface{}
			err = mgr.Do(ctx, func(s *crud.Session) error {
				if rp.IsCollection() {
					set, err := s.Query(ctx, rp, q)
					if err != nil {
						return err
					}
					if q.IsDataArray() {
						out = resultformat.Format(env.ids(), set, q)
					} else {
						out = jsonio.WriteSet(env.ids(), set)
					}
					return nil
				}

				e, err := s.Get(ctx, rp, q)
				if err != nil {
					return err
				}
				switch {
				case rp.Property != nil && rp.Value:
					out = rawValue{rp.Property.Type.JSONValue(e.Get(rp.Property))}
				case rp.Property != nil:
					out = map[string]interface{}{
						rp.Property.JSONName: rp.Property.Type.JSONValue(e.Get(rp.Property)),
					}
				default:
					out = jsonio.Write(env.ids(), e)
				}
				return nil
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&resultFormat, "result-format", "", "Result format of Observation collections (dataArray)")
	return cmd
}

// rawValue is a property value printed without a JSON wrapper
type rawValue struct {
	v interface{}
}

func writeJSON(w io.Writer, v interface{}) error {
	if raw, ok := v.(rawValue); ok {
		if s, ok := raw.v.(string); ok {
			_, err := fmt.Fprintln(w, s)
			return err
		}
		v = raw.v
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
