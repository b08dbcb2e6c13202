package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudkit/internal/engine"
	"github.com/mesh-intelligence/crudkit/internal/query"
	"github.com/mesh-intelligence/crudkit/internal/schema"
	"github.com/mesh-intelligence/crudkit/internal/store"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

type typeInfo struct {
	Name   string         `json:"name"`
	Table  string         `json:"table"`
	Fields []schema.Field `json:"fields"`
}

func newTypesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the configured entity types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			reg, err := cfg.Registry()
			if err != nil {
				return usagef("%v", err)
			}
			out := []typeInfo{}
			for _, et := range reg.Types() {
				out = append(out, typeInfo{Name: et.Name(), Table: et.Table(), Fields: et.Fields()})
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

// listFlags are the filter, sort and page flags of list and count.
type listFlags struct {
	filter string
	sort   string
	offset int
	limit  int
}

func (lf *listFlags) options() (engine.ListOptions, error) {
	filters, err := query.ParseFilters([]byte(lf.filter))
	if err != nil {
		return engine.ListOptions{}, err
	}
	sort, err := query.ParseSort([]byte(lf.sort))
	if err != nil {
		return engine.ListOptions{}, err
	}
	return engine.ListOptions{
		Filters: filters,
		Sort:    sort,
		Page:    types.Page{Offset: lf.offset, Limit: lf.limit},
	}, nil
}

func newListCmd(flags *rootFlags) *cobra.Command {
	lf := &listFlags{}
	cmd := &cobra.Command{
		Use:   "list <type>",
		Short: "List records of an entity type",
		Long: `List prints the records of an entity type as a JSON array.

Filters and sorts use the JSON wire form. Top-level filter clauses are ANDed.

Example:
  crudkit list people --filter '[{"field":"age","op":">","value":15}]' --sort '[{"field":"age","direction":"desc"}]'
  crudkit list people --offset 20 --limit 10`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := lf.options()
			if err != nil {
				return err
			}
			return withEntity(cmd, flags, args[0], func(a *app, sess *store.Session, et *schema.EntityType) error {
				recs, err := a.engine.List(cmd.Context(), sess, et, opts)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), recs)
			})
		},
	}
	cmd.Flags().StringVar(&lf.filter, "filter", "", "filter specification (JSON)")
	cmd.Flags().StringVar(&lf.sort, "sort", "", "sort specification (JSON)")
	cmd.Flags().IntVar(&lf.offset, "offset", 0, "rows to skip")
	cmd.Flags().IntVar(&lf.limit, "limit", 0, "maximum rows to return (0 for no limit)")
	return cmd
}

func newCountCmd(flags *rootFlags) *cobra.Command {
	lf := &listFlags{}
	cmd := &cobra.Command{
		Use:   "count <type>",
		Short: "Count records of an entity type",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := lf.options()
			if err != nil {
				return err
			}
			return withEntity(cmd, flags, args[0], func(a *app, sess *store.Session, et *schema.EntityType) error {
				n, err := a.engine.Count(cmd.Context(), sess, et, opts.Filters, opts.Sort)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&lf.filter, "filter", "", "filter specification (JSON)")
	cmd.Flags().StringVar(&lf.sort, "sort", "", "sort specification (JSON); validated, does not change the count")
	return cmd
}

func newCreateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "create <type> <json>",
		Short: "Create a record",
		Example: `  crudkit create people '{"name":"Ada","age":36}'`,
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseRecord(args[1])
			if err != nil {
				return err
			}
			return withEntity(cmd, flags, args[0], func(a *app, sess *store.Session, et *schema.EntityType) error {
				rec, err := a.engine.Create(cmd.Context(), sess, et, data)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
}

func newGetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Get a record by id",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			return withEntity(cmd, flags, args[0], func(a *app, sess *store.Session, et *schema.EntityType) error {
				rec, err := a.engine.Retrieve(cmd.Context(), sess, et, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
}

func newUpdateCmd(flags *rootFlags) *cobra.Command {
	return newWriteCmd(flags, "update", "Replace every field of a record; absent fields take their default", func(a *app) writeFunc {
		return a.engine.Update
	})
}

func newPatchCmd(flags *rootFlags) *cobra.Command {
	return newWriteCmd(flags, "patch", "Change only the given fields of a record", func(a *app) writeFunc {
		return a.engine.Patch
	})
}

type writeFunc func(ctx context.Context, sess engine.Session, et *schema.EntityType, id uuid.UUID, data types.Record) (types.Record, error)

func newWriteCmd(flags *rootFlags, use, short string, op func(a *app) writeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <type> <id> <json>",
		Short: short,
		Args:  exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			data, err := parseRecord(args[2])
			if err != nil {
				return err
			}
			return withEntity(cmd, flags, args[0], func(a *app, sess *store.Session, et *schema.EntityType) error {
				rec, err := op(a)(cmd.Context(), sess, et, id, data)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
}

func newDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete a record and print it as it was",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			return withEntity(cmd, flags, args[0], func(a *app, sess *store.Session, et *schema.EntityType) error {
				rec, err := a.engine.Delete(cmd.Context(), sess, et, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
}

// withEntity opens a session and looks up the named entity type.
func withEntity(cmd *cobra.Command, flags *rootFlags, typeName string, fn func(a *app, sess *store.Session, et *schema.EntityType) error) error {
	return withSession(cmd.Context(), flags, func(a *app, sess *store.Session) error {
		et, err := a.registry.Lookup(typeName)
		if err != nil {
			return err
		}
		return fn(a, sess, et)
	})
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", types.ErrInvalidID, s)
	}
	return id, nil
}

// parseRecord decodes a JSON object argument.
func parseRecord(s string) (types.Record, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var data types.Record
	if err := dec.Decode(&data); err != nil || data == nil {
		return nil, usagef("record must be a JSON object: %q", s)
	}
	return data, nil
}
