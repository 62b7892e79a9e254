/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/ssargent/recordkit/pkg/query"
	"github.com/ssargent/recordkit/pkg/recordset"
	"github.com/ssargent/recordkit/pkg/schema"
)

// records is what query reads from, either kind of record set
type records interface {
	Size(ctx context.Context) (int64, error)
	Get(ctx context.Context, index int64) (*schema.Record, error)
}

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query <view>",
	Short: "Page through the records of a view",
	Long: `Show the records of a view in view order, optionally filtered.
Conditions are written "field OP values"; values are comma separated.

Operators: = != > >= < <= EQ NE GT GE LT LE LIKE_LEFT LIKE_MID LIKE_RIGHT
IN_LIST BETWEEN IS_NULL, each with a NOT_ prefix or a _NOCASE suffix.

Examples:
  recordkit query records --limit 20 --offset 40
  recordkit query records --where "name LIKE_LEFT_NOCASE an" --where "id BETWEEN 1,100"
  recordkit query records --where "id < 10" --where "id > 90" --or --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storeFor(cmd, args[0])
		if err != nil {
			return err
		}
		cfg, err := configFrom(cmd)
		if err != nil {
			return err
		}
		criteria, err := criteriaFromFlags(cmd, store.View())
		if err != nil {
			return err
		}
		offset, _ := cmd.Flags().GetInt64("offset")
		limit, _ := cmd.Flags().GetInt64("limit")
		format, _ := cmd.Flags().GetString("format")
		cursor, _ := cmd.Flags().GetBool("cursor")
		if offset < 0 {
			return fmt.Errorf("offset must not be negative")
		}

		opts := recordset.Options{PageSize: cfg.Paging.PageSize, MaxPages: cfg.Paging.MaxPages}
		var rs records
		if cursor {
			cached, err := recordset.NewCachedRecordSet(store, criteria, cfg.Paging.CursorCache, opts)
			if err != nil {
				return err
			}
			defer cached.Close()
			rs = cached
		} else {
			rs, err = recordset.NewPageRecordSet(store, criteria, opts)
			if err != nil {
				return err
			}
		}

		total, err := rs.Size(cmd.Context())
		if err != nil {
			return err
		}
		var page []*schema.Record
		for i := offset; limit <= 0 || i < offset+limit; i++ {
			r, err := rs.Get(cmd.Context(), i)
			if errors.Is(err, recordset.ErrIndexOutOfRange) {
				break
			}
			if err != nil {
				return err
			}
			page = append(page, r)
		}

		if err := outputRecords(cmd.OutOrStdout(), format, store.View(), page); err != nil {
			return err
		}
		if format != formatJSON {
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d-%d of %d records\n", offset+min(1, int64(len(page))), offset+int64(len(page)), total)
		}
		return nil
	},
}

// countCmd represents the count command
var countCmd = &cobra.Command{
	Use:   "count <view>",
	Short: "Count the records of a view",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storeFor(cmd, args[0])
		if err != nil {
			return err
		}
		criteria, err := criteriaFromFlags(cmd, store.View())
		if err != nil {
			return err
		}
		n, err := store.Count(cmd.Context(), criteria)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(countCmd)

	for _, c := range []*cobra.Command{queryCmd, countCmd} {
		c.Flags().StringArrayP("where", "w", nil, `Condition "field OP values", repeatable`)
		c.Flags().Bool("or", false, "Join the conditions with OR instead of AND")
	}
	queryCmd.Flags().Int64("offset", 0, "Index of the first record to show")
	queryCmd.Flags().Int64("limit", 20, "Number of records to show, 0 for all")
	queryCmd.Flags().StringP("format", "f", formatTable, "Output format (table or json)")
	queryCmd.Flags().Bool("cursor", false, "Read through a forward cursor instead of keyed pages")
}

func criteriaFromFlags(cmd *cobra.Command, view *schema.View) (*query.Criteria, error) {
	where, _ := cmd.Flags().GetStringArray("where")
	or, _ := cmd.Flags().GetBool("or")
	return query.ParseCriteria(view.Fields, where, or)
}
