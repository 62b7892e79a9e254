package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ssargent/recordkit/pkg/schema"
)

const (
	formatTable = "table"
	formatJSON  = "json"

	maxCellWidth = 40
)

// outputRecords writes records of view as a table or a JSON array
func outputRecords(out io.Writer, format string, view *schema.View, records []*schema.Record) error {
	switch format {
	case formatJSON:
		return outputRecordsJSON(out, records)
	case formatTable, "":
		return outputRecordsTable(out, view, records)
	}
	return fmt.Errorf("unknown format %q", format)
}

func outputRecordsTable(out io.Writer, view *schema.View, records []*schema.Record) error {
	if len(records) == 0 {
		fmt.Fprintln(out, "No records found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	aliases := view.Fields.Aliases()
	fmt.Fprintln(w, strings.ToUpper(strings.Join(aliases, "\t")))

	cells := make([]string, len(aliases))
	for _, r := range records {
		for i := range aliases {
			v := r.ValueAt(i)
			cell := v.String()
			if v.IsNull() {
				cell = "-"
			}
			if len(cell) > maxCellWidth {
				cell = cell[:maxCellWidth-3] + "..."
			}
			cells[i] = cell
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return nil
}

func outputRecordsJSON(out io.Writer, records []*schema.Record) error {
	if records == nil {
		records = []*schema.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}
