package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/casedb/types"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// caseRow is the printed form of a case
type caseRow struct {
	ID         string            `json:"case_id" yaml:"case_id"`
	Type       string            `json:"case_type" yaml:"case_type"`
	Name       string            `json:"case_name" yaml:"case_name"`
	Status     string            `json:"status" yaml:"status"`
	Owner      string            `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
	Opened     string            `json:"date_opened,omitempty" yaml:"date_opened,omitempty"`
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
	Indices    map[string]string `json:"indices,omitempty" yaml:"indices,omitempty"`
}

var tableColumns = []string{"case id", "case type", "case name", "status", "owner id", "date opened"}

func newCaseRow(c *types.Case) caseRow {
	row := caseRow{
		ID:         c.ID,
		Type:       c.TypeID,
		Name:       c.Name,
		Status:     c.Status(),
		Owner:      c.UserID,
		Properties: c.Properties,
	}
	if c.DateOpened != nil {
		row.Opened = c.DateOpened.Format("2006-01-02T15:04:05Z")
	}
	if len(c.Indices) > 0 {
		row.Indices = make(map[string]string, len(c.Indices))
		for name, idx := range c.Indices {
			row.Indices[name] = idx.CaseType + "/" + idx.CaseID
		}
	}
	return row
}

func (r caseRow) cells() []string {
	return []string{r.ID, r.Type, r.Name, r.Status, r.Owner, r.Opened}
}

// OutputFormatter handles formatting command results for different output formats
type OutputFormatter struct {
	format string
}

// NewOutputFormatter creates a new output formatter
func NewOutputFormatter(format string) (*OutputFormatter, error) {
	switch format {
	case FormatTable, FormatJSON, FormatYAML:
		return &OutputFormatter{format: format}, nil
	case "":
		return &OutputFormatter{format: FormatTable}, nil
	default:
		return nil, &CLIError{
			Operation:   "format output",
			Cause:       fmt.Sprintf("unknown format %q", format),
			Suggestions: []string{"Use --format table, json or yaml"},
		}
	}
}

// WriteCases prints cases in the configured format
func (of *OutputFormatter) WriteCases(w io.Writer, rows []caseRow) error {
	switch of.format {
	case FormatJSON:
		return writeJSON(w, rows)
	case FormatYAML:
		return yaml.NewEncoder(w).Encode(rows)
	default:
		return writeTable(w, rows)
	}
}

// WriteIDs prints the ids selected by a filter
func (of *OutputFormatter) WriteIDs(w io.Writer, ids []string) error {
	switch of.format {
	case FormatJSON:
		return writeJSON(w, map[string][]string{"cases": ids})
	case FormatYAML:
		return yaml.NewEncoder(w).Encode(map[string][]string{"cases": ids})
	default:
		for _, id := range ids {
			if _, err := fmt.Fprintln(w, id); err != nil {
				return err
			}
		}
		return nil
	}
}

func writeJSON(w io.Writer, data interface{}) error {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(bytes))
	return err
}

func writeTable(w io.Writer, rows []caseRow) error {
	caser := cases.Title(language.Und)
	headers := make([]string, len(tableColumns))
	for i, col := range tableColumns {
		headers[i] = caser.String(col)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row.cells(), "\t"))
	}
	return tw.Flush()
}
