package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"
)

// Output format constants.
const (
	outputJSON = "json"
	outputYAML = "yaml"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: marshal JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printYAML(v any) {
	data, err := yaml.Marshal(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: marshal YAML: %v\n", err)
		return
	}
	fmt.Print(string(data))
}

type tableWriter struct {
	w       *tabwriter.Writer
	headers []string
}

func newTable(headers ...string) *tableWriter {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	t := &tableWriter{w: w, headers: headers}
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	return t
}

func (t *tableWriter) AddRow(values ...string) {
	fmt.Fprintln(t.w, strings.Join(values, "\t"))
}

func (t *tableWriter) Flush() {
	t.w.Flush()
}

func printPagination(total int64, page, perPage, totalPages int) {
	if total == 0 {
		fmt.Println("No resources found.")
		return
	}
	start := (page-1)*perPage + 1
	end := page * perPage
	if int64(end) > total {
		end = int(total)
	}
	fmt.Printf("\nShowing %d-%d of %d results (page %d/%d)\n", start, end, total, page, totalPages)
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func shortTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func ptrTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return shortTime(*t)
}
