package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rawwerks/cass/internal/outcome"
)

var (
	viewLine   int
	expandLine int
	expandRad  int
)

var viewCmd = &cobra.Command{
	Use:   "view <path>",
	Short: "Read one source line for follow-up display after a search hit",
	Args:  cobra.ExactArgs(1),
	RunE:  runView,
}

var expandCmd = &cobra.Command{
	Use:   "expand <path>",
	Short: "Read a context window of lines around a search hit",
	Args:  cobra.ExactArgs(1),
	RunE:  runExpand,
}

func init() {
	viewCmd.Flags().IntVarP(&viewLine, "line", "n", -1, "line_number from a search hit (required)")
	expandCmd.Flags().IntVarP(&expandLine, "line", "n", -1, "line_number from a search hit (required)")
	expandCmd.Flags().IntVarP(&expandRad, "context", "C", 3, "number of lines before and after to include")
}

// lineRecord is what view/expand render: the raw source_path line plus its
// 1-indexed position, matching the line_number reported on search hits.
type lineRecord struct {
	LineNumber int    `json:"line_number"`
	Text       string `json:"text"`
}

func runView(cmd *cobra.Command, args []string) error {
	if viewLine < 1 {
		return outcome.Usage("pass -n <line_number> from a search hit", "missing required --line")
	}
	path := args[0]
	line, err := readLineAt(path, viewLine)
	if err != nil {
		return err
	}
	rec := lineRecord{LineNumber: viewLine, Text: line}
	if flagJSON {
		return writeJSONValue(rec)
	}
	fmt.Println(line)
	return nil
}

func runExpand(cmd *cobra.Command, args []string) error {
	if expandLine < 1 {
		return outcome.Usage("pass -n <line_number> from a search hit", "missing required --line")
	}
	if expandRad < 0 {
		return outcome.Usage("pass a non-negative --context radius", "invalid --context %d", expandRad)
	}
	path := args[0]
	from := expandLine - expandRad
	if from < 1 {
		from = 1
	}
	to := expandLine + expandRad

	lines, err := readLineRange(path, from, to)
	if err != nil {
		return err
	}
	if flagJSON {
		return writeJSONValue(struct {
			Center int          `json:"center_line"`
			Lines  []lineRecord `json:"lines"`
		}{Center: expandLine, Lines: lines})
	}
	for _, l := range lines {
		marker := "   "
		if l.LineNumber == expandLine {
			marker = ">> "
		}
		fmt.Printf("%s%5d  %s\n", marker, l.LineNumber, l.Text)
	}
	return nil
}

func readLineAt(path string, n int) (string, error) {
	lines, err := readLineRange(path, n, n)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", outcome.Usage("check the line number against a fresh search hit", "line %d not found in %s", n, path)
	}
	return lines[0].Text, nil
}

// readLineRange reads 1-indexed lines [from, to] inclusive, matching the
// line_number convention search hits report.
func readLineRange(path string, from, to int) ([]lineRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, outcome.Wrap(outcome.KindUsage, "check the source path from the search hit still exists", err)
	}
	defer f.Close()

	var out []lineRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 1
	for sc.Scan() {
		if lineNo >= from && lineNo <= to {
			out = append(out, lineRecord{LineNumber: lineNo, Text: sc.Text()})
		}
		if lineNo > to {
			break
		}
		lineNo++
	}
	if err := sc.Err(); err != nil {
		return nil, outcome.Wrap(outcome.KindUnknown, "re-run with --verbose for detail", err)
	}
	return out, nil
}

func writeJSONValue(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
