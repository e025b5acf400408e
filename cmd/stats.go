package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vicluzy/pst-extract/extract"
	"github.com/vicluzy/pst-extract/mailbox"
	"github.com/vicluzy/pst-extract/stats"
)

var (
	statsReportDir string
	statsTopN      int
)

var statsCmd = &cobra.Command{
	Use:   "stats [container]",
	Short: "Analyse a container and show per-field statistics",
	Long:  "Walks a container without writing extraction output and reports the most frequent senders, recipients, subjects and folders.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		fmt.Println("Analyzing container:", path)

		c, err := mailbox.Open(path)
		if err != nil {
			return fmt.Errorf("open container (supported: %s): %w", supportedFormats(), err)
		}
		defer c.Close()

		result, err := extract.Run(c, nil, nil)
		if err != nil {
			return err
		}

		fields := []string{"From", "To", "Subject", "Folder"}
		counter := make(map[string]map[string]int)
		for _, f := range fields {
			counter[f] = make(map[string]int)
		}

		for _, rec := range result.Records {
			count(counter["From"], rec.From)
			count(counter["To"], rec.To)
			count(counter["Subject"], rec.Subject)
			count(counter["Folder"], folderOf(rec.Source))
		}

		fmt.Printf("Messages: %d, attachments: %d, warnings: %d\n\n",
			len(result.Records), len(result.Attachments), len(result.Warnings))

		for _, field := range fields {
			fmt.Printf("Top %d %s:\n", statsTopN, field)
			stats.PrettyPrintTop(counter[field], statsTopN)
			fmt.Println()
		}

		if err := saveCSVReports(counter, fields, statsReportDir, 1000); err != nil {
			return fmt.Errorf("error saving CSV reports: %w", err)
		}
		fmt.Printf("Reports saved to directory: %s\n", statsReportDir)

		return nil
	},
}

func init() {
	statsCmd.Flags().StringVarP(&statsReportDir, "output", "o", ".", "Output directory for CSV reports")
	statsCmd.Flags().IntVarP(&statsTopN, "top", "t", 10, "Number of top items to display in statistics")
	rootCmd.AddCommand(statsCmd)
}

func count(m map[string]int, value string) {
	if value != "" {
		m[value]++
	}
}

// folderOf extracts the folder path from a record source of the form
// "container::folder/subfolder".
func folderOf(source string) string {
	if _, folder, ok := strings.Cut(source, "::"); ok {
		return folder
	}
	return ""
}

func saveCSVReports(counter map[string]map[string]int, fields []string, dir string, limit int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, field := range fields {
		counts := counter[field]

		filename := fmt.Sprintf("report_%s.csv", strings.ToLower(field))
		filePath := filepath.Join(dir, filename)

		file, err := os.Create(filePath)
		if err != nil {
			return err
		}

		writer := csv.NewWriter(file)

		if err := writer.Write([]string{"Value", "Count"}); err != nil {
			file.Close()
			return err
		}

		type pair struct {
			Key   string
			Value int
		}
		var pairs []pair
		for k, v := range counts {
			pairs = append(pairs, pair{k, v})
		}
		sort.Slice(pairs, func(i, j int) bool {
			return pairs[i].Value > pairs[j].Value
		})

		for i := 0; i < limit && i < len(pairs); i++ {
			record := []string{
				pairs[i].Key,
				strconv.Itoa(pairs[i].Value),
			}
			if err := writer.Write(record); err != nil {
				file.Close()
				return err
			}
		}

		writer.Flush()
		file.Close()

		if err := writer.Error(); err != nil {
			return err
		}
	}

	return nil
}
