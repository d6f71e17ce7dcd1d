/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/valpere/tracetran/internal/store"
)

var (
	listRecords bool
	listLimit   int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show translation progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, db *store.Store) error {
			if err := printSummary(ctx, db); err != nil {
				return err
			}
			if !listRecords {
				return nil
			}
			records, err := db.List(ctx, listLimit)
			if err != nil {
				return err
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Title", "Status", "Created", "Translated"})
			for _, r := range records {
				translated := ""
				if r.TranslatedAt.Valid {
					translated = r.TranslatedAt.Time.Local().Format("2006-01-02 15:04")
				}
				tw.AppendRow(table.Row{r.ID, shorten(r.Title, 48), r.Status, r.CreatedAt.Local().Format("2006-01-02 15:04"), translated})
			}
			tw.Render()
			return nil
		})
	},
}

func shorten(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&listRecords, "list", "l", false, "List recent records")
	statusCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Number of records to list (0 = all)")
}
