package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/hodie-labs/ingest/internal/api"
	"github.com/hodie-labs/ingest/internal/uploads"
	"github.com/hodie-labs/ingest/pkg/formatting"
	"github.com/hodie-labs/ingest/pkg/pagination"
)

func newUploadsCommand(ctx *commandContext) *cobra.Command {
	var (
		tenant string
		status string
		search string
		page   int
		size   int
	)

	cmd := &cobra.Command{
		Use:   "uploads",
		Short: "List a tenant's uploads, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenant == "" {
				return errors.New("--tenant is required")
			}

			filters := uploads.Filters{TenantID: &tenant}
			if status != "" {
				filters.Status = &status
			}
			req := pagination.PageRequest{Page: page, PageSize: size}
			if search != "" {
				req.Search = &search
			}

			return ctx.withDomain(cmd.Context(), cmd.ErrOrStderr(), func(domain *api.Domain) error {
				result, err := domain.Uploads.List(cmd.Context(), req, filters)
				if err != nil {
					return err
				}
				printUploads(cmd, result)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&tenant, "tenant", "t", "", "Tenant whose uploads to list")
	flags.StringVar(&status, "status", "", "Only uploads in this status (processing, completed, failed)")
	flags.StringVar(&search, "search", "", "Match file name, category, or format")
	flags.IntVar(&page, "page", 1, "Page number")
	flags.IntVar(&size, "page-size", 20, "Uploads per page")
	return cmd
}

func printUploads(cmd *cobra.Command, result *pagination.PageResult[uploads.Upload]) {
	out := cmd.OutOrStdout()
	if result.Total == 0 {
		fmt.Fprintln(out, "No uploads.")
		return
	}

	rows := make([][]string, 0, len(result.Data))
	for _, u := range result.Data {
		rows = append(rows, []string{
			u.ID.String(),
			u.FileName,
			string(u.Status),
			u.Category,
			formatting.FormatBytes(u.ByteSize, 1),
			strconv.Itoa(u.RecordCount),
			u.ReceivedAt.Local().Format(time.DateTime),
		})
	}

	fmt.Fprintln(out, renderTable(
		[]string{"Upload", "File", "Status", "Category", "Size", "Records", "Received"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
	fmt.Fprintf(out, "Page %d of %d (%d uploads)\n", result.Page, result.TotalPages, result.Total)
	if result.HasNext() {
		fmt.Fprintf(out, "More: --page %d\n", result.Page+1)
	}
}
