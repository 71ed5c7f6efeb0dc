package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hodie-labs/ingest/internal/api"
	"github.com/hodie-labs/ingest/internal/ingest"
	"github.com/hodie-labs/ingest/internal/parsers"
	"github.com/hodie-labs/ingest/pkg/formatting"
)

type submitResult struct {
	file     string
	accepted *ingest.Accepted
	err      error
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		tenant   string
		category string
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "submit <file>...",
		Short: "Run files through the full ingestion pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenant == "" {
				return errors.New("--tenant is required")
			}

			results := make([]submitResult, len(args))
			err := ctx.withDomain(cmd.Context(), cmd.ErrOrStderr(), func(domain *api.Domain) error {
				g, gctx := errgroup.WithContext(cmd.Context())
				g.SetLimit(max(parallel, 1))

				for i, path := range args {
					g.Go(func() error {
						results[i] = submitFile(gctx, domain.Ingest, path, tenant, category)
						return nil
					})
				}
				return g.Wait()
			})
			if err != nil {
				return err
			}

			rejected := printResults(cmd, results)
			if rejected > 0 {
				return fmt.Errorf("%d of %d files rejected", rejected, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "Tenant the files are uploaded for")
	cmd.Flags().StringVar(&category, "category", parsers.CategoryGeneral, "Declared data category")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 4, "Files submitted concurrently")
	return cmd
}

func submitFile(ctx context.Context, sub ingest.Submitter, path, tenant, category string) submitResult {
	res := submitResult{file: filepath.Base(path)}

	data, err := os.ReadFile(path)
	if err != nil {
		res.err = fmt.Errorf("read: %w", err)
		return res
	}

	res.accepted, res.err = sub.Submit(ctx, ingest.Command{
		TenantID:    tenant,
		FileName:    filepath.Base(path),
		Category:    category,
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Data:        data,
	})
	return res
}

func printResults(cmd *cobra.Command, results []submitResult) int {
	rejected := 0
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			rejected++
			rows = append(rows, []string{r.file, "rejected", "", "", "", "", r.err.Error()})
			continue
		}
		a := r.accepted
		collection := ""
		if len(a.Mappings) > 0 {
			collection = a.Mappings[0].Collection
		}
		rows = append(rows, []string{
			r.file,
			"accepted",
			a.UploadID.String(),
			formatting.FormatBytes(a.ByteSize, 1),
			strconv.Itoa(a.RecordCount),
			strconv.Itoa(a.Confidence) + "%",
			fmt.Sprintf("%s, %d/%d used today", collection, a.Quota.Count, a.Quota.Limit),
		})
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"File", "Status", "Upload", "Size", "Records", "Confidence", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
	return rejected
}
