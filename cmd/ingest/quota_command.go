package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/hodie-labs/ingest/internal/api"
)

func newQuotaCommand(ctx *commandContext) *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show a tenant's upload quota for today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenant == "" {
				return errors.New("--tenant is required")
			}

			return ctx.withDomain(cmd.Context(), cmd.ErrOrStderr(), func(domain *api.Domain) error {
				w, err := domain.Quota.Usage(cmd.Context(), tenant, time.Now())
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Tenant", "Day", "Used", "Limit", "Remaining", "Resets"},
					[][]string{{
						w.TenantID,
						w.Day,
						strconv.Itoa(w.Count),
						strconv.Itoa(w.Limit),
						strconv.Itoa(w.Remaining),
						w.ResetsAt.Format(time.RFC3339),
					}},
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "Tenant to report on")
	return cmd
}
