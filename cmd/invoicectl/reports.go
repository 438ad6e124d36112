package main

import (
	"fmt"
	"os"

	"github.com/AnTengye/invoicedesk/apiclient"
	"github.com/AnTengye/invoicedesk/gate"
	"github.com/AnTengye/invoicedesk/model"
	"github.com/spf13/cobra"
)

func (a *cli) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show totals, the monthly trend and recent invoices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.require(cmd.Context(), gate.ScreenDashboard); err != nil {
				return err
			}
			d, err := a.client.Dashboard(cmd.Context())
			if err != nil {
				return a.explain(err)
			}

			fmt.Fprintf(a.out, "Invoices: %d   Success rate: %.1f%%   Total: %s   Pending: %d\n\n",
				d.TotalInvoices, d.OCRSuccessRate, money(d.TotalAmount), d.PendingCount)

			if err := a.printMonths(d.MonthlyData); err != nil {
				return err
			}
			fmt.Fprintln(a.out)
			if err := a.printShares(d.CategoryData); err != nil {
				return err
			}
			fmt.Fprintln(a.out)

			tw := newTable(a.out, "RECENT", "FILE", "UPLOADED", "STATUS", "AMOUNT")
			for _, r := range d.RecentInvoices {
				row(tw, r.ID, r.FileName, r.UploadDate, r.Status, money(r.Amount))
			}
			return tw.Flush()
		},
	}
}

func (a *cli) reportsCmd() *cobra.Command {
	var (
		q      apiclient.ReportQuery
		export string
		output string
	)

	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Show or export the invoice report for a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.require(cmd.Context(), gate.ScreenReports); err != nil {
				return err
			}

			switch export {
			case "":
			case "csv":
				w := a.out
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				if err := a.client.ExportCSV(cmd.Context(), q, w); err != nil {
					return a.explain(err)
				}
				if output != "" {
					fmt.Fprintln(a.out, "Wrote", output)
				}
				return nil
			default:
				return fmt.Errorf("unsupported export format %q (only csv)", export)
			}

			data, err := a.client.Report(cmd.Context(), q)
			if err != nil {
				return a.explain(err)
			}

			s := data.Summary
			fmt.Fprintf(a.out, "Invoices: %d   Total: %s   Average: %s\n\n",
				s.TotalInvoices, money(s.TotalAmount), money(s.AverageAmount))
			if err := a.printMonths(data.MonthlyTrend); err != nil {
				return err
			}
			fmt.Fprintln(a.out)
			if err := a.printShares(s.CategoryBreakdown); err != nil {
				return err
			}
			fmt.Fprintln(a.out)

			tw := newTable(a.out, "INVOICE", "DATE", "VENDOR", "CATEGORY", "AMOUNT", "STATUS")
			for _, r := range data.InvoiceList {
				row(tw, orDash(r.InvoiceNumber), r.Date, orDash(r.Vendor), r.Category, money(r.Amount), r.Status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&q.DateFrom, "from", "", "period start YYYY-MM-DD")
	cmd.Flags().StringVar(&q.DateTo, "to", "", "period end YYYY-MM-DD")
	cmd.Flags().StringVar(&q.Category, "category", "", "only this category")
	cmd.Flags().StringVar(&export, "export", "", "export format (csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the export to this file instead of stdout")
	return cmd
}

func (a *cli) printMonths(points []model.MonthlyPoint) error {
	tw := newTable(a.out, "MONTH", "COUNT", "AMOUNT")
	for _, p := range points {
		row(tw, p.Month, p.Count, money(p.Amount))
	}
	return tw.Flush()
}

func (a *cli) printShares(shares []model.CategoryShare) error {
	tw := newTable(a.out, "CATEGORY", "COUNT", "AMOUNT", "SHARE")
	for _, s := range shares {
		row(tw, s.Category, s.Count, money(s.Amount), fmt.Sprintf("%.1f%%", s.Percentage))
	}
	return tw.Flush()
}
