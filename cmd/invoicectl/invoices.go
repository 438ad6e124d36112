package main

import (
	"fmt"

	"github.com/AnTengye/invoicedesk/apiclient"
	"github.com/AnTengye/invoicedesk/gate"
	"github.com/spf13/cobra"
)

func (a *cli) invoicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "Browse processed invoices",
	}

	var q apiclient.InvoiceQuery
	list := &cobra.Command{
		Use:   "list",
		Short: "List invoices, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.require(cmd.Context(), gate.ScreenInvoices); err != nil {
				return err
			}
			page, err := a.client.ListInvoices(cmd.Context(), q)
			if err != nil {
				return a.explain(err)
			}

			tw := newTable(a.out, "ID", "FILE", "UPLOADED", "STATUS", "CATEGORY", "AMOUNT")
			for _, inv := range page.Items {
				row(tw, inv.ID, inv.FileName, inv.UploadDate.Format("2006-01-02"), inv.Status, orDash(inv.Category), money(inv.Amount()))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "page %d, %d of %d invoices\n", page.Page, len(page.Items), page.Total)
			return nil
		},
	}
	list.Flags().IntVar(&q.Page, "page", 1, "page number")
	list.Flags().IntVar(&q.Limit, "limit", 20, "invoices per page (max 100)")
	list.Flags().StringVar(&q.Status, "status", "", "only this status (processing, completed, error)")
	list.Flags().StringVar(&q.DateFrom, "from", "", "uploaded on or after YYYY-MM-DD")
	list.Flags().StringVar(&q.DateTo, "to", "", "uploaded on or before YYYY-MM-DD")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show an invoice and its extracted fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.require(cmd.Context(), gate.ScreenInvoice); err != nil {
				return err
			}
			inv, err := a.client.GetInvoice(cmd.Context(), args[0])
			if err != nil {
				return a.explain(err)
			}

			tw := newTable(a.out, "FIELD", "VALUE")
			row(tw, "id", inv.ID)
			row(tw, "file", inv.FileName)
			row(tw, "uploaded", inv.UploadDate.Format("2006-01-02 15:04"))
			row(tw, "status", inv.Status)
			row(tw, "category", orDash(inv.Category))
			if r := inv.Result; r != nil {
				row(tw, "invoice number", r.DocumentID)
				row(tw, "issue date", r.IssueDate)
				row(tw, "vendor", r.Counterparty.Name)
				row(tw, "vendor tax id", orDash(r.Counterparty.TaxID))
				row(tw, "total", money(r.TotalAmount))
				row(tw, "tax", money(r.TaxAmount))
				row(tw, "confidence", fmt.Sprintf("%.0f%%", r.Confidence*100))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if inv.Result != nil && len(inv.Result.LineItems) > 0 {
				fmt.Fprintln(a.out)
				items := newTable(a.out, "DESCRIPTION", "QTY", "UNIT PRICE", "AMOUNT")
				for _, it := range inv.Result.LineItems {
					row(items, it.Description, it.Quantity, money(it.UnitPrice), money(it.Amount))
				}
				return items.Flush()
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.require(cmd.Context(), gate.ScreenInvoice); err != nil {
				return err
			}
			if err := a.client.DeleteInvoice(cmd.Context(), args[0]); err != nil {
				return a.explain(err)
			}
			fmt.Fprintln(a.out, "Deleted", args[0])
			return nil
		},
	})
	return cmd
}
