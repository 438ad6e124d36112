package main

import (
	"fmt"
	"strings"

	"github.com/AnTengye/invoicedesk/gate"
	"github.com/AnTengye/invoicedesk/model"
	"github.com/spf13/cobra"
)

func (a *cli) categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage accounting categories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.require(cmd.Context(), gate.ScreenCategories); err != nil {
				return err
			}
			categories, err := a.client.Categories(cmd.Context())
			if err != nil {
				return a.explain(err)
			}

			tw := newTable(a.out, "ID", "CODE", "NAME", "ACTIVE", "KEYWORDS")
			for _, c := range categories {
				row(tw, c.ID, c.Code, c.Name, c.IsActive, orDash(strings.Join(c.Keywords, ",")))
			}
			return tw.Flush()
		},
	})

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.require(cmd.Context(), gate.ScreenCategories); err != nil {
				return err
			}
			in, err := categoryInput(cmd)
			if err != nil {
				return err
			}
			c, err := a.client.CreateCategory(cmd.Context(), in)
			if err != nil {
				return a.explain(err)
			}
			fmt.Fprintf(a.out, "Created %s %s (%s)\n", c.Code, c.Name, c.ID)
			return nil
		},
	}
	categoryFlags(create)
	cmd.AddCommand(create)

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a category's fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.require(cmd.Context(), gate.ScreenCategories); err != nil {
				return err
			}
			in, err := categoryInput(cmd)
			if err != nil {
				return err
			}
			c, err := a.client.UpdateCategory(cmd.Context(), args[0], in)
			if err != nil {
				return a.explain(err)
			}
			fmt.Fprintf(a.out, "Updated %s %s\n", c.Code, c.Name)
			return nil
		},
	}
	categoryFlags(update)
	cmd.AddCommand(update)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.require(cmd.Context(), gate.ScreenCategories); err != nil {
				return err
			}
			if err := a.client.DeleteCategory(cmd.Context(), args[0]); err != nil {
				return a.explain(err)
			}
			fmt.Fprintln(a.out, "Deleted", args[0])
			return nil
		},
	})
	return cmd
}

func categoryFlags(cmd *cobra.Command) {
	cmd.Flags().String("code", "", "account code (required)")
	cmd.Flags().String("name", "", "display name (required)")
	cmd.Flags().String("description", "", "description")
	cmd.Flags().String("parent", "", "parent category id")
	cmd.Flags().Bool("active", true, "use the category for classification")
	cmd.Flags().StringSlice("keywords", nil, "comma separated classification keywords")
}

func categoryInput(cmd *cobra.Command) (model.CategoryInput, error) {
	flags := cmd.Flags()
	code, _ := flags.GetString("code")
	name, _ := flags.GetString("name")
	if strings.TrimSpace(code) == "" || strings.TrimSpace(name) == "" {
		return model.CategoryInput{}, fmt.Errorf("--code and --name are required")
	}
	description, _ := flags.GetString("description")
	parent, _ := flags.GetString("parent")
	keywords, _ := flags.GetStringSlice("keywords")

	in := model.CategoryInput{
		Code:        code,
		Name:        name,
		Description: description,
		ParentID:    parent,
		Keywords:    keywords,
	}
	// Leave activity untouched on update unless asked
	if flags.Changed("active") || cmd.Name() == "create" {
		active, _ := flags.GetBool("active")
		in.IsActive = &active
	}
	return in, nil
}
