package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"agroconsole/internal/adapters/exports"
	"agroconsole/internal/core"
)

func newModulesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List installed modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.openService(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer svc.Close()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODULE\tVERSION\tCATALOGS\tSETTINGS")
			for _, m := range svc.Modules() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Name, m.Version, strings.Join(m.Catalogs, ","), strings.Join(m.Settings, ","))
			}
			return tw.Flush()
		},
	}
}

func newCatalogsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalogs",
		Short: "Inspect maintainer catalogs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.openService(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer svc.Close()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATALOG\tMODULE\tTITLE")
			for _, s := range svc.Catalogs() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Key, s.Module, s.Title)
			}
			return tw.Flush()
		},
	}

	var (
		company int64
		search  string
		active  bool
		sortCol string
		dir     string
	)
	list := &cobra.Command{
		Use:   "list <catalog>",
		Short: "Print the records of a catalog as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			direction, err := core.ParseSortDirection(dir)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			svc, err := a.openService(ctx, true)
			if err != nil {
				return err
			}
			defer svc.Close()
			schema, err := svc.Catalog(args[0])
			if err != nil {
				return err
			}
			records, err := svc.ListRecords(ctx, core.ListQuery{
				Catalog: schema.Key, CompanyID: company, Search: search, ActiveOnly: active,
				Sort: core.SortSpec{Column: sortCol, Direction: direction},
			})
			if err != nil {
				return err
			}
			report := exports.BuildReport(schema, records, exports.ReportOptions{})
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, strings.Join(report.Columns, "\t"))
			for _, row := range report.Rows {
				fmt.Fprintln(tw, strings.Join(row, "\t"))
			}
			return tw.Flush()
		},
	}
	flags := list.Flags()
	flags.Int64Var(&company, "company", 0, "company filter")
	flags.StringVar(&search, "q", "", "search text")
	flags.BoolVar(&active, "active", false, "only vigente records")
	flags.StringVar(&sortCol, "sort", "", "sort column")
	flags.StringVar(&dir, "dir", "", "sort direction (asc, desc)")
	cmd.AddCommand(list)
	return cmd
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load module seed data into the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := a.openService(ctx, false)
			if err != nil {
				return err
			}
			defer svc.Close()
			n, err := svc.LoadSeeds(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("loaded %d seed records into %s storage\n", n, a.cfg.Storage.Driver)
			return nil
		},
	}
}
