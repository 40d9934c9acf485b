package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"agroconsole/internal/adapters/exports"
	"agroconsole/internal/core"
)

type exportFlags struct {
	formats []string
	company int64
	parent  string
	search  string
	active  bool
	sort    string
	dir     string
	module  string
	outDir  string
}

func newExportCmd(a *app) *cobra.Command {
	var f exportFlags
	cmd := &cobra.Command{
		Use:   "export [catalog]",
		Short: "Render catalog reports to files",
		Long: `Renders one catalog, or every catalog of a module with --module, as PDF,
CSV or JSON reports. Files are written to --out using the report file names.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var catalog string
			if len(args) == 1 {
				catalog = args[0]
			}
			if (catalog == "") == (f.module == "") {
				return fmt.Errorf("give either a catalog or --module")
			}
			formats := make([]exports.Format, 0, len(f.formats))
			for _, raw := range f.formats {
				format, err := exports.ParseFormat(raw)
				if err != nil {
					return err
				}
				formats = append(formats, format)
			}

			ctx := cmd.Context()
			svc, err := a.openService(ctx, true)
			if err != nil {
				return err
			}
			defer svc.Close()
			renderer := exports.NewRenderer(svc)

			var files []exports.Rendered
			if f.module != "" {
				files, err = renderer.ExportModule(ctx, f.module, formats)
				if err != nil {
					return err
				}
			} else {
				dir, err := core.ParseSortDirection(f.dir)
				if err != nil {
					return err
				}
				q := core.ListQuery{
					Catalog: catalog, CompanyID: f.company, ParentID: f.parent,
					Search: f.search, ActiveOnly: f.active,
					Sort: core.SortSpec{Column: f.sort, Direction: dir},
				}
				for _, format := range formats {
					file, err := renderer.RenderNow(ctx, q, format)
					if err != nil {
						return err
					}
					files = append(files, file)
				}
			}
			return writeRendered(cmd, f.outDir, files)
		},
	}
	flags := cmd.Flags()
	flags.StringSliceVar(&f.formats, "format", []string{string(exports.FormatPDF)}, "report formats (pdf, csv, json)")
	flags.Int64Var(&f.company, "company", 0, "company filter")
	flags.StringVar(&f.parent, "parent", "", "parent record filter")
	flags.StringVar(&f.search, "q", "", "search text")
	flags.BoolVar(&f.active, "active", false, "only vigente records")
	flags.StringVar(&f.sort, "sort", "", "sort column")
	flags.StringVar(&f.dir, "dir", "", "sort direction (asc, desc)")
	flags.StringVar(&f.module, "module", "", "export every catalog of a module")
	flags.StringVar(&f.outDir, "out", ".", "output directory")
	return cmd
}

func writeRendered(cmd *cobra.Command, outDir string, files []exports.Rendered) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, file := range files {
		path := filepath.Join(outDir, file.FileName)
		if err := os.WriteFile(path, file.Payload, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		cmd.Printf("%s\t%d rows\t%d bytes\n", path, file.Rows, len(file.Payload))
	}
	return nil
}
