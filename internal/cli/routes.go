package cli

import (
	"io"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vitalvas/routeprobe/internal/manifest"
	"github.com/vitalvas/routeprobe/openapi"
	"github.com/vitalvas/routeprobe/pipeline"
)

func newRoutesCommand(a *app) *cobra.Command {
	var (
		file  string
		title string
	)

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the route table a manifest assembles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := manifest.Load(file)
			if err != nil {
				return err
			}

			table, err := m.Build(cmd.Context(), pipeline.WithLogger(a.log))
			if err != nil {
				return err
			}

			switch a.cfg.Routes.Format {
			case "openapi":
				return writeOpenAPI(cmd.OutOrStdout(), table, title)
			default:
				writeTable(cmd.OutOrStdout(), table)
				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "manifest file")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().StringVar(&title, "title", "routeprobe", "document title for --format openapi")

	cmd.Flags().String("format", "table", "output format (table, openapi)")
	a.bind("routes.format", cmd.Flags().Lookup("format"))

	return cmd
}

func writeTable(w io.Writer, table *pipeline.Table) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Stage", "Methods", "Template", "Handler", "Name", "Constraints"})
	tw.SetAutoWrapText(false)
	tw.SetAutoFormatHeaders(false)
	tw.SetBorder(false)

	for _, e := range table.Entries() {
		tw.Append([]string{
			strconv.Itoa(e.Stage),
			methods(e.Methods),
			template(e),
			e.Handler.String(),
			e.Name,
			constraints(e.Constraints),
		})
	}
	tw.Render()
}

func writeOpenAPI(w io.Writer, table *pipeline.Table, title string) error {
	doc := openapi.Export(table, openapi3.Info{Title: title, Version: Version})
	data, err := openapi.MarshalYAML(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func methods(m []string) string {
	if len(m) == 0 {
		return "*"
	}
	return strings.Join(m, ",")
}

func template(e pipeline.Entry) string {
	t := e.Host + e.Template
	if e.Prefix {
		t += "*"
	}
	return t
}

func constraints(cs []pipeline.Constraint) string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return strings.Join(out, " ")
}
