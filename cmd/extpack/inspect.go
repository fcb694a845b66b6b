// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v3"

	"github.com/invowk/extpack/pkg/rewrite"
)

type (
	inspectRequest struct {
		Path   string
		Format string
	}

	// inspection is the document printed by `extpack inspect --format`.
	inspection struct {
		Archive    string              `toml:"archive" yaml:"archive"`
		Digest     string              `toml:"digest" yaml:"digest"`
		Definition *rewrite.Definition `toml:"definition" yaml:"definition"`
	}
)

// newInspectCommand creates the `extpack inspect` command.
func newInspectCommand(app *App) *cobra.Command {
	var req inspectRequest

	cmd := &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Show the extension definition of an archive",
		Long: `Show the first extension.def found in an archive, looking at the
archive root, its top-level directories and the nested jars whose names
match organization_prefixes. The BLAKE3 digest of the archive is printed
alongside.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Path = args[0]
			return app.runInspect(cmd.Context(), req)
		},
	}

	cmd.Flags().StringVar(&req.Format, "format", "text", "output format: text, toml or yaml")

	return cmd
}

func (a *App) runInspect(ctx context.Context, req inspectRequest) error {
	s, err := a.session(ctx)
	if err != nil {
		return a.fail(err)
	}

	f, err := os.Open(req.Path)
	if err != nil {
		return a.fail(err)
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return a.fail(err)
	}
	src := io.NewSectionReader(f, 0, info.Size())

	def, err := rewrite.ReadExtensionDefinition(src, s.cfg.RewriteOptions(s.log))
	if err != nil {
		return a.fail(err)
	}
	digest, err := rewrite.Digest(io.NewSectionReader(f, 0, info.Size()))
	if err != nil {
		return a.fail(err)
	}

	doc := inspection{Archive: req.Path, Digest: digest, Definition: def}
	switch req.Format {
	case "text", "":
		printInspection(a.stdout, doc)
		return nil
	case "toml":
		data, err := toml.Marshal(doc)
		if err != nil {
			return a.fail(err)
		}
		_, err = a.stdout.Write(data)
		return err
	case "yaml", "yml":
		data, err := yaml.Marshal(doc)
		if err != nil {
			return a.fail(err)
		}
		_, err = a.stdout.Write(data)
		return err
	default:
		return a.fail(fmt.Errorf("unsupported output format %q (use text, toml or yaml)", req.Format))
	}
}

func printInspection(w io.Writer, doc inspection) {
	def := doc.Definition
	fmt.Fprintln(w, TitleStyle.Render(doc.Archive))
	fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("entry"), def.Entry)
	if def.Name != "" {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("name"), def.Name)
	}
	if def.Description != "" {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("description"), def.Description)
	}
	if def.Version != "" {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("version"), def.Version)
	}
	if len(def.Depends) > 0 {
		fmt.Fprintf(w, "%s:\n", KeyStyle.Render("depends"))
		for _, d := range def.Depends {
			fmt.Fprintf(w, "  - %s\n", d)
		}
	}
	if len(def.Properties) > 0 {
		fmt.Fprintf(w, "%s:\n", KeyStyle.Render("properties"))
		keys := maps.Keys(def.Properties)
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s = %s\n", k, def.Properties[k])
		}
	}
	fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("blake3"), SubtitleStyle.Render(doc.Digest))
}
