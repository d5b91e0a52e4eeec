package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/raices-core/internal/application/handlers"
	"github.com/ersonp/raices-core/internal/domain/entities"
)

type exportFlags struct {
	format string
	output string
}

type exporter struct {
	format string
	output string
}

func newExportCmd() *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export people to file",
		Long:  "Exports the tree to JSON, CSV, or markdown. JSON and CSV exports can be imported again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "json", "Output format (json, csv, markdown)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runExport(cmd *cobra.Command, flags exportFlags) error {
	if !contains(validFormats, flags.format) {
		return fmt.Errorf("invalid format %q, valid formats: %v", flags.format, validFormats)
	}

	ctx := cmd.Context()

	return withTreeHandler(ctx, func(h *handlers.TreeHandler) error {
		people, err := h.People(ctx)
		if err != nil {
			return err
		}
		if len(people) == 0 {
			return fmt.Errorf("no people found to export")
		}

		e := &exporter{format: flags.format, output: flags.output}
		return e.export(people)
	})
}

func (e *exporter) export(people []entities.Person) (err error) {
	var w io.Writer
	var f *os.File

	if e.output != "" {
		f, err = os.OpenFile(e.output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("creating file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("closing file: %w", cerr)
			}
		}()
		w = f
	} else {
		w = os.Stdout
	}

	if err := e.formatPeople(w, people); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	if e.output != "" {
		fmt.Printf("Exported %d people to %s\n", len(people), e.output)
	}

	return nil
}

func (e *exporter) formatPeople(w io.Writer, people []entities.Person) error {
	switch e.format {
	case "json":
		return formatJSON(w, people)
	case "csv":
		return formatCSV(w, people)
	case "markdown":
		return formatMarkdown(w, people)
	default:
		return fmt.Errorf("unknown format: %s", e.format)
	}
}

func formatJSON(w io.Writer, people []entities.Person) error {
	if people == nil {
		people = []entities.Person{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(people)
}

func formatCSV(w io.Writer, people []entities.Person) error {
	writer := csv.NewWriter(w)

	header := []string{"id", "first_name", "last_name", "maiden_name", "gender", "is_living", "birth_year", "death_year", "bio", "relationships"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i := range people {
		p := &people[i]
		row := []string{
			p.ID,
			p.FirstName,
			p.LastName,
			p.MaidenName,
			string(p.Gender),
			strconv.FormatBool(p.IsLiving),
			csvYear(p.Birth),
			csvYear(p.Death),
			p.Bio,
			encodeRelationships(p.Relationships),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// csvYear returns the bare year of e, or "" when unknown.
func csvYear(e *entities.Event) string {
	if e == nil || e.Date == nil || e.Date.Year == 0 {
		return ""
	}
	return strconv.Itoa(e.Date.Year)
}

// encodeRelationships writes links as "CHILD:p2;SPOUSE:p3/FORMER".
func encodeRelationships(rels []entities.Relationship) string {
	parts := make([]string, 0, len(rels))
	for _, rel := range rels {
		entry := string(rel.Type) + ":" + rel.PersonID
		if rel.Type == entities.RelationSpouse && rel.Status != "" {
			entry += "/" + string(rel.Status)
		}
		parts = append(parts, entry)
	}
	return strings.Join(parts, ";")
}

func formatMarkdown(w io.Writer, people []entities.Person) error {
	if _, err := fmt.Fprintf(w, "# Family Tree\n\nTotal: %d people\n\n", len(people)); err != nil {
		return err
	}

	if _, err := fmt.Fprint(w, "| Name | Gender | Born | Died | Parents | Spouses | Children |\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, "|------|--------|------|------|---------|---------|----------|\n"); err != nil {
		return err
	}

	names := make(map[string]string, len(people))
	for i := range people {
		names[people[i].ID] = people[i].DisplayName()
	}

	for i := range people {
		p := &people[i]
		var parents, spouses, children []string
		for _, rel := range p.Relationships {
			name := names[rel.PersonID]
			if name == "" {
				name = rel.PersonID
			}
			switch {
			case rel.Type.IsParent():
				parents = append(parents, name)
			case rel.Type == entities.RelationSpouse:
				if rel.Status == entities.StatusFormer {
					name += " (former)"
				}
				spouses = append(spouses, name)
			case rel.Type == entities.RelationChild:
				children = append(children, name)
			}
		}

		if _, err := fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %s | %s |\n",
			escapeMarkdown(p.DisplayName()),
			p.Gender,
			p.BirthYear(),
			p.DeathYear(),
			escapeMarkdown(strings.Join(parents, ", ")),
			escapeMarkdown(strings.Join(spouses, ", ")),
			escapeMarkdown(strings.Join(children, ", ")),
		); err != nil {
			return err
		}
	}

	return nil
}

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
