/*
Copyright (C) 2025-2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package expr

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// slugify makes a filesystem-safe, lowercase slug from a chapter title.
func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		out = "chapter"
	}
	return out
}

// WriteDocumentation generates Markdown docs for the operation catalog:
// index.md with links to chapters and one <chapter>.md per DeclareTitle
// group.
func WriteDocumentation(folder string) error {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %q: %w", folder, err)
	}

	type chapter struct {
		title string
		slug  string
		fns   []*Declaration
	}

	var chapters []*chapter
	var current *chapter
	for _, t := range declarationTitles {
		if len(t) > 0 && t[0] == '#' {
			title := strings.TrimSpace(t[1:])
			current = &chapter{title: title, slug: slugify(title)}
			chapters = append(chapters, current)
			continue
		}
		def, ok := declarations[t]
		if !ok || current == nil {
			continue
		}
		current.fns = append(current.fns, def)
	}

	index, err := os.Create(filepath.Join(folder, "index.md"))
	if err != nil {
		return fmt.Errorf("failed to create index.md: %w", err)
	}
	defer index.Close()
	fmt.Fprintln(index, "# Operation Catalog")
	fmt.Fprintln(index)

	for _, ch := range chapters {
		if len(ch.fns) == 0 {
			continue
		}
		fmt.Fprintf(index, "- [%s](%s.md)\n", ch.title, ch.slug)
		f, err := os.Create(filepath.Join(folder, ch.slug+".md"))
		if err != nil {
			return fmt.Errorf("failed to create %s.md: %w", ch.slug, err)
		}
		fmt.Fprintf(f, "# %s\n", ch.title)
		for _, def := range ch.fns {
			var params []string
			for _, p := range def.Params {
				params = append(params, p.Name)
			}
			fmt.Fprintf(f, "\n## %s(%s)\n\n%s\n\n", def.Name, strings.Join(params, ", "), def.Desc)
			for _, p := range def.Params {
				fmt.Fprintf(f, "- `%s` (%s): %s\n", p.Name, p.Type, p.Desc)
			}
			fmt.Fprintf(f, "\nReturns: %s\n", def.Returns)
		}
		f.Close()
	}
	return nil
}
