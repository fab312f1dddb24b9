package main

import (
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/tools/imports"
)

// Generate renders the wrappers for specs into package pkg.
func Generate(pkg string, specs []ServiceSpec) (string, error) {
	if !token.IsIdentifier(pkg) {
		return "", fmt.Errorf("package %q is not a valid Go identifier", pkg)
	}

	data := fileData{Package: pkg, Services: specs}
	seen := make(map[string]bool)
	for _, svc := range specs {
		for _, c := range slices.Concat(svc.Required, svc.Optional) {
			if c.Custom && !seen[c.Name] {
				seen[c.Name] = true
				data.Custom = append(data.Custom, c)
			}
		}
	}
	slices.SortFunc(data.Custom, func(a, b CharSpec) int { return strings.Compare(a.Name, b.Name) })

	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, "file", data); err != nil {
		return "", fmt.Errorf("template: %w", err)
	}
	return b.String(), nil
}

// writeFormatted formats Go source code with goimports and writes it to a file.
func writeFormatted(path string, code string) error {
	formatted, err := imports.Process(path, []byte(code), nil)
	if err != nil {
		// Write unformatted so you can debug the generator output
		_ = os.WriteFile(path+".broken", []byte(code), 0o644)
		return fmt.Errorf("goimports %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	return os.WriteFile(path, formatted, 0o644)
}
