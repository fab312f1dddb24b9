// Command hap-codegen generates typed wrappers for HomeKit services.
//
// Each service becomes a struct embedding *hap.Service with a constructor
// that adds the required characteristics, typed getters and setters for
// every characteristic, and Add methods for the optional ones.
//
// Usage:
//
//	hap-codegen -output services/services_gen.go [-package services] [-services Lightbulb,Switch]
//	hap-codegen -defs custom.yaml -output custom/custom_gen.go -package custom
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

func main() {
	defsPath := flag.String("defs", "", "YAML service definitions (default: the standard catalog)")
	serviceList := flag.String("services", "", "Comma-separated catalog services to generate (default: all)")
	pkg := flag.String("package", "services", "Package name of the generated file")
	output := flag.String("output", "", "Output path of the generated Go file")
	flag.Parse()

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Usage: hap-codegen -output <file> [-package <name>] [-defs <path> | -services <list>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(*defsPath, *serviceList, *pkg, *output); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(defsPath, serviceList, pkg, output string) error {
	var (
		defs *RawDefs
		err  error
	)
	if defsPath != "" {
		defs, err = LoadDefs(defsPath)
	} else {
		defs, err = CatalogDefs(splitList(serviceList))
	}
	if err != nil {
		return fmt.Errorf("loading definitions: %w", err)
	}

	specs, err := defs.Resolve()
	if err != nil {
		return err
	}

	code, err := Generate(pkg, specs)
	if err != nil {
		return fmt.Errorf("generating: %w", err)
	}
	if err := writeFormatted(output, code); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	fmt.Printf("  generated %s (%d services)\n", output, len(specs))
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
