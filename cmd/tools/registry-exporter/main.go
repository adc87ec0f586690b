package main

import (
	"flag"
	"fmt"
	"os"

	"mcp-frete-sistema/pkg/registry"
)

const defaultPath = "configs/tool-registry.json"

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	exportPath := exportCmd.String("path", defaultPath, "Path to write the registry file")
	version := exportCmd.String("version", "1.0.0", "Registry version")
	validatePath := validateCmd.String("path", defaultPath, "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		if err := export(*exportPath, *version); err != nil {
			fmt.Printf("Error exporting registry: %v\n", err)
			os.Exit(1)
		}

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validate(*validatePath); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}

	case "help":
		help()
	default:
		help()
		os.Exit(1)
	}
}

func export(path, version string) error {
	reg, err := registry.Build(version)
	if err != nil {
		return err
	}
	if err := registry.Validate(reg); err != nil {
		return err
	}
	if err := registry.SaveRegistry(reg, path); err != nil {
		return err
	}
	fmt.Printf("Exported %d tools to %s\n", len(reg.Tools), path)
	return nil
}

func validate(path string) error {
	stored, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := registry.Validate(stored); err != nil {
		return err
	}

	fresh, err := registry.Build(stored.Version)
	if err != nil {
		return err
	}
	if diffs := registry.Drift(stored, fresh); len(diffs) > 0 {
		for _, d := range diffs {
			fmt.Println("  " + d)
		}
		return fmt.Errorf("%d difference(s) against the current contract, run export to refresh", len(diffs))
	}

	fmt.Printf("Registry validation passed. Found %d tools.\n", len(stored.Tools))
	return nil
}

func help() {
	fmt.Println(`
Usage: registry-exporter <command> [flags]

Commands:
  export    Generate the tool registry from the contract schemas
  validate  Check a registry file against the current contract
  help      Show this help message

Examples:
  registry-exporter export -path configs/tool-registry.json -version 1.2.0
  registry-exporter validate -path configs/tool-registry.json`)
}
