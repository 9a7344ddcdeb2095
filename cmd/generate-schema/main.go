package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/dittostore/pkg/config"
	"gopkg.in/yaml.v3"
)

func main() {
	// Generate JSON schema from Config struct
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true, // Inline all definitions for simplicity
	}

	schema := reflector.Reflect(&config.Config{})

	// Add schema metadata
	schema.Title = "DittoStore Configuration"
	schema.Description = "Configuration schema for the DittoStore server"
	schema.Version = "1.0.0"

	// Marshal to pretty JSON
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling schema: %v\n", err)
		os.Exit(1)
	}

	schemaFile := "config.schema.json"
	if len(os.Args) > 1 {
		schemaFile = os.Args[1]
	}

	if err := os.WriteFile(schemaFile, schemaJSON, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("JSON schema written to %s\n", schemaFile)

	// Emit a sample configuration with every default applied, as a
	// starting point for deployments
	sampleYAML, err := yaml.Marshal(config.GetDefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling sample config: %v\n", err)
		os.Exit(1)
	}

	sampleFile := "config.sample.yaml"
	if len(os.Args) > 2 {
		sampleFile = os.Args[2]
	}

	if err := os.WriteFile(sampleFile, sampleYAML, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing sample config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Sample configuration written to %s\n", sampleFile)
}
