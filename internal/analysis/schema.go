package analysis

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/pavelanni/careerquest/internal/model"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// schemaCache caches compiled report schemas by variant.
var schemaCache sync.Map // map[model.ReportVariant]*jsonschema.Schema

// validateReport checks report against the schema of its variant. The
// feedback variant has no schema.
func validateReport(variant model.ReportVariant, report model.Report) error {
	if variant == model.VariantFeedback {
		return nil
	}
	compiled, err := compiledSchema(variant)
	if err != nil {
		return err
	}

	// Round-trip through JSON so the validator sees plain decoded values.
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	if err := compiled.Validate(parsed); err != nil {
		return fmt.Errorf("%s report: %w", variant, err)
	}
	return nil
}

func compiledSchema(variant model.ReportVariant) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(variant); ok {
		return cached.(*jsonschema.Schema), nil
	}

	file := "schemas/" + string(variant) + ".json"
	data, err := schemaFS.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", file, err)
	}
	var def any
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", file, err)
	}

	c := jsonschema.NewCompiler()
	schemaURL := fmt.Sprintf("schema://%s.json", variant)
	if err := c.AddResource(schemaURL, def); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(variant, compiled)
	return compiled, nil
}
