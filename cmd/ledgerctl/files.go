package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ndewijer/investment-ledger/internal/api/request"
	"github.com/ndewijer/investment-ledger/internal/model"
)

// AssetFile is one asset with its ledger and, optionally, its valuation series.
// It is the input of the portfolio command.
type AssetFile struct {
	Class     string                      `yaml:"class"`
	Code      string                      `yaml:"code"`
	Name      string                      `yaml:"name"`
	Ledger    request.PutLedgerRequest    `yaml:"ledger"`
	Valuation request.PutValuationRequest `yaml:"valuation"`
}

// Asset returns the asset described by the file. The code doubles as the ID.
func (f AssetFile) Asset() model.Asset {
	return model.Asset{ID: f.Class + ":" + f.Code, Class: f.Class, Code: f.Code, Name: f.Name}
}

// decodeFile reads a JSON or YAML file into v. JSON is parsed as YAML, which accepts it.
func decodeFile(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func writeOutput(w io.Writer, v any) error {
	if outputFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
