package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// render prints v as JSON or YAML when asked, and otherwise hands a table
// writer to fill.
func render(v any, fill func(table.Writer)) error {
	switch viper.GetString("output") {
	case "json":
		return printJSON(v)
	case "yaml", "yml":
		return printYAML(v)
	case "table", "":
		if fill == nil {
			return printYAML(v)
		}
		tw := newTable("")
		fill(tw)
		tw.Render()
		return nil
	default:
		return fmt.Errorf("unknown output format %q", viper.GetString("output"))
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printYAML goes through JSON first so field names match the API's tags.
func printYAML(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(generic)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}
