package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// printResult writes v as indented JSON or as YAML. YAML goes through JSON
// first so both formats use the same field names.
func printResult(w io.Writer, format string, v any) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode output")
	}

	switch format {
	case "", "json":
		_, err = w.Write(append(buf, '\n'))
		return err
	case "yaml", "yml":
		var plain any
		if err := json.Unmarshal(buf, &plain); err != nil {
			return eris.Wrap(err, "encode output")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(plain); err != nil {
			return eris.Wrap(err, "encode yaml output")
		}
		return enc.Close()
	default:
		return eris.Errorf("unknown output format %q (want json or yaml)", format)
	}
}
