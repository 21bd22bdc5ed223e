package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// printResult writes v as JSON when --json or --jq is set, otherwise calls pretty.
func printResult(c *cli.Context, v interface{}, pretty func()) error {
	if filter := c.String("jq"); filter != "" {
		return outputJQ(os.Stdout, v, filter)
	}
	if c.Bool("json") {
		return outputJSON(v)
	}
	pretty()
	return nil
}

// outputJSON is a helper to output JSON
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputJQ runs filter over the JSON form of v and writes each result on its own line.
func outputJQ(w io.Writer, v interface{}, filter string) error {
	query, err := gojq.Parse(filter)
	if err != nil {
		return fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}

	// gojq only walks plain JSON values
	input, err := toJSONValue(v)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	iter := code.Run(input)
	for {
		out, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := out.(error); isErr {
			return fmt.Errorf("jq filter error: %w", err)
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
}

func toJSONValue(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal output: %w", err)
	}
	return out, nil
}
