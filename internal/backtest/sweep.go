package backtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// sweepEntrySchema 约束 sweep 文件中的每一项；未知字段直接拒绝，避免拼写错误被静默忽略。
const sweepEntrySchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "symbol":           {"type": "string", "minLength": 1},
    "timeframe":        {"type": "string", "minLength": 2},
    "start_ts":         {"type": "integer", "minimum": 0},
    "end_ts":           {"type": "integer", "minimum": 0},
    "warmup":           {"type": "integer", "minimum": 0},
    "support":          {"type": "number", "exclusiveMinimum": 0},
    "resistance":       {"type": "number", "exclusiveMinimum": 0},
    "mode":             {"enum": ["geometric", "arithmetic"]},
    "grid_count":       {"type": "integer", "minimum": 0, "maximum": 200},
    "initial_cash":     {"type": "number", "exclusiveMinimum": 0},
    "leverage":         {"type": "number", "minimum": 1, "maximum": 100},
    "maker_fee":        {"type": "number", "minimum": 0, "exclusiveMaximum": 1},
    "min_return":       {"type": "number", "minimum": 0},
    "volatility_k":     {"type": "number", "exclusiveMinimum": 0},
    "atr_period":       {"type": "integer", "minimum": 1},
    "max_drawdown_pct": {"type": "number", "minimum": 0, "maximum": 1},
    "max_position_usd": {"type": "number", "minimum": 0}
  }
}`

var sweepSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("sweep_entry.json", strings.NewReader(sweepEntrySchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("sweep_entry.json")
})

// LoadSweepFile 读取 YAML 列表，每一项先按 schema 校验，再覆盖到 base 之上，
// 因此 sweep 文件只需列出变化的字段。
func LoadSweepFile(path string, base RunConfig) ([]RunConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	runs, err := ParseSweep(raw, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return runs, nil
}

func ParseSweep(raw []byte, base RunConfig) ([]RunConfig, error) {
	schema, err := sweepSchema()
	if err != nil {
		return nil, fmt.Errorf("compile sweep schema: %w", err)
	}
	var nodes []yaml.Node
	if err := yaml.Unmarshal(raw, &nodes); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("sweep lists no runs")
	}
	runs := make([]RunConfig, 0, len(nodes))
	for i := range nodes {
		if err := validateSweepEntry(schema, &nodes[i]); err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}
		run := base
		if err := nodes[i].Decode(&run); err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// validateSweepEntry round-trips the node through JSON so the validator sees
// json.Number values instead of yaml-typed ints and floats.
func validateSweepEntry(schema *jsonschema.Schema, node *yaml.Node) error {
	var doc any
	if err := node.Decode(&doc); err != nil {
		return err
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return err
	}
	return schema.Validate(value)
}
