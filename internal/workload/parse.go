package workload

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
)

// ParseJSONObject decodes one JSON object from benchmark output. When the whole
// buffer is not a single object, the last line holding one is used, so stray
// warnings printed before the report do not break parsing.
func ParseJSONObject(data []byte, source string) (map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &models.BenchmarkParseError{Source: source, Reason: "empty output"}
	}

	var obj map[string]any
	firstErr := json.Unmarshal(trimmed, &obj)
	if firstErr == nil {
		return obj, nil
	}

	lines := bytes.Split(trimmed, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		if err := json.Unmarshal(line, &obj); err == nil {
			return obj, nil
		}
	}
	return nil, &models.BenchmarkParseError{Source: source, Reason: "no JSON object found", Err: firstErr}
}

// LookupJSONPath walks nested objects by key and returns the number at the end
func LookupJSONPath(obj map[string]any, source string, path ...string) (float64, error) {
	key := strings.Join(path, ".")
	var cur any = obj
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return 0, &models.BenchmarkParseError{Source: source, Key: key, Reason: "not an object at " + p}
		}
		cur, ok = m[p]
		if !ok {
			return 0, &models.BenchmarkParseError{Source: source, Key: key, Reason: "missing"}
		}
	}
	v, err := toFloat(cur)
	if err != nil {
		return 0, &models.BenchmarkParseError{Source: source, Key: key, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &models.BenchmarkParseError{Source: source, Key: key, Reason: "not finite"}
	}
	return v, nil
}

// NumericFields keeps the top-level numeric fields of obj as metrics; other
// values such as the access pattern name are ignored.
func NumericFields(obj map[string]any) models.Metrics {
	out := make(models.Metrics, len(obj))
	for k, v := range obj {
		if f, ok := v.(float64); ok {
			out[k] = f
		}
	}
	return out
}

// ParseKeyValueReport parses "key:value" lines such as redis INFO output.
// Lines without a colon and "#" section headers are skipped.
func ParseKeyValueReport(data []byte) map[string]string {
	out := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}

// LookupFloat parses report[key] as a number
func LookupFloat(report map[string]string, source, key string) (float64, error) {
	raw, ok := report[key]
	if !ok {
		return 0, &models.BenchmarkParseError{Source: source, Key: key, Reason: "missing"}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &models.BenchmarkParseError{Source: source, Key: key, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &models.BenchmarkParseError{Source: source, Key: key, Reason: "not finite"}
	}
	return v, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("value %v is %T, not a number", v, v)
	}
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
