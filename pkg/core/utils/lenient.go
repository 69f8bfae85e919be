package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// ErrUnparseable is returned when no lenient strategy yields a document that
// decodes into the target.
var ErrUnparseable = errors.New("unparseable json")

// RepairJSON fixes the usual hand-edited JSON damage: unquoted keys, single
// quotes, trailing commas, comments, unclosed containers and surrounding code
// fences.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("repair json: %w", err)
	}
	return repaired, nil
}

// HJSONToJSON parses Hjson (comments, unquoted strings, optional commas) and
// re-encodes it as standard JSON.
func HJSONToJSON(src string) (string, error) {
	var doc any
	if err := hjson.Unmarshal([]byte(src), &doc); err != nil {
		return "", fmt.Errorf("parse hjson: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode hjson: %w", err)
	}
	return string(out), nil
}

// DecodeLenient decodes input into v, trying strict JSON, then a repaired
// document, then Hjson. It returns the JSON text that finally decoded.
func DecodeLenient(input string, v any) (string, error) {
	input = StripFences(input)

	// 1. Strict
	if err := json.Unmarshal([]byte(input), v); err == nil {
		return input, nil
	}

	// 2. Repaired
	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), v); err == nil {
			return repaired, nil
		}
	}

	// 3. Hjson
	if converted, err := HJSONToJSON(input); err == nil {
		if err := json.Unmarshal([]byte(converted), v); err == nil {
			return converted, nil
		}
	}

	preview := input
	if len(preview) > 40 {
		preview = preview[:40] + "..."
	}
	return "", fmt.Errorf("%w: %q", ErrUnparseable, strings.TrimSpace(preview))
}
