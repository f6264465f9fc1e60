package main

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"nconsole/wsconsole/pkg/console"
	"nconsole/wsconsole/pkg/proto"
)

// parseValue maps command-line text onto a loggable value: JSON objects and
// arrays stay structured, numbers and true/false keep their type, anything
// else is text.
func parseValue(s string) console.Arg {
	t := strings.TrimSpace(s)
	if (strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[")) && json.Valid([]byte(t)) {
		return proto.RawJSON([]byte(t))
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return console.Number(f)
	}
	switch t {
	case "true":
		return console.Bool(true)
	case "false":
		return console.Bool(false)
	}
	return console.Text(s)
}

func parseArgs(in []string) []console.Arg {
	out := make([]console.Arg, 0, len(in))
	for _, s := range in {
		out = append(out, parseValue(s))
	}
	return out
}
