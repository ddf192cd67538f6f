package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/saulfrancisco-ruizacevedo/go-neomapper"
)

// parseProps turns k=v pairs into properties. Values that read as an
// integer, a float or a boolean keep that type; anything else is a string.
// Keys listed in unset are added with a nil value.
func parseProps(pairs, unset []string) (neomapper.Properties, error) {
	props := neomapper.Properties{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q, expected key=value", pair)
		}
		props[key] = parseValue(raw)
	}
	for _, key := range unset {
		if _, dup := props[key]; dup {
			return nil, fmt.Errorf("property %q is both set and unset", key)
		}
		props[key] = nil
	}
	return props, nil
}

func parseValue(raw string) any {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}

func parseIdentity(arg string) (neomapper.Identity, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", arg, err)
	}
	return id, nil
}
