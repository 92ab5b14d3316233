// Package validate performs structural validation of inbound recipe payloads.
// It mirrors the invariants the database triggers enforce authoritatively;
// its only job is to fail fast with field-level messages. Nothing here
// consults the database.
package validate

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxTitleLen      = 300
	maxNameLen       = 200
	minStepLen       = 10
	maxStepLen       = 500
	uuidStringLength = 36
)

// CreateRecipe checks an untyped create-recipe payload and returns a map from
// field path to violation message. An empty map means the payload is accepted.
// Wrong types are reported as field errors, never as panics.
func CreateRecipe(payload map[string]interface{}) map[string]string {
	errs := map[string]string{}

	checkRequiredString(errs, payload, "title", maxTitleLen)
	checkRequiredString(errs, payload, "raw_text", 0)

	data, ok := payload["recipe_data"].(map[string]interface{})
	if !ok {
		errs["recipe_data"] = "must be an object"
		return errs
	}

	checkRequiredString(errs, data, "recipe_data.title", 0)
	validateIngredients(errs, data["ingredients"])
	validateSteps(errs, data["steps"])

	return errs
}

// checkRequiredString looks the field up by the last path segment but reports
// violations under the full path.
func checkRequiredString(errs map[string]string, obj map[string]interface{}, path string, maxLen int) {
	key := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			key = path[i+1:]
			break
		}
	}

	raw, present := obj[key]
	if !present {
		errs[path] = "is required"
		return
	}
	s, ok := raw.(string)
	if !ok {
		errs[path] = "must be a string"
		return
	}
	if s == "" {
		errs[path] = "must not be empty"
		return
	}
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		errs[path] = fmt.Sprintf("must be at most %d characters", maxLen)
	}
}

func validateIngredients(errs map[string]string, raw interface{}) {
	list, ok := raw.([]interface{})
	if !ok {
		errs["recipe_data.ingredients"] = "must be a non-empty list"
		return
	}
	if len(list) == 0 {
		errs["recipe_data.ingredients"] = "must contain at least one ingredient"
		return
	}

	for i, item := range list {
		path := fmt.Sprintf("recipe_data.ingredients[%d]", i)
		entry, ok := item.(map[string]interface{})
		if !ok {
			errs[path] = "must be an object"
			continue
		}

		name, ok := entry["name"].(string)
		switch {
		case entry["name"] == nil:
			errs[path+".name"] = "is required"
		case !ok:
			errs[path+".name"] = "must be a string"
		case name == "":
			errs[path+".name"] = "must not be empty"
		case utf8.RuneCountInString(name) > maxNameLen:
			errs[path+".name"] = fmt.Sprintf("must be at most %d characters", maxNameLen)
		}

		qty, ok := toNumber(entry["quantity"])
		switch {
		case entry["quantity"] == nil:
			errs[path+".quantity"] = "is required"
		case !ok:
			errs[path+".quantity"] = "must be a number"
		case qty <= 0:
			errs[path+".quantity"] = "must be greater than 0"
		}

		if rawUnit, present := entry["unit_id"]; present && rawUnit != nil {
			unitID, ok := rawUnit.(string)
			if !ok {
				errs[path+".unit_id"] = "must be a string"
			} else if len(unitID) != uuidStringLength {
				errs[path+".unit_id"] = fmt.Sprintf("must be a %d-character UUID", uuidStringLength)
			} else if _, err := uuid.Parse(unitID); err != nil {
				errs[path+".unit_id"] = "must be a well-formed UUID"
			}
		}

		if rawUnitText, present := entry["unit_text"]; present && rawUnitText != nil {
			if _, ok := rawUnitText.(string); !ok {
				errs[path+".unit_text"] = "must be a string"
			}
		}

		if rawNorm, present := entry["normalized_name"]; present && rawNorm != nil {
			if _, ok := rawNorm.(string); !ok {
				errs[path+".normalized_name"] = "must be a string"
			}
		}
	}
}

func validateSteps(errs map[string]string, raw interface{}) {
	list, ok := raw.([]interface{})
	if !ok {
		errs["recipe_data.steps"] = "must be a list of strings"
		return
	}

	for i, item := range list {
		path := fmt.Sprintf("recipe_data.steps[%d]", i)
		step, ok := item.(string)
		if !ok {
			errs[path] = "must be a string"
			continue
		}
		n := utf8.RuneCountInString(step)
		if n < minStepLen {
			errs[path] = fmt.Sprintf("must be at least %d characters", minStepLen)
		} else if n > maxStepLen {
			errs[path] = fmt.Sprintf("must be at most %d characters", maxStepLen)
		}
	}
}

// toNumber accepts the numeric shapes a decoded JSON payload can carry.
func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
