// Package utils holds small helpers shared by the aegis-cli commands.
package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
)

// Parameter describes one interactively-prompted run input: an attack
// missile's launch platform, target point, or similar scenario override.
type Parameter struct {
	Name        string
	Description string
	Type        string // integer, float, string, boolean, duration
	Default     interface{}
	Required    bool
	Min         interface{}
	Max         interface{}
	Options     []string
}

// PromptForParameters prompts for each parameter in order, honoring
// AEGIS_SKIP_PROMPTS=true for CI/automation runs where AEGIS_<NAME>
// environment variables (or defaults) are used instead of a TTY prompt.
func PromptForParameters(params []Parameter) (map[string]interface{}, error) {
	result := make(map[string]interface{})

	for _, param := range params {
		value, err := promptForParameter(param)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", param.Name, err)
		}
		result[param.Name] = value
	}

	return result, nil
}

func promptForParameter(param Parameter) (interface{}, error) {
	envKey := "AEGIS_" + strings.ToUpper(param.Name)

	if os.Getenv("AEGIS_SKIP_PROMPTS") == "true" {
		if envValue := os.Getenv(envKey); envValue != "" {
			return parseEnvValue(envValue, param)
		}
		if param.Default != nil {
			return param.Default, nil
		}
		if param.Required {
			return nil, fmt.Errorf("required parameter %s not provided and no default available", param.Name)
		}
		return nil, nil
	}

	if envValue := os.Getenv(envKey); envValue != "" {
		if parsed, err := parseEnvValue(envValue, param); err == nil {
			param.Default = parsed
		}
	}

	switch param.Type {
	case "integer":
		return promptInteger(param)
	case "float":
		return promptFloat(param)
	case "string":
		return promptString(param)
	case "boolean":
		return promptBoolean(param)
	case "duration":
		return promptDuration(param)
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", param.Type)
	}
}

func parseEnvValue(value string, param Parameter) (interface{}, error) {
	switch param.Type {
	case "integer":
		return strconv.Atoi(value)
	case "float":
		return strconv.ParseFloat(value, 64)
	case "string":
		return value, nil
	case "boolean":
		return strconv.ParseBool(value)
	case "duration":
		return time.ParseDuration(value)
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", param.Type)
	}
}

func promptInteger(param Parameter) (int, error) {
	defaultStr := ""
	if param.Default != nil {
		switch v := param.Default.(type) {
		case int:
			defaultStr = strconv.Itoa(v)
		case float64:
			defaultStr = strconv.Itoa(int(v))
		}
	}

	prompt := &survey.Input{Message: param.Description, Default: defaultStr}

	var result string
	if err := survey.AskOne(prompt, &result, survey.WithValidator(survey.Required)); err != nil {
		return 0, err
	}

	value, err := strconv.Atoi(result)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}

	if param.Min != nil && value < toInt(param.Min) {
		return 0, fmt.Errorf("value must be at least %d", toInt(param.Min))
	}
	if param.Max != nil && value > toInt(param.Max) {
		return 0, fmt.Errorf("value must be at most %d", toInt(param.Max))
	}

	return value, nil
}

func promptFloat(param Parameter) (float64, error) {
	defaultStr := ""
	if param.Default != nil {
		defaultStr = fmt.Sprintf("%v", param.Default)
	}

	prompt := &survey.Input{Message: param.Description, Default: defaultStr}

	var result string
	if err := survey.AskOne(prompt, &result, survey.WithValidator(survey.Required)); err != nil {
		return 0, err
	}

	value, err := strconv.ParseFloat(result, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %w", err)
	}

	if param.Min != nil && value < toFloat64(param.Min) {
		return 0, fmt.Errorf("value must be at least %g", toFloat64(param.Min))
	}
	if param.Max != nil && value > toFloat64(param.Max) {
		return 0, fmt.Errorf("value must be at most %g", toFloat64(param.Max))
	}

	return value, nil
}

func promptString(param Parameter) (string, error) {
	defaultStr := ""
	if param.Default != nil {
		defaultStr = fmt.Sprintf("%v", param.Default)
	}

	if len(param.Options) > 0 {
		prompt := &survey.Select{Message: param.Description, Options: param.Options, Default: defaultStr}
		var result string
		if err := survey.AskOne(prompt, &result); err != nil {
			return "", err
		}
		return result, nil
	}

	prompt := &survey.Input{Message: param.Description, Default: defaultStr}

	var validators []survey.Validator
	if param.Required {
		validators = append(validators, survey.Required)
	}

	var result string
	if err := survey.AskOne(prompt, &result, survey.WithValidator(survey.ComposeValidators(validators...))); err != nil {
		return "", err
	}

	return result, nil
}

func promptBoolean(param Parameter) (bool, error) {
	defaultBool := false
	if param.Default != nil {
		switch v := param.Default.(type) {
		case bool:
			defaultBool = v
		case string:
			defaultBool = v == "true" || v == "yes" || v == "1"
		}
	}

	prompt := &survey.Confirm{Message: param.Description, Default: defaultBool}

	var result bool
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}

	return result, nil
}

func promptDuration(param Parameter) (time.Duration, error) {
	defaultStr := ""
	if param.Default != nil {
		defaultStr = fmt.Sprintf("%v", param.Default)
	}

	prompt := &survey.Input{
		Message: param.Description + " (e.g., 5m, 1h30m, 30s)",
		Default: defaultStr,
	}

	var result string
	if err := survey.AskOne(prompt, &result, survey.WithValidator(func(val interface{}) error {
		str, _ := val.(string)
		if _, err := time.ParseDuration(str); err != nil {
			return fmt.Errorf("invalid duration format (use formats like 5m, 1h30m, 30s)")
		}
		return nil
	})); err != nil {
		return 0, err
	}

	return time.ParseDuration(result)
}

func toInt(v interface{}) int {
	switch val := v.(type) {
	case int:
		return val
	case float64:
		return int(val)
	case string:
		i, _ := strconv.Atoi(val)
		return i
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}
