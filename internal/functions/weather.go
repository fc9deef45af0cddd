package functions

import (
	"context"
	"strings"

	"github.com/m2tx/live_bridge/internal/agent"
	"github.com/pkg/errors"
)

func CreateWeatherFunctionDeclaration() *agent.FunctionDeclaration {
	return &agent.FunctionDeclaration{
		Name:        "get_weather",
		Description: "Returns the current weather for a city.",
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "The city, e.g. Lisbon, PT",
				},
			},
			"required": []string{"location"},
		},
		ResponseSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "The city the report is for",
				},
				"temperature": map[string]any{
					"type":        "string",
					"description": "Current temperature, e.g. 22°C",
				},
				"condition": map[string]any{
					"type":        "string",
					"description": "Sky condition, e.g. Sunny",
				},
			},
		},
		FunctionCall: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			location, err := stringArg(args, "location")
			if err != nil {
				return nil, err
			}

			return map[string]any{
				"location":    location,
				"temperature": "22°C",
				"condition":   "Sunny",
			}, nil
		},
	}
}

// stringArg returns a required, non-blank string argument.
func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", errors.Errorf("%s argument is required", name)
	}
	return v, nil
}
