package tools

import (
	"strings"

	"github.com/m2tx/live_bridge/internal/model"
	"google.golang.org/genai"
)

// ToProtocolTool converts a tool descriptor into a Gemini function declaration.
// Gemini rejects '/' in function names, so it is replaced by "__".
func ToProtocolTool(d model.ToolDescriptor) *genai.FunctionDeclaration {
	fd := &genai.FunctionDeclaration{
		Name:        strings.ReplaceAll(d.Name, "/", "__"),
		Description: d.Description,
	}

	if s := cleanSchema(d.InputSchema); s != nil {
		fd.ParametersJsonSchema = s
	}

	if s := cleanSchema(d.OutputSchema); s != nil {
		fd.ResponseJsonSchema = s
	}

	return fd
}

// ToProtocolTools converts a list of descriptors, returning nil for none.
func ToProtocolTools(ds []model.ToolDescriptor) []*genai.FunctionDeclaration {
	if len(ds) == 0 {
		return nil
	}

	functions := make([]*genai.FunctionDeclaration, 0, len(ds))
	for _, d := range ds {
		functions = append(functions, ToProtocolTool(d))
	}

	return functions
}

// cleanSchema drops the keys Gemini refuses at the top level of a schema.
func cleanSchema(s map[string]any) map[string]any {
	if len(s) == 0 {
		return nil
	}

	out := make(map[string]any, len(s))
	for k, v := range s {
		if k == "$schema" {
			continue
		}
		out[k] = v
	}

	return out
}
