package functions

import (
	"context"

	"github.com/m2tx/live_bridge/internal/agent"
)

type company struct {
	ID            string
	Name          string
	Collaborators []collaborator
}

type collaborator struct {
	ID   string
	Name string
}

// directory is the demo data behind get_companies and get_collaborators.
var directory = []company{
	{
		ID:   "1",
		Name: "Company A",
		Collaborators: []collaborator{
			{ID: "1", Name: "Ana Silva"},
			{ID: "2", Name: "Bruno Costa"},
		},
	},
	{
		ID:   "2",
		Name: "Company B",
		Collaborators: []collaborator{
			{ID: "3", Name: "Carla Souza"},
			{ID: "4", Name: "Diego Lima"},
			{ID: "5", Name: "Elisa Rocha"},
		},
	},
}

func idNameSchema(what string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id": map[string]any{
				"type":        "string",
				"description": "The " + what + " ID",
			},
			"name": map[string]any{
				"type":        "string",
				"description": "The " + what + " name",
			},
		},
	}
}

func CreateCompanyFunctionDeclaration() *agent.FunctionDeclaration {
	return &agent.FunctionDeclaration{
		Name:        "get_companies",
		Description: "Lists the companies the user has access to.",
		ResponseSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"companies": map[string]any{
					"type":        "array",
					"description": "The companies",
					"items":       idNameSchema("company"),
				},
			},
		},
		FunctionCall: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			companies := make([]map[string]any, 0, len(directory))
			for _, c := range directory {
				companies = append(companies, map[string]any{"id": c.ID, "name": c.Name})
			}
			return map[string]any{"companies": companies}, nil
		},
	}
}

func CreateCollaboratorsFunctionDeclaration() *agent.FunctionDeclaration {
	return &agent.FunctionDeclaration{
		Name:        "get_collaborators",
		Description: "Lists the collaborators of a company.",
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"company_id": map[string]any{
					"type":        "string",
					"description": "The company ID",
				},
			},
			"required": []string{"company_id"},
		},
		ResponseSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"collaborators": map[string]any{
					"type":        "array",
					"description": "The company's collaborators",
					"items":       idNameSchema("collaborator"),
				},
			},
		},
		FunctionCall: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			companyID, err := stringArg(args, "company_id")
			if err != nil {
				return nil, err
			}

			collaborators := []map[string]any{}
			for _, c := range directory {
				if c.ID != companyID {
					continue
				}
				for _, p := range c.Collaborators {
					collaborators = append(collaborators, map[string]any{"id": p.ID, "name": p.Name})
				}
			}

			return map[string]any{"collaborators": collaborators}, nil
		},
	}
}
