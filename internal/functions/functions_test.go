package functions

import (
	"context"
	"testing"

	"github.com/m2tx/live_bridge/internal/agent"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeather(t *testing.T) {
	fn := CreateWeatherFunctionDeclaration().FunctionCall

	got, err := fn(context.Background(), map[string]any{"location": "Lisbon"})
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", got["location"])

	_, err = fn(context.Background(), map[string]any{"location": 3})
	assert.Error(t, err)
	_, err = fn(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestCollaborators(t *testing.T) {
	fn := CreateCollaboratorsFunctionDeclaration().FunctionCall

	tests := []struct {
		companyID string
		want      int
	}{
		{companyID: "1", want: 2},
		{companyID: "2", want: 3},
		{companyID: "42", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.companyID, func(t *testing.T) {
			got, err := fn(context.Background(), map[string]any{"company_id": tt.companyID})
			require.NoError(t, err)
			assert.Len(t, got["collaborators"], tt.want)
		})
	}
}

func TestCompanies(t *testing.T) {
	got, err := CreateCompanyFunctionDeclaration().FunctionCall(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, got["companies"], len(directory))
}

func TestDocsSearch(t *testing.T) {
	e := agent.NewEmbedder(zerolog.Nop())
	e.Add("handbook.md", "Remote work is allowed three days a week.")

	fn := CreateDocsSearchFunctionDeclaration(e).FunctionCall
	got, err := fn(context.Background(), map[string]any{"query": "remote work"})
	require.NoError(t, err)

	results, ok := got["results"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, results, 1)
	assert.Equal(t, "handbook.md", results[0]["filename"])

	_, err = fn(context.Background(), map[string]any{"query": "  "})
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	a := agent.New(nil, agent.WithLogger(zerolog.Nop()))
	require.NoError(t, Register(a, nil))
	assert.Len(t, a.Tools(), 3)

	b := agent.New(nil, agent.WithLogger(zerolog.Nop()))
	require.NoError(t, Register(b, agent.NewEmbedder(zerolog.Nop())))

	var names []string
	for _, tool := range b.Tools() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"get_collaborators", "get_companies", "get_weather", "search_docs"}, names)
}
