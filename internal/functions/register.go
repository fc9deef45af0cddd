package functions

import (
	"github.com/m2tx/live_bridge/internal/agent"
	"github.com/pkg/errors"
)

// Register adds every built-in function to a. The docs search is only
// registered when e is not nil.
func Register(a *agent.Agent, e *agent.Embedder) error {
	decls := []*agent.FunctionDeclaration{
		CreateWeatherFunctionDeclaration(),
		CreateCompanyFunctionDeclaration(),
		CreateCollaboratorsFunctionDeclaration(),
	}
	if e != nil {
		decls = append(decls, CreateDocsSearchFunctionDeclaration(e))
	}

	for _, fd := range decls {
		if err := a.AddFunctionCall(fd); err != nil {
			return errors.Wrapf(err, "register %s", fd.Name)
		}
	}
	return nil
}
