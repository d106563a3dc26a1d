package app

import "errors"

var errMCPDisabled = errors.New("mcp http server is not enabled")

// PendingMCPActions lists destructive agent actions waiting for a decision.
func (a *App) PendingMCPActions() []string {
	if a.mcp == nil {
		return nil
	}
	return a.mcp.Pending()
}

// ApproveMCPAction lets a waiting agent action run.
func (a *App) ApproveMCPAction(id string) error {
	if a.mcp == nil {
		return errMCPDisabled
	}
	a.mcp.Approve(id)
	return nil
}

func (a *App) RejectMCPAction(id string) error {
	if a.mcp == nil {
		return errMCPDisabled
	}
	a.mcp.Reject(id)
	return nil
}
