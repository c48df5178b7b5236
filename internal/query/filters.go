package query

// Filters scopes a search to specific agents, workspaces, sources, or a
// time range (spec.md §4.G's "field scopes via filters").
type Filters struct {
	Agent     string
	Workspace string
	Source    string
	TimeFrom  int64 // ms epoch, 0 means unbounded
	TimeTo    int64 // ms epoch, 0 means unbounded
}

func (f Filters) empty() bool {
	return f.Agent == "" && f.Workspace == "" && f.Source == "" && f.TimeFrom == 0 && f.TimeTo == 0
}
