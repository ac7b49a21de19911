package model

// UAMUser is one user record, keyed by email.
type UAMUser struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Lanid   string `json:"lanid"`
	Slack   string `json:"slack"`
	Role    string `json:"role"`
	Manager string `json:"manager"`
}

// UAMGroup is one node in the org tree. Groups reference their children and
// members by id only; the arena in the UAM service owns the actual records.
type UAMGroup struct {
	Name        string   `json:"name"`
	Owner       string   `json:"owner"`
	Provider    string   `json:"provider"`
	Description string   `json:"description"`
	Roles       []string `json:"roles"`
	Users       []string `json:"users"`
	Children    []string `json:"children"`
}

// UAMTreeNode is the render form of the group hierarchy for clients.
type UAMTreeNode struct {
	Id       string         `json:"id"`
	Label    string         `json:"label"`
	Children []*UAMTreeNode `json:"children,omitempty"`
}
