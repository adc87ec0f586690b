package registry

// ToolRegistry describes every MCP tool the server exposes, with the JSON schemas of its
// input and output payloads.
type ToolRegistry struct {
	Version     string           `json:"version"`
	LastUpdated string           `json:"lastUpdated"`
	Tools       []ToolDefinition `json:"tools"`
}

type ToolDefinition struct {
	ID           string                 `json:"id"`
	DisplayName  string                 `json:"displayName"`
	Description  string                 `json:"description"`
	Category     string                 `json:"category"`
	Version      string                 `json:"version"`
	TaskType     string                 `json:"taskType"`
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema"`
	ErrorCodes   []string               `json:"errorCodes"`
	Timeout      string                 `json:"timeout"`
	Retries      int                    `json:"retries"`
	Tags         []string               `json:"tags"`
}

// Tool returns the definition with the given task type.
func (r *ToolRegistry) Tool(taskType string) (*ToolDefinition, bool) {
	for i := range r.Tools {
		if r.Tools[i].TaskType == taskType {
			return &r.Tools[i], true
		}
	}
	return nil, false
}
