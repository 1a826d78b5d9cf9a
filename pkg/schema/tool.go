package schema

// Limits on tool definitions, enforced by request validation.
const (
	// MaxToolNameLength is the maximum length of a tool name.
	MaxToolNameLength = 64

	// MaxToolDescriptionLength is the maximum length of a tool description.
	MaxToolDescriptionLength = 500
)

// Tool is a universal tool definition. Parameters is a JSON Schema object;
// adapters translate it into each upstream's named schema (plain
// input_schema, wrapped under "function", or a functionDeclarations list).
type Tool struct {
	// Name is the tool name, unique within a request.
	Name string `json:"name"`

	// Description explains what the tool does.
	Description string `json:"description"`

	// Parameters is a JSON Schema object describing the tool arguments.
	Parameters map[string]any `json:"parameters"`

	// Strict requests strict schema adherence on upstreams that support it.
	Strict bool `json:"strict,omitempty"`
}

// ToolCall is a tool invocation produced by the model. Within one assistant
// message, ids are unique.
type ToolCall struct {
	// ID is the server-generated identifier for this call.
	ID string `json:"id"`

	// Name is the tool being called.
	Name string `json:"name"`

	// Arguments is the decoded JSON argument object.
	Arguments map[string]any `json:"arguments"`
}
