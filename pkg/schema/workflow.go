package schema

// WorkflowGraph is the JSON-serializable workflow document format.
// The frontend editor produces this; one document per workflow name
// under the artifacts directory.
type WorkflowGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is a single browser action in a workflow graph.
type Node struct {
	ID   string            `json:"id"`
	Type NodeType          `json:"type"`
	Data map[string]string `json:"data,omitempty"` // action-specific parameters
}

// Edge declares that Target runs after Source.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// NodeType enumerates the kinds of browser actions.
type NodeType string

const (
	NodeTypeNavigate NodeType = "navigate"
	NodeTypeClick    NodeType = "click"
	NodeTypeInput    NodeType = "input"
	NodeTypeParse    NodeType = "parse"
	NodeTypeStore    NodeType = "store"
)

// Default values applied when a node omits an optional parameter.
const (
	DefaultVariableName = "parsed_value"
	DefaultStoreFile    = "output.txt"
	DefaultAttribute    = "text"
)

// NavigateParams are the parameters of a navigate node.
type NavigateParams struct {
	URL string
}

// ClickParams are the parameters of a click node.
type ClickParams struct {
	Selector string
}

// InputParams are the parameters of an input node.
type InputParams struct {
	Selector string
	Text     string
}

// ParseParams are the parameters of a parse node. Attribute "text"
// extracts element text; any other value extracts that attribute.
type ParseParams struct {
	Selector     string
	Attribute    string
	VariableName string
}

// StoreParams are the parameters of a store node.
type StoreParams struct {
	Filename     string
	VariableName string
}

// NavigateParams decodes the node's data as navigate parameters.
// Missing keys degrade to empty strings; the emitter substitutes
// them verbatim rather than failing the build.
func (n Node) NavigateParams() NavigateParams {
	return NavigateParams{URL: n.Data["url"]}
}

// ClickParams decodes the node's data as click parameters.
func (n Node) ClickParams() ClickParams {
	return ClickParams{Selector: n.Data["selector"]}
}

// InputParams decodes the node's data as input parameters.
func (n Node) InputParams() InputParams {
	return InputParams{
		Selector: n.Data["selector"],
		Text:     n.Data["inputText"],
	}
}

// ParseParams decodes the node's data as parse parameters, applying defaults.
func (n Node) ParseParams() ParseParams {
	p := ParseParams{
		Selector:     n.Data["selector"],
		Attribute:    n.Data["attribute"],
		VariableName: n.Data["variableName"],
	}
	if p.Attribute == "" {
		p.Attribute = DefaultAttribute
	}
	if p.VariableName == "" {
		p.VariableName = DefaultVariableName
	}
	return p
}

// StoreParams decodes the node's data as store parameters, applying defaults.
func (n Node) StoreParams() StoreParams {
	p := StoreParams{
		Filename:     n.Data["filename"],
		VariableName: n.Data["variableName"],
	}
	if p.Filename == "" {
		p.Filename = DefaultStoreFile
	}
	if p.VariableName == "" {
		p.VariableName = DefaultVariableName
	}
	return p
}
