// Package wire defines the JSON payload types exchanged with the tool service
// over the WebSocket transport. Both the service and the client import these —
// single source of truth.
package wire

// Actions a client may request over the tool socket.
const (
	ActionListTools  = "list_tools"
	ActionInvokeTool = "invoke_tool"
)

// Service-level status codes carried in Body.Status.
const (
	StatusSuccess          = "00"
	StatusFailure          = "01"
	StatusProductNotFound  = "02"
	StatusQuantityExceeded = "03"
	StatusInvalidJSON      = "97"
	StatusInvalidRequest   = "98"
	StatusUnknown          = "99"
)

// Request is the client→service message.
type Request struct {
	Action    string         `json:"action"`
	Name      string         `json:"name,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Envelope wraps every service→client response.
type Envelope struct {
	StatusCode int  `json:"status_code"`
	Body       Body `json:"body"`
}

// Body is the service-level response payload inside an Envelope.
type Body struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// ToolInfo describes one invocable tool.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}
