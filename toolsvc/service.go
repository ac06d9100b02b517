// Package toolsvc implements the remote half of the tool socket: a registry
// of named tools with JSON Schema argument validation and the
// list_tools / invoke_tool action dispatch. Process-level glue (or a test
// harness) frames its responses into WebSocket traffic.
package toolsvc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xeipuuv/gojsonschema"

	"github.com/relaymesh/a2a-go-sdk/wire"
)

// ToolHandler executes one tool call. Arguments have already been validated
// against the tool's input schema.
type ToolHandler func(args map[string]any) wire.Body

// ToolDefinition describes a registered tool. InputSchema is a JSON Schema
// document for the arguments object.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     ToolHandler
}

// Service owns the tool registry and implements the request protocol.
type Service struct {
	tools map[string]ToolDefinition
	order []string
}

// NewService returns a service with the given tools registered.
func NewService(defs ...ToolDefinition) (*Service, error) {
	s := &Service{tools: make(map[string]ToolDefinition)}
	for _, def := range defs {
		if err := s.Register(def); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Register adds a tool. Names are unique within a Service.
func (s *Service) Register(def ToolDefinition) error {
	if _, exists := s.tools[def.Name]; exists {
		return fmt.Errorf("toolsvc: tool %q already registered", def.Name)
	}
	s.tools[def.Name] = def
	s.order = append(s.order, def.Name)
	return nil
}

// ListTools describes every registered tool in registration order.
func (s *Service) ListTools() (int, wire.Body) {
	infos := make([]wire.ToolInfo, 0, len(s.order))
	for _, name := range s.order {
		def := s.tools[name]
		infos = append(infos, wire.ToolInfo{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		})
	}
	return http.StatusOK, wire.Body{Status: wire.StatusSuccess, Message: "SUCCESS", Data: infos}
}

// Invoke validates args against the tool's input schema and runs it.
func (s *Service) Invoke(name string, args map[string]any) (int, wire.Body) {
	def, ok := s.tools[name]
	if !ok {
		return http.StatusNotFound, wire.Body{
			Status:  wire.StatusFailure,
			Message: fmt.Sprintf("Tool '%s' is not registered.", name),
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(def.InputSchema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		slog.Error("tool schema validation unavailable", "tool", name, "error", err)
		return http.StatusInternalServerError, wire.Body{
			Status:  wire.StatusUnknown,
			Message: fmt.Sprintf("Tool '%s' schema could not be evaluated: %v", name, err),
		}
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		slog.Warn("tool invoked with invalid arguments", "tool", name, "issues", issues)
		return http.StatusUnprocessableEntity, wire.Body{
			Status:  wire.StatusInvalidRequest,
			Message: fmt.Sprintf("Invalid arguments for tool '%s'.", name),
			Data:    issues,
		}
	}

	return http.StatusOK, def.Handler(args)
}

// HandleRequest parses one raw request payload and dispatches it by action.
// The returned status code and body are what the transport wraps into a
// {status_code, body} envelope.
func (s *Service) HandleRequest(raw []byte) (int, wire.Body) {
	var req wire.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		slog.Debug("tool socket received invalid JSON", "error", err)
		return http.StatusBadRequest, wire.Body{
			Status:  wire.StatusInvalidJSON,
			Message: "Request body is not valid JSON.",
		}
	}

	switch req.Action {
	case wire.ActionListTools:
		return s.ListTools()

	case wire.ActionInvokeTool:
		if req.Name == "" {
			return http.StatusBadRequest, wire.Body{
				Status:  wire.StatusInvalidRequest,
				Message: "Invalid request payload: missing tool name.",
				Data:    map[string]any{"issue": "missing_tool"},
			}
		}
		return s.Invoke(req.Name, req.Arguments)

	default:
		return http.StatusBadRequest, wire.Body{
			Status:  wire.StatusInvalidRequest,
			Message: fmt.Sprintf("Invalid request payload: unsupported action '%s'.", req.Action),
			Data:    map[string]any{"action": req.Action},
		}
	}
}
