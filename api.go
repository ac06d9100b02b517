package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/relaymesh/a2a-go-sdk/wire"
)

// ListTools fetches the registry of invocable tools from the service.
func (c *ToolClient) ListTools(ctx context.Context) ([]wire.ToolInfo, error) {
	data, err := c.callChecked(ctx, wire.Request{Action: wire.ActionListTools})
	if err != nil {
		return nil, err
	}

	// data arrives as decoded JSON; round-trip into the typed slice.
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: tool list: %v", ErrMalformedEnvelope, err)
	}
	var tools []wire.ToolInfo
	if err := json.Unmarshal(encoded, &tools); err != nil {
		return nil, fmt.Errorf("%w: tool list: %v", ErrMalformedEnvelope, err)
	}
	return tools, nil
}

// InvokeTool invokes one named tool and returns the data payload of a
// successful response body.
func (c *ToolClient) InvokeTool(ctx context.Context, name string, args map[string]any) (any, error) {
	return c.callChecked(ctx, wire.Request{
		Action:    wire.ActionInvokeTool,
		Name:      name,
		Arguments: args,
	})
}

// callChecked performs one exchange and unwraps the {status, message, data}
// body, mapping non-success statuses to errors.
func (c *ToolClient) callChecked(ctx context.Context, req wire.Request) (any, error) {
	statusCode, body, err := c.Call(ctx, req)
	if err != nil {
		return nil, err
	}

	status, _ := body["status"].(string)
	if statusCode != http.StatusOK || status != wire.StatusSuccess {
		message, _ := body["message"].(string)
		return nil, fmt.Errorf("a2a: tool service returned %d status %q: %s", statusCode, status, message)
	}
	return body["data"], nil
}
