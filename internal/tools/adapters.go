package tools

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// InvokableTool exposes one catalog tool through the Eino tool interface.
type InvokableTool struct {
	d    *Dispatcher
	spec ToolSpec
}

// Tools returns one InvokableTool per catalog entry, in catalog order.
func (d *Dispatcher) Tools() []*InvokableTool {
	out := make([]*InvokableTool, len(d.specs))
	for i, s := range d.specs {
		out[i] = &InvokableTool{d: d, spec: s}
	}
	return out
}

// Spec returns the catalog entry backing the tool.
func (t *InvokableTool) Spec() ToolSpec { return t.spec }

// Info returns the tool info for Eino registration.
func (t *InvokableTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return toolSpecToToolInfo(&t.spec), nil
}

// InvokableRun dispatches the call and returns its JSON result.
func (t *InvokableTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	res, err := t.d.dispatch(ctx, t.spec.Name, argumentsInJSON)
	if err != nil {
		return "", err
	}
	return res.JSON()
}

var _ tool.InvokableTool = (*InvokableTool)(nil)
