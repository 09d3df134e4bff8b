package voxtypes

import "context"

// Response is what a command runner hands back to the dialogue layer.
type Response struct {
	Text string         `json:"text"`
	Data map[string]any `json:"data,omitempty"`
}

// Runner executes a recognized command. Parameters lists every parameter name the
// runner accepts; a command's grammar may only declare names from this list.
type Runner interface {
	Parameters() []string
	Run(ctx context.Context, params *Params) (Response, error)
}
