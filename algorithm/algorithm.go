// Package algorithm is the small processing framework the umep tools run in:
// algorithms declare typed parameters, receive their values and a feedback
// sink, and return the paths of what they wrote.
package algorithm

import (
	"context"
)

// Algorithm is a registered processing tool.
type Algorithm interface {
	// Name identifies the algorithm on the command line.
	Name() string
	DisplayName() string
	Group() string
	GroupID() string
	ShortHelp() string
	HelpURL() string
	Params() []Param
	Run(ctx context.Context, v Values, fb Feedback) (Outputs, error)
}

// Outputs maps output parameter names to the files written. An output that
// was not produced maps to "".
type Outputs map[string]string
