package drafting

import "context"

// Backend turns a prompt into raw drafted text. Implementations must report
// failures as *BackendError.
type Backend interface {
	Draft(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Func adapts a plain function to Backend.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Draft(ctx context.Context, prompt string) (string, error) {
	out, err := f(ctx, prompt)
	if err != nil {
		return "", Classify(err)
	}
	return out, nil
}

func (f Func) Name() string { return "func" }

const systemPrompt = "You are a pricing strategist producing YAML."
