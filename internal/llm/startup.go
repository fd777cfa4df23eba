package llm

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"
)

const modelCheckTimeout = 10 * time.Second

// ModelLister lists the model IDs a provider offers.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// CheckModel reports on w whether the provider is reachable and offers
// model. It never blocks startup: the returned error is informational and
// callers are expected to log it and carry on.
func CheckModel(ctx context.Context, l ModelLister, model string, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	ids, err := l.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("provider not reachable: %w", err)
	}
	if !slices.Contains(ids, model) {
		return fmt.Errorf("model %s is not offered by the provider (%d models available)", model, len(ids))
	}
	fmt.Fprintf(w, "model %s: ready\n", model)
	return nil
}
