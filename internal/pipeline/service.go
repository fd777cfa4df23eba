package pipeline

import (
	"context"
	"log/slog"

	"github.com/kalambet/uigen/internal/storage"
)

// VersionAppender persists a successful generation.
type VersionAppender interface {
	AppendVersion(ctx context.Context, v storage.NewVersion) (storage.Version, error)
}

// FailureRecorder receives every error the service returns. Implementations
// must not fail or block the request.
type FailureRecorder interface {
	Record(err error)
}

// Generation is a Result together with the ID of the version it was saved as.
type Generation struct {
	Result
	VersionID string
}

// Service runs the generator and saves what it produces.
type Service struct {
	gen      *Generator
	store    VersionAppender
	failures FailureRecorder
}

// NewService wires a generator to a version store. failures may be nil.
func NewService(gen *Generator, store VersionAppender, failures FailureRecorder) *Service {
	return &Service{gen: gen, store: store, failures: failures}
}

// Run generates markup for userPrompt and saves it as a new version. Nothing
// is saved unless all three stages succeed. Returned errors are a
// *StageError or a *PersistenceError.
func (s *Service) Run(ctx context.Context, userPrompt, currentCode string) (Generation, error) {
	res, err := s.gen.Generate(ctx, userPrompt, currentCode)
	if err != nil {
		return Generation{}, s.fail(err)
	}

	v, err := s.store.AppendVersion(ctx, storage.NewVersion{
		Prompt:      userPrompt,
		Plan:        res.Plan,
		Code:        res.Code,
		Explanation: res.Explanation,
	})
	if err != nil {
		return Generation{}, s.fail(&PersistenceError{Err: err})
	}

	slog.Info("version saved", "version_id", v.ID)
	return Generation{Result: res, VersionID: v.ID}, nil
}

func (s *Service) fail(err error) error {
	slog.Error("generation failed", "stage", FailedStage(err), "error", err)
	if s.failures != nil {
		s.failures.Record(err)
	}
	return err
}
