// Package analysis drives one engine task per request: build the command,
// run it to a terminal outcome, and record the bookkeeping a successful
// analysis leaves behind (registry row, archived document, task events).
package analysis

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"timemachine/internal/engine"
	"timemachine/internal/gateway/repository/archive"
	"timemachine/internal/gateway/repository/registry"
	"timemachine/internal/gateway/service/taskevent"
	"timemachine/internal/util/jsonutil"
)

// TaskRunner runs one external task to a terminal outcome. Satisfied by
// *engine.Invoker; tests substitute a stub.
type TaskRunner interface {
	Run(ctx context.Context, cmd engine.Command) engine.Outcome
}

// AmbiguousRepoError reports that a repo id was omitted while more than one
// repository is registered, so no default can be chosen safely.
type AmbiguousRepoError struct {
	RepoIDs []string
}

func (e *AmbiguousRepoError) Error() string {
	return fmt.Sprintf("analysis: %d repositories analyzed, repoId is required (known: %s)",
		len(e.RepoIDs), strings.Join(e.RepoIDs, ", "))
}

// Service orchestrates engine tasks and owns the post-success bookkeeping.
// Safe for concurrent use; each call runs its own isolated task.
type Service struct {
	runner   TaskRunner
	scripts  engine.ScriptSet
	registry *registry.Store
	archive  archive.Store
	events   *taskevent.Hub
}

func New(runner TaskRunner, scripts engine.ScriptSet, reg *registry.Store, arch archive.Store, events *taskevent.Hub) *Service {
	return &Service{
		runner:   runner,
		scripts:  scripts,
		registry: reg,
		archive:  arch,
		events:   events,
	}
}

// AnalyzeURL runs the URL analysis task and registers the result on success.
func (s *Service) AnalyzeURL(ctx context.Context, repoURL string) engine.Outcome {
	out := s.run(ctx, s.scripts.AnalyzeURL(repoURL))
	if out.Kind == engine.KindSuccess {
		s.recordAnalysis(ctx, registry.SourceURL, repoURL, "", out.Payload)
	}
	return out
}

// AnalyzeUpload runs the uploaded-archive analysis task. stagedPath is the
// admitted file on disk; originalName is what the client called it.
func (s *Service) AnalyzeUpload(ctx context.Context, stagedPath, originalName string) engine.Outcome {
	out := s.run(ctx, s.scripts.AnalyzeUpload(stagedPath))
	if out.Kind == engine.KindSuccess {
		s.recordAnalysis(ctx, registry.SourceUpload, "", originalName, out.Payload)
	}
	return out
}

// Query answers a natural-language question against an analyzed repository.
// A non-nil error is a boundary failure (*AmbiguousRepoError or a registry
// read error) and means no task was started.
func (s *Service) Query(ctx context.Context, query, repoID, searchType string) (engine.Outcome, error) {
	resolved, short, err := s.resolveRepoID(repoID)
	if err != nil {
		return engine.Outcome{}, err
	}
	if short != nil {
		return *short, nil
	}
	return s.run(ctx, s.scripts.Query(query, resolved, searchType)), nil
}

// Visualize produces chart data for an analyzed repository. Error semantics
// match Query.
func (s *Service) Visualize(ctx context.Context, kind, repoID string) (engine.Outcome, error) {
	resolved, short, err := s.resolveRepoID(repoID)
	if err != nil {
		return engine.Outcome{}, err
	}
	if short != nil {
		return *short, nil
	}
	return s.run(ctx, s.scripts.Visualize(kind, resolved)), nil
}

// Repos lists the registered analyses, most recent first.
func (s *Service) Repos() ([]registry.Record, error) {
	return s.registry.List()
}

// AnalysisDocument returns the archived analysis JSON for repoID. Returns
// archive.ErrNotFound when no document exists.
func (s *Service) AnalysisDocument(ctx context.Context, repoID string) ([]byte, error) {
	return s.archive.Get(ctx, repoID)
}

// resolveRepoID applies the missing-id rule at the boundary: a supplied id
// is forwarded verbatim; with exactly one registered analysis that one is
// used; with none the engine is not even started and a domain error comes
// back directly; with several the caller must be explicit.
func (s *Service) resolveRepoID(repoID string) (string, *engine.Outcome, error) {
	repoID = strings.TrimSpace(repoID)
	if repoID != "" {
		return repoID, nil, nil
	}

	rows, err := s.registry.List()
	if err != nil {
		return "", nil, fmt.Errorf("analysis: list registered repositories: %w", err)
	}
	switch len(rows) {
	case 0:
		out := engine.Outcome{
			Kind:    engine.KindDomainError,
			Message: "No repository has been analyzed yet",
			Suggestions: []string{
				"Analyze a repository by URL first",
				"Or upload a repository ZIP archive",
			},
		}
		return "", &out, nil
	case 1:
		return rows[0].RepoID, nil, nil
	default:
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.RepoID)
		}
		sort.Strings(ids)
		return "", nil, &AmbiguousRepoError{RepoIDs: ids}
	}
}

// run executes one command with lifecycle logging and events around it.
func (s *Service) run(ctx context.Context, cmd engine.Command) engine.Outcome {
	taskID := uuid.NewString()
	start := time.Now()
	log.Printf("engine: task %s op=%s started", taskID, cmd.Op)
	s.events.Publish(taskevent.Event{
		TaskID: taskID,
		Kind:   cmd.Op,
		Phase:  taskevent.PhaseStarted,
		At:     start.UTC(),
	})

	out := s.runner.Run(ctx, cmd)

	elapsed := time.Since(start)
	log.Printf("engine: task %s op=%s finished outcome=%s elapsed=%s", taskID, cmd.Op, out.Kind, elapsed.Round(time.Millisecond))
	s.events.Publish(taskevent.Event{
		TaskID:    taskID,
		Kind:      cmd.Op,
		Phase:     taskevent.PhaseFinished,
		Outcome:   string(out.Kind),
		ElapsedMs: elapsed.Milliseconds(),
		At:        time.Now().UTC(),
	})
	return out
}

// recordAnalysis stores the registry row and archives the document after a
// successful analysis. Bookkeeping failures are logged, not surfaced: the
// analysis itself succeeded and the engine has already persisted its own
// copy of the data.
func (s *Service) recordAnalysis(ctx context.Context, source, repoURL, originalName string, payload map[string]any) {
	repoID := payloadString(payload, "repo_id")
	if repoID == "" {
		log.Printf("analysis: success payload carries no repo_id, skipping registration")
		return
	}
	if u := payloadString(payload, "repo_url"); u != "" {
		repoURL = u
	}
	if n := payloadString(payload, "original_filename"); n != "" {
		originalName = n
	}

	rec := registry.Record{
		RepoID:       repoID,
		Source:       source,
		RepoURL:      repoURL,
		OriginalName: originalName,
		AnalyzedAt:   time.Now().UTC(),
	}
	if info, ok := payload["structure_info"].(map[string]any); ok {
		rec.TotalCommits = payloadInt(info, "total_commits")
		rec.Contributors = payloadInt(info, "contributors_count")
	}
	if err := s.registry.Put(rec); err != nil {
		log.Printf("analysis: register %s: %v", repoID, err)
	}

	if s.archive == nil {
		return
	}
	doc, err := jsonutil.MarshalNoEscapeIndent(payload, "", "  ")
	if err != nil {
		log.Printf("analysis: marshal document %s: %v", repoID, err)
		return
	}
	if err := s.archive.Put(ctx, repoID, doc); err != nil {
		log.Printf("analysis: archive %s: %v", repoID, err)
	}
}

func payloadString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func payloadInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
