package engine

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Operation names, used for command building, logging, and task events.
const (
	OpAnalyze   = "analyze"
	OpUpload    = "upload"
	OpQuery     = "query"
	OpVisualize = "visualize"
)

const (
	analyzeScript   = "analyze_repo.py"
	uploadScript    = "analyze_uploaded_repo.py"
	queryScript     = "query_engine.py"
	visualizeScript = "visualizer.py"
)

// Command is one fully built external task invocation. Args never pass
// through a shell. Required lists the top-level fields a success document
// must carry for this operation.
type Command struct {
	Op       string
	Bin      string
	Args     []string
	Required []string
}

// ScriptSet locates the engine scripts and builds the per-operation
// commands. Zero values fall back to python3 in the working directory.
type ScriptSet struct {
	Python     string
	Dir        string
	MaxCommits int
}

func (s ScriptSet) AnalyzeURL(repoURL string) Command {
	return Command{
		Op:  OpAnalyze,
		Bin: s.python(),
		Args: []string{
			s.script(analyzeScript),
			"--url", repoURL,
			"--max-commits", strconv.Itoa(s.maxCommits()),
		},
		Required: []string{"repo_id"},
	}
}

func (s ScriptSet) AnalyzeUpload(stagedPath string) Command {
	return Command{
		Op:       OpUpload,
		Bin:      s.python(),
		Args:     []string{s.script(uploadScript), "--file", stagedPath},
		Required: []string{"repo_id"},
	}
}

func (s ScriptSet) Query(query, repoID, searchType string) Command {
	args := []string{s.script(queryScript), "--query", query, "--repo-id", repoID}
	if st := strings.TrimSpace(searchType); st != "" {
		args = append(args, "--search-type", st)
	}
	return Command{
		Op:       OpQuery,
		Bin:      s.python(),
		Args:     args,
		Required: []string{"answer"},
	}
}

func (s ScriptSet) Visualize(kind, repoID string) Command {
	return Command{
		Op:       OpVisualize,
		Bin:      s.python(),
		Args:     []string{s.script(visualizeScript), "--type", kind, "--repo-id", repoID},
		Required: []string{"type"},
	}
}

func (s ScriptSet) python() string {
	if p := strings.TrimSpace(s.Python); p != "" {
		return p
	}
	return "python3"
}

func (s ScriptSet) script(name string) string {
	dir := strings.TrimSpace(s.Dir)
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

func (s ScriptSet) maxCommits() int {
	if s.MaxCommits > 0 {
		return s.MaxCommits
	}
	return 100
}
