// Package workspace locates and scaffolds a project's .orchestrator
// directory: persisted state, snapshots, per-phase threads, IPC
// mailboxes, issue write-ups, and pre-op backups.
package workspace

import (
	"errors"
	"os"
	"path/filepath"
)

// Dir is the on-disk directory name every orchestrator-managed project
// carries.
const Dir = ".orchestrator"

var ErrNoWorkspace = errors.New("no orchestrator workspace found (run 'orchestrator init' first)")
var ErrWorkspaceExists = errors.New("orchestrator workspace already exists (use --force to overwrite)")

// Find walks up from cwd looking for a .orchestrator/ directory.
func Find() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, Dir)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoWorkspace
		}
		dir = parent
	}
}

// Path returns the .orchestrator directory path for a workspace.
func Path(workspaceDir string) string { return filepath.Join(workspaceDir, Dir) }

// ConfigPath returns config.yaml's path.
func ConfigPath(workspaceDir string) string { return filepath.Join(Path(workspaceDir), "config.yaml") }

// PolytopePath returns polytope.toml's path.
func PolytopePath(workspaceDir string) string { return filepath.Join(Path(workspaceDir), "polytope.toml") }

// StateDir returns the directory statestore.Store persists state.json in.
func StateDir(workspaceDir string) string { return Path(workspaceDir) }

// SnapshotsDir returns the directory statestore.Store.Snapshot writes
// fatal snapshots to.
func SnapshotsDir(workspaceDir string) string { return filepath.Join(Path(workspaceDir), "snapshots") }

// ThreadsDir returns the directory Init creates for per-phase
// conversation threads. Threads are kept in memory; no code in this
// module writes thread files here.
func ThreadsDir(workspaceDir string) string { return filepath.Join(Path(workspaceDir), "threads") }

// MailboxesDir returns the directory ipc.Mailboxes reads/writes under.
func MailboxesDir(workspaceDir string) string { return filepath.Join(Path(workspaceDir), "mailboxes") }

// IssuesDir returns the directory Init creates for issue write-ups.
// create_issue_report and report_issue record issues in
// PipelineState.Issues and write no file here.
func IssuesDir(workspaceDir string) string { return filepath.Join(Path(workspaceDir), "issues") }

// BackupsDir returns the directory Init creates for pre-destructive-op
// backups. No code in this module writes backups here.
func BackupsDir(workspaceDir string) string { return filepath.Join(Path(workspaceDir), "backups") }

// ToolsDir returns the directory custom *.tool.yaml definitions are discovered from.
func ToolsDir(workspaceDir string) string { return filepath.Join(Path(workspaceDir), "tools") }
