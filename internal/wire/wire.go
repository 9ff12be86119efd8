// Package wire provides dependency injection for the sluice application.
// It creates singleton services with lazy initialization.
package wire

import (
	"errors"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"

	cliadapter "github.com/example/sluice/internal/adapters/cli"
	"github.com/example/sluice/internal/adapters/filesystem"
	"github.com/example/sluice/internal/adapters/sqlite"
	"github.com/example/sluice/internal/adapters/validator"
	"github.com/example/sluice/internal/app"
	"github.com/example/sluice/internal/config"
	"github.com/example/sluice/internal/db"
	"github.com/example/sluice/internal/git"
	"github.com/example/sluice/internal/ports/primary"
	"github.com/example/sluice/internal/reflock"
	"github.com/example/sluice/internal/registry"
	"github.com/example/sluice/internal/tmux"
)

var (
	repoRoot       string
	cfg            *config.Config
	streamService  primary.StreamService
	mergeService   primary.MergeService
	journalService primary.JournalService
	once           sync.Once
)

// RepoRoot returns the repository the CLI operates on.
func RepoRoot() string {
	once.Do(initServices)
	return repoRoot
}

// Config returns the effective configuration. A repository without a
// config file runs on defaults.
func Config() *config.Config {
	once.Do(initServices)
	return cfg
}

// StreamService returns the singleton StreamService instance.
func StreamService() primary.StreamService {
	once.Do(initServices)
	return streamService
}

// MergeService returns the singleton MergeService instance.
func MergeService() primary.MergeService {
	once.Do(initServices)
	return mergeService
}

// JournalService returns the singleton JournalService instance.
func JournalService() primary.JournalService {
	once.Do(initServices)
	return journalService
}

// TmuxAdapter returns a fresh tmux adapter. Attach is the only consumer
// and a missing tmux binary should fail that command alone.
func TmuxAdapter() (*tmux.GotmuxAdapter, error) {
	return tmux.NewGotmuxAdapter()
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	repoRoot = findRepoRoot()

	loaded, err := config.LoadConfig(repoRoot)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("failed to load config: %v", err)
		}
		loaded = config.DefaultConfig()
	}
	cfg = loaded

	// Journal database lives next to the registry in .sluice/
	database, err := db.Open(db.JournalPath(repoRoot, config.DirName))
	if err != nil {
		log.Fatalf("failed to initialize journal database: %v", err)
	}

	// Secondary adapters
	journalRepo := sqlite.NewJournalRepository(database)
	store := registry.NewStore(repoRoot, cfg, nil)
	gitRunner := git.NewRunner()
	inspector := git.NewInspector()
	mergeLock := reflock.New(repoRoot, cfg, gitRunner, nil)
	workspace := filesystem.NewWorkspaceAdapter(repoRoot, cfg.WorktreeBase(repoRoot))
	validators := validator.NewExecRunner(cfg.Validators, nil)

	// Services (primary ports implementation)
	streamService = app.NewStreamService(store, workspace, journalRepo, cfg, nil)
	mergeService = app.NewMergeService(store, gitRunner, inspector, mergeLock, workspace, validators, journalRepo, cfg, repoRoot, nil)
	journalService = app.NewJournalService(journalRepo)
}

// StreamAdapter returns a new StreamAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func StreamAdapter() *cliadapter.StreamAdapter {
	return StreamAdapterWithOutput(os.Stdout)
}

// StreamAdapterWithOutput returns a new StreamAdapter writing to the given output.
// This variant allows testing or alternate output destinations.
func StreamAdapterWithOutput(out io.Writer) *cliadapter.StreamAdapter {
	once.Do(initServices)
	return cliadapter.NewStreamAdapter(streamService, out)
}

// MergeAdapter returns a new MergeAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func MergeAdapter() *cliadapter.MergeAdapter {
	return MergeAdapterWithOutput(os.Stdout)
}

// MergeAdapterWithOutput returns a new MergeAdapter writing to the given output.
// This variant allows testing or alternate output destinations.
func MergeAdapterWithOutput(out io.Writer) *cliadapter.MergeAdapter {
	once.Do(initServices)
	return cliadapter.NewMergeAdapter(mergeService, out)
}

// JournalAdapter returns a new JournalAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func JournalAdapter() *cliadapter.JournalAdapter {
	return JournalAdapterWithOutput(os.Stdout)
}

// JournalAdapterWithOutput returns a new JournalAdapter writing to the given output.
// This variant allows testing or alternate output destinations.
func JournalAdapterWithOutput(out io.Writer) *cliadapter.JournalAdapter {
	once.Do(initServices)
	return cliadapter.NewJournalAdapter(journalService, out)
}

// findRepoRoot resolves the enclosing git repository, falling back to
// the working directory when git is unavailable.
func findRepoRoot() string {
	out, err := exec.Command("git", "rev-parse", "--show-toplevel").Output()
	if err == nil {
		if root := strings.TrimSpace(string(out)); root != "" {
			return root
		}
	}
	wd, werr := os.Getwd()
	if werr != nil {
		log.Fatalf("failed to locate repository: %v", werr)
	}
	return wd
}
