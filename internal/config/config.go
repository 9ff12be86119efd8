package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DirName is the sluice state directory inside a repository.
	DirName = ".sluice"

	configFileName = "config.json"
)

// Config represents the flat sluice configuration stored in
// .sluice/config.json.
type Config struct {
	// Version is the project version. Its major component selects the
	// allocation epoch for new stream ids.
	Version string `json:"version"`

	Remote     string `json:"remote"`
	MainBranch string `json:"main_branch"`

	// WorktreeDir is where stream worktrees are materialized,
	// relative to the repository root unless absolute.
	WorktreeDir string `json:"worktree_dir"`

	// HistoryDir is where archived stream records are written,
	// relative to the repository root unless absolute.
	HistoryDir string `json:"history_dir"`

	// MergeLockBranch is the remote ref used as the distributed merge
	// lock.
	MergeLockBranch string `json:"merge_lock_branch"`

	LockStaleMs    int `json:"lock_stale_ms"`
	LockRetryMs    int `json:"lock_retry_ms"`
	LockMaxRetries int `json:"lock_max_retries"`

	// Validators are shell commands run in the stream worktree after a
	// clean merge and before the branch is pushed. Empty means no
	// validation.
	Validators []string `json:"validators,omitempty"`

	// DeleteRemoteBranch controls whether merge completion removes the
	// stream's remote branch.
	DeleteRemoteBranch bool `json:"delete_remote_branch"`
}

// DefaultConfig returns a config with working defaults for a fresh
// repository.
func DefaultConfig() *Config {
	return &Config{
		Version:         "1.0.0",
		Remote:          "origin",
		MainBranch:      "main",
		WorktreeDir:     filepath.Join(DirName, "worktrees"),
		HistoryDir:      filepath.Join(DirName, "history"),
		MergeLockBranch: "sluice/merge-lock",
		LockStaleMs:     300000,
		LockRetryMs:     1000,
		LockMaxRetries:  30,
	}
}

// LoadConfig reads .sluice/config.json from the specified directory.
// Missing fields fall back to defaults. Returns error if no config
// found - caller should handle accordingly.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, DirName, configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes config.json to directory
func SaveConfig(dir string, cfg *Config) error {
	sluiceDir := filepath.Join(dir, DirName)
	if err := os.MkdirAll(sluiceDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s dir: %w", DirName, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(sluiceDir, configFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Epoch extracts the allocation epoch from the project version: the
// major component, so "15.2.0" allocates in epoch "15".
func (c *Config) Epoch() string {
	major, _, _ := strings.Cut(c.Version, ".")
	major = strings.TrimSpace(major)
	if major == "" {
		return "1"
	}
	for _, r := range major {
		if r < '0' || r > '9' {
			return "1"
		}
	}
	return major
}

// StaleAfter returns the lock staleness threshold as a duration.
func (c *Config) StaleAfter() time.Duration {
	if c.LockStaleMs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.LockStaleMs) * time.Millisecond
}

// RetryInterval returns the pause between lock acquisition attempts.
func (c *Config) RetryInterval() time.Duration {
	if c.LockRetryMs <= 0 {
		return time.Second
	}
	return time.Duration(c.LockRetryMs) * time.Millisecond
}

// MaxRetries returns the lock acquisition attempt budget.
func (c *Config) MaxRetries() int {
	if c.LockMaxRetries <= 0 {
		return 30
	}
	return c.LockMaxRetries
}

// WorktreeBase resolves the worktree directory against the repository
// root.
func (c *Config) WorktreeBase(root string) string {
	if filepath.IsAbs(c.WorktreeDir) {
		return c.WorktreeDir
	}
	return filepath.Join(root, c.WorktreeDir)
}

// HistoryBase resolves the history directory against the repository
// root.
func (c *Config) HistoryBase(root string) string {
	if filepath.IsAbs(c.HistoryDir) {
		return c.HistoryDir
	}
	return filepath.Join(root, c.HistoryDir)
}
