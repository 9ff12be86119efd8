package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/sluice/internal/config"
	"github.com/example/sluice/internal/core/streamid"
	"github.com/example/sluice/internal/models"
	"github.com/example/sluice/internal/ports/secondary"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Version = "15.2.0"
	return cfg
}

// ===== StreamStore =====

// Ensure mockStreamStore implements the interface
var _ secondary.StreamStore = (*mockStreamStore)(nil)

// mockStreamStore implements secondary.StreamStore on an in-memory
// document.
type mockStreamStore struct {
	doc         *models.RegistryDocument
	nextCounter int

	getErr      error
	allocateErr error
	registerErr error
	updateErr   error
	removeErr   error
	touchErr    error
	withLockErr error
}

func newMockStreamStore() *mockStreamStore {
	return &mockStreamStore{
		doc: models.NewRegistryDocument("15"),
	}
}

// seed installs a record directly, bypassing allocation.
func (m *mockStreamStore) seed(rec *models.StreamRecord) *models.StreamRecord {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	m.doc.Streams[rec.StreamID] = rec
	return rec
}

func (m *mockStreamStore) Load(ctx context.Context) (*models.RegistryDocument, error) {
	return m.doc, nil
}

func (m *mockStreamStore) Save(ctx context.Context, doc *models.RegistryDocument) error {
	m.doc = doc
	return nil
}

func (m *mockStreamStore) WithLock(ctx context.Context, operation string, fn func(doc *models.RegistryDocument) error) error {
	if m.withLockErr != nil {
		return m.withLockErr
	}
	return fn(m.doc)
}

func (m *mockStreamStore) Allocate(ctx context.Context, req secondary.AllocationRequest) (*secondary.StreamAllocation, error) {
	if m.allocateErr != nil {
		return nil, m.allocateErr
	}
	slug := streamid.Slugify(req.Title)
	number := fmt.Sprintf("15%02d", m.nextCounter)
	m.nextCounter++
	return &secondary.StreamAllocation{
		StreamID: number + "-" + slug,
		Number:   number,
		Slug:     slug,
	}, nil
}

func (m *mockStreamStore) Register(ctx context.Context, rec *models.StreamRecord) error {
	if m.registerErr != nil {
		return m.registerErr
	}
	if _, exists := m.doc.Streams[rec.StreamID]; exists {
		return fmt.Errorf("stream %s already registered", rec.StreamID)
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	m.doc.Streams[rec.StreamID] = rec
	return nil
}

func (m *mockStreamStore) Update(ctx context.Context, streamID string, patch secondary.StreamPatch) (*models.StreamRecord, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	rec, ok := m.doc.Streams[streamID]
	if !ok {
		return nil, fmt.Errorf("stream %s not found", streamID)
	}
	if patch.Title != "" {
		rec.Title = patch.Title
	}
	if patch.Category != "" {
		rec.Category = patch.Category
	}
	if patch.Priority != "" {
		rec.Priority = patch.Priority
	}
	if patch.Status != "" {
		rec.Status = patch.Status
	}
	if patch.MergeCommit != "" {
		rec.MergeCommit = patch.MergeCommit
	}
	rec.UpdatedAt = time.Now().UTC()
	out := *rec
	return &out, nil
}

func (m *mockStreamStore) Remove(ctx context.Context, streamID string) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	if _, ok := m.doc.Streams[streamID]; !ok {
		return fmt.Errorf("stream %s not found", streamID)
	}
	delete(m.doc.Streams, streamID)
	delete(m.doc.ActiveContexts, streamID)
	return nil
}

func (m *mockStreamStore) Touch(ctx context.Context, streamID, worktreePath string) error {
	if m.touchErr != nil {
		return m.touchErr
	}
	m.doc.ActiveContexts[streamID] = &models.ActiveContext{
		WorktreePath:   worktreePath,
		LastAccessedAt: time.Now().UTC(),
	}
	return nil
}

func (m *mockStreamStore) Get(ctx context.Context, streamID string) (*models.StreamRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.doc.Streams[streamID]
	if !ok {
		return nil, fmt.Errorf("stream %s not found", streamID)
	}
	out := *rec
	return &out, nil
}

func (m *mockStreamStore) List(ctx context.Context, filter secondary.StreamFilter) ([]*models.StreamRecord, error) {
	var out []*models.StreamRecord
	for _, rec := range m.doc.Streams {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.Category != "" && rec.Category != filter.Category {
			continue
		}
		if filter.ParentStreamID != "" && rec.ParentStreamID != filter.ParentStreamID {
			continue
		}
		c := *rec
		out = append(out, &c)
	}
	return out, nil
}

// ===== GitRunner =====

// Ensure mockGitRunner implements the interface
var _ secondary.GitRunner = (*mockGitRunner)(nil)

// mockGitRunner implements secondary.GitRunner with scripted results
// and an ordered call log.
type mockGitRunner struct {
	calls []string

	currentBranch    string
	branchExists     map[string]bool
	dirty            map[string][]string
	fetchErr         error
	fetchRefExists   map[string]bool
	fetchRefErr      error
	mergeErr         error
	mergeInProgress  map[string]bool
	conflicted       map[string][]string
	commitMergeErr   error
	addErr           error
	commitErr        error
	checkoutErr      error
	pullErr          error
	isAncestor       bool
	isAncestorErr    error
	mergeFFErr       error
	pushErr          error
	deleteRemoteErr  error
	deleteBranchErr  error
	revParse         map[string]string
	revParseErr      error
	lastMessage      string
	emptyCommitSha   string
	setBranchErr     error
	deletedBranches  []string
	deletedRemote    []string
	pushedRefs       []string
	committedMsgs    []string
	checkedOut       []string
	currentBranchErr error
}

func newMockGitRunner() *mockGitRunner {
	return &mockGitRunner{
		currentBranch:   "main",
		branchExists:    make(map[string]bool),
		dirty:           make(map[string][]string),
		fetchRefExists:  make(map[string]bool),
		mergeInProgress: make(map[string]bool),
		conflicted:      make(map[string][]string),
		isAncestor:      true,
		revParse:        make(map[string]string),
		emptyCommitSha:  "empty-commit-sha",
	}
}

func (m *mockGitRunner) record(call string) {
	m.calls = append(m.calls, call)
}

// called reports whether any logged call starts with prefix.
func (m *mockGitRunner) called(prefix string) bool {
	for _, c := range m.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func (m *mockGitRunner) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	m.record("CurrentBranch")
	return m.currentBranch, m.currentBranchErr
}

func (m *mockGitRunner) BranchExists(ctx context.Context, repoPath, branch string) (bool, error) {
	m.record("BranchExists " + branch)
	return m.branchExists[branch], nil
}

func (m *mockGitRunner) DirtyPaths(ctx context.Context, repoPath string) ([]string, error) {
	m.record("DirtyPaths " + repoPath)
	return m.dirty[repoPath], nil
}

func (m *mockGitRunner) Fetch(ctx context.Context, repoPath, remote, ref string) error {
	m.record("Fetch " + ref)
	return m.fetchErr
}

func (m *mockGitRunner) FetchRef(ctx context.Context, repoPath, remote, ref string) (bool, error) {
	m.record("FetchRef " + ref)
	if m.fetchRefErr != nil {
		return false, m.fetchRefErr
	}
	return m.fetchRefExists[ref], nil
}

func (m *mockGitRunner) Merge(ctx context.Context, repoPath, ref string) error {
	m.record("Merge " + ref)
	return m.mergeErr
}

func (m *mockGitRunner) MergeInProgress(ctx context.Context, repoPath string) (bool, error) {
	m.record("MergeInProgress")
	return m.mergeInProgress[repoPath], nil
}

func (m *mockGitRunner) ConflictedFiles(ctx context.Context, repoPath string) ([]string, error) {
	m.record("ConflictedFiles")
	return m.conflicted[repoPath], nil
}

func (m *mockGitRunner) CommitMerge(ctx context.Context, repoPath string) error {
	m.record("CommitMerge")
	return m.commitMergeErr
}

func (m *mockGitRunner) Add(ctx context.Context, repoPath string, paths ...string) error {
	m.record("Add")
	return m.addErr
}

func (m *mockGitRunner) Commit(ctx context.Context, repoPath, message string) error {
	m.record("Commit " + message)
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committedMsgs = append(m.committedMsgs, message)
	return nil
}

func (m *mockGitRunner) Checkout(ctx context.Context, repoPath, branch string) error {
	m.record("Checkout " + branch)
	if m.checkoutErr != nil {
		return m.checkoutErr
	}
	m.checkedOut = append(m.checkedOut, branch)
	m.currentBranch = branch
	return nil
}

func (m *mockGitRunner) Pull(ctx context.Context, repoPath, remote, branch string) error {
	m.record("Pull " + branch)
	return m.pullErr
}

func (m *mockGitRunner) IsAncestor(ctx context.Context, repoPath, ancestor, descendant string) (bool, error) {
	m.record("IsAncestor")
	if m.isAncestorErr != nil {
		return false, m.isAncestorErr
	}
	return m.isAncestor, nil
}

func (m *mockGitRunner) MergeFFOnly(ctx context.Context, repoPath, ref string) error {
	m.record("MergeFFOnly " + ref)
	return m.mergeFFErr
}

func (m *mockGitRunner) Push(ctx context.Context, repoPath, remote, refspec string) error {
	m.record("Push " + refspec)
	if m.pushErr != nil {
		return m.pushErr
	}
	m.pushedRefs = append(m.pushedRefs, refspec)
	return nil
}

func (m *mockGitRunner) DeleteRemoteBranch(ctx context.Context, repoPath, remote, branch string) error {
	m.record("DeleteRemoteBranch " + branch)
	if m.deleteRemoteErr != nil {
		return m.deleteRemoteErr
	}
	m.deletedRemote = append(m.deletedRemote, branch)
	return nil
}

func (m *mockGitRunner) DeleteBranch(ctx context.Context, repoPath, branch string) error {
	m.record("DeleteBranch " + branch)
	if m.deleteBranchErr != nil {
		return m.deleteBranchErr
	}
	m.deletedBranches = append(m.deletedBranches, branch)
	return nil
}

func (m *mockGitRunner) RevParse(ctx context.Context, repoPath, rev string) (string, error) {
	m.record("RevParse " + rev)
	if m.revParseErr != nil {
		return "", m.revParseErr
	}
	if sha, ok := m.revParse[rev]; ok {
		return sha, nil
	}
	return "sha-" + rev, nil
}

func (m *mockGitRunner) LastCommitMessage(ctx context.Context, repoPath, ref string) (string, error) {
	m.record("LastCommitMessage " + ref)
	return m.lastMessage, nil
}

func (m *mockGitRunner) EmptyCommit(ctx context.Context, repoPath, message string) (string, error) {
	m.record("EmptyCommit")
	return m.emptyCommitSha, nil
}

func (m *mockGitRunner) SetBranch(ctx context.Context, repoPath, branch, sha string) error {
	m.record("SetBranch " + branch)
	return m.setBranchErr
}

// ===== ConflictInspector =====

// Ensure mockInspector implements the interface
var _ secondary.ConflictInspector = (*mockInspector)(nil)

// mockInspector serves file content and history keyed by revision.
type mockInspector struct {
	// content[rev][path]
	content map[string]map[string]string
	// history[rev]
	history    map[string][]secondary.CommitSummary
	fileErr    error
	historyErr error
}

func newMockInspector() *mockInspector {
	return &mockInspector{
		content: make(map[string]map[string]string),
		history: make(map[string][]secondary.CommitSummary),
	}
}

func (m *mockInspector) setContent(rev, path, content string) {
	if m.content[rev] == nil {
		m.content[rev] = make(map[string]string)
	}
	m.content[rev][path] = content
}

func (m *mockInspector) FileAtRev(ctx context.Context, repoPath, rev, path string) (string, error) {
	if m.fileErr != nil {
		return "", m.fileErr
	}
	return m.content[rev][path], nil
}

func (m *mockInspector) RecentCommits(ctx context.Context, repoPath, rev, path string, limit int) ([]secondary.CommitSummary, error) {
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	return m.history[rev], nil
}

// ===== MergeLock =====

// Ensure mockMergeLock implements the interface
var _ secondary.MergeLock = (*mockMergeLock)(nil)

// mockMergeLock tracks acquisition and release counts.
type mockMergeLock struct {
	acquisition   *secondary.LockAcquisition
	acquireErr    error
	releaseErr    error
	status        *secondary.MergeLockStatus
	statusErr     error
	acquires      int
	releases      int
	forceReleases int
}

func newMockMergeLock() *mockMergeLock {
	return &mockMergeLock{
		acquisition: &secondary.LockAcquisition{Acquired: true},
		status:      &secondary.MergeLockStatus{},
	}
}

func (m *mockMergeLock) Acquire(ctx context.Context, streamID, operation string) (*secondary.LockAcquisition, error) {
	m.acquires++
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}
	return m.acquisition, nil
}

func (m *mockMergeLock) Release(ctx context.Context) error {
	m.releases++
	return m.releaseErr
}

func (m *mockMergeLock) ForceRelease(ctx context.Context) error {
	m.forceReleases++
	return m.releaseErr
}

func (m *mockMergeLock) Status(ctx context.Context) (*secondary.MergeLockStatus, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return m.status, nil
}

// ===== WorkspaceAdapter =====

// Ensure mockWorkspaceAdapter implements the interface
var _ secondary.WorkspaceAdapter = (*mockWorkspaceAdapter)(nil)

// mockWorkspaceAdapter implements secondary.WorkspaceAdapter for testing.
type mockWorkspaceAdapter struct {
	worktrees         map[string]bool
	files             map[string][]byte
	basePath          string
	createWorktreeErr error
	removeWorktreeErr error
	writeFileErr      error
}

func newMockWorkspaceAdapter() *mockWorkspaceAdapter {
	return &mockWorkspaceAdapter{
		worktrees: make(map[string]bool),
		files:     make(map[string][]byte),
		basePath:  "/tmp/sluice-worktrees",
	}
}

func (m *mockWorkspaceAdapter) CreateWorktree(ctx context.Context, branch, base, targetPath string) error {
	if m.createWorktreeErr != nil {
		return m.createWorktreeErr
	}
	m.worktrees[targetPath] = true
	return nil
}

func (m *mockWorkspaceAdapter) RemoveWorktree(ctx context.Context, path string) error {
	if m.removeWorktreeErr != nil {
		return m.removeWorktreeErr
	}
	delete(m.worktrees, path)
	return nil
}

func (m *mockWorkspaceAdapter) WorktreeExists(ctx context.Context, path string) (bool, error) {
	return m.worktrees[path], nil
}

func (m *mockWorkspaceAdapter) CreateDirectory(ctx context.Context, path string) error {
	return nil
}

func (m *mockWorkspaceAdapter) RemoveDirectory(ctx context.Context, path string) error {
	return nil
}

func (m *mockWorkspaceAdapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	return false, nil
}

func (m *mockWorkspaceAdapter) WriteFile(ctx context.Context, path string, data []byte) error {
	if m.writeFileErr != nil {
		return m.writeFileErr
	}
	m.files[path] = data
	return nil
}

func (m *mockWorkspaceAdapter) WorktreeBasePath() string {
	return m.basePath
}

func (m *mockWorkspaceAdapter) StreamWorktreePath(streamID string) string {
	return m.basePath + "/" + streamID
}

// ===== ValidatorRunner =====

// Ensure mockValidatorRunner implements the interface
var _ secondary.ValidatorRunner = (*mockValidatorRunner)(nil)

// mockValidatorRunner returns a scripted validation result.
type mockValidatorRunner struct {
	result *secondary.ValidationResult
	err    error
	runs   int
}

func newMockValidatorRunner() *mockValidatorRunner {
	return &mockValidatorRunner{
		result: &secondary.ValidationResult{Passed: true},
	}
}

func (m *mockValidatorRunner) RunValidators(ctx context.Context, worktreePath string) (*secondary.ValidationResult, error) {
	m.runs++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// ===== JournalRepository =====

// Ensure mockJournal implements the interface
var _ secondary.JournalRepository = (*mockJournal)(nil)

// mockJournal accumulates appended entries.
type mockJournal struct {
	entries   []*secondary.JournalEntry
	appendErr error
}

func newMockJournal() *mockJournal {
	return &mockJournal{}
}

func (m *mockJournal) Append(ctx context.Context, entry *secondary.JournalEntry) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockJournal) List(ctx context.Context, filters secondary.JournalFilters) ([]*secondary.JournalEntry, error) {
	return m.entries, nil
}

func (m *mockJournal) PruneOlderThan(ctx context.Context, days int) (int, error) {
	n := len(m.entries)
	m.entries = nil
	return n, nil
}

// outcomes returns the journal outcomes recorded for an operation.
func (m *mockJournal) outcomes(operation string) []string {
	var out []string
	for _, e := range m.entries {
		if e.Operation == operation {
			out = append(out, e.Outcome)
		}
	}
	return out
}
