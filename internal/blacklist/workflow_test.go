package blacklist

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type fakeRegistry struct {
	mu        sync.Mutex
	submitted []Entry
	submitErr error
	status    Status
	checkErr  error
}

func (f *fakeRegistry) Submit(_ context.Context, entry Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, entry)
	return nil
}

func (f *fakeRegistry) Check(_ context.Context, _ string) (Status, error) {
	if f.checkErr != nil {
		return Status{}, f.checkErr
	}
	return f.status, nil
}

func (f *fakeRegistry) submissions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

type fakeDirectory struct {
	guilds    []GuildInfo
	members   map[string]map[string]bool // guildID -> userID -> present
	removeErr map[string]error           // guildID -> error
	dmErr     error

	removals []string
	dms      int
	lastDM   string
}

func (f *fakeDirectory) Guilds() []GuildInfo { return f.guilds }

func (f *fakeDirectory) IsMember(_ context.Context, guildID, userID string) (bool, error) {
	return f.members[guildID][userID], nil
}

func (f *fakeDirectory) Remove(_ context.Context, guildID, _, _ string) error {
	f.removals = append(f.removals, guildID)
	return f.removeErr[guildID]
}

func (f *fakeDirectory) DirectMessage(_ context.Context, _, content string) error {
	f.dms++
	f.lastDM = content
	return f.dmErr
}

func newTestWorkflow(reg Registry, dir Directory, cfg WorkflowConfig) *Workflow {
	req := Request{UserID: "100", DisplayName: "Foo", Reason: "Griefing"}
	return NewWorkflow(req, reg, dir, cfg, zap.NewNop())
}

func TestConfirmUnauthorized(t *testing.T) {
	reg := &fakeRegistry{}
	dir := &fakeDirectory{}
	wf := newTestWorkflow(reg, dir, WorkflowConfig{AuthorizedUsers: []string{"mod-1"}})

	_, err := wf.Confirm(context.Background(), "intruder")
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("err = %v, want ErrNotAuthorized", err)
	}
	if wf.State() != StatePending {
		t.Fatalf("state = %v, want pending", wf.State())
	}
	if reg.submissions() != 0 || dir.dms != 0 || len(dir.removals) != 0 {
		t.Fatalf("unauthorized confirm had side effects")
	}
}

func TestConfirmOnlyOnce(t *testing.T) {
	reg := &fakeRegistry{}
	dir := &fakeDirectory{}
	wf := newTestWorkflow(reg, dir, WorkflowConfig{AuthorizedUsers: []string{"mod-1", "mod-2"}})

	if _, err := wf.Confirm(context.Background(), "mod-1"); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if _, err := wf.Confirm(context.Background(), "mod-2"); !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("second confirm err = %v, want ErrAlreadyDecided", err)
	}
	if reg.submissions() != 1 {
		t.Fatalf("submissions = %d, want 1", reg.submissions())
	}
}

func TestConfirmPropagation(t *testing.T) {
	reg := &fakeRegistry{}
	dir := &fakeDirectory{
		guilds: []GuildInfo{{ID: "A"}, {ID: "B"}, {ID: "C"}},
		members: map[string]map[string]bool{
			"A": {"100": true},
			"B": {},
			"C": {"100": true},
		},
		removeErr: map[string]error{"C": errors.New("missing permissions")},
	}
	wf := newTestWorkflow(reg, dir, WorkflowConfig{AuthorizedUsers: []string{"mod-1"}})

	result, err := wf.Confirm(context.Background(), "mod-1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if wf.State() != StateCompleted {
		t.Fatalf("state = %v, want completed", wf.State())
	}
	if len(result.Removed) != 1 || result.Removed[0] != "A" {
		t.Fatalf("removed = %v, want [A]", result.Removed)
	}
	if len(result.Absent) != 1 || result.Absent[0] != "B" {
		t.Fatalf("absent = %v, want [B]", result.Absent)
	}
	if len(result.Failed) != 1 || result.Failed[0] != "C" {
		t.Fatalf("failed = %v, want [C]", result.Failed)
	}
	if !result.DMDelivered {
		t.Fatalf("expected DM delivered")
	}
	// One attempt per mutual guild, no retries: A succeeds, C fails, B is skipped.
	if len(dir.removals) != 2 {
		t.Fatalf("removal attempts = %v, want [A C]", dir.removals)
	}
}

func TestConfirmDMListsMutualGuilds(t *testing.T) {
	reg := &fakeRegistry{}
	dir := &fakeDirectory{
		guilds: []GuildInfo{{ID: "A", Name: "Alpha Server"}, {ID: "B", Name: "Beta Server"}, {ID: "C", Name: "Gamma Server"}},
		members: map[string]map[string]bool{
			"A": {"100": true},
			"B": {"100": true},
			"C": {},
		},
	}
	wf := newTestWorkflow(reg, dir, WorkflowConfig{AuthorizedUsers: []string{"mod-1"}})

	if _, err := wf.Confirm(context.Background(), "mod-1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !strings.Contains(dir.lastDM, "Reason: Griefing") {
		t.Fatalf("DM missing reason: %q", dir.lastDM)
	}
	if !strings.Contains(dir.lastDM, "Alpha Server") || !strings.Contains(dir.lastDM, "Beta Server") {
		t.Fatalf("DM missing mutual guild names: %q", dir.lastDM)
	}
	if strings.Contains(dir.lastDM, "Gamma Server") {
		t.Fatalf("DM lists a guild the user is not in: %q", dir.lastDM)
	}
}

func TestConfirmContinuesPastFailure(t *testing.T) {
	reg := &fakeRegistry{}
	dir := &fakeDirectory{
		guilds: []GuildInfo{{ID: "A"}, {ID: "B"}, {ID: "C"}},
		members: map[string]map[string]bool{
			"A": {"100": true},
			"B": {"100": true},
			"C": {"100": true},
		},
		removeErr: map[string]error{"B": errors.New("hierarchy")},
	}
	wf := newTestWorkflow(reg, dir, WorkflowConfig{AuthorizedUsers: []string{"mod-1"}})

	result, err := wf.Confirm(context.Background(), "mod-1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(result.Removed) != 2 {
		t.Fatalf("removed = %v, want A and C despite B failing", result.Removed)
	}
	if len(result.Failed) != 1 || result.Failed[0] != "B" {
		t.Fatalf("failed = %v, want [B]", result.Failed)
	}
	if len(dir.removals) != 3 {
		t.Fatalf("removal attempts = %v, want one per mutual guild", dir.removals)
	}
}

func TestConfirmSubmitFailure(t *testing.T) {
	reg := &fakeRegistry{submitErr: errors.New("registry down")}
	dir := &fakeDirectory{
		guilds:  []GuildInfo{{ID: "A"}},
		members: map[string]map[string]bool{"A": {"100": true}},
	}
	wf := newTestWorkflow(reg, dir, WorkflowConfig{AuthorizedUsers: []string{"mod-1"}})

	_, err := wf.Confirm(context.Background(), "mod-1")
	if err == nil {
		t.Fatalf("expected submit error")
	}
	if wf.State() != StateCompleted {
		t.Fatalf("state = %v, want completed even on failure", wf.State())
	}
	if len(dir.removals) != 0 || dir.dms != 0 {
		t.Fatalf("propagation ran despite failed submission")
	}
}

func TestConfirmDMFailureDoesNotBlock(t *testing.T) {
	reg := &fakeRegistry{}
	dir := &fakeDirectory{
		guilds:  []GuildInfo{{ID: "A"}},
		members: map[string]map[string]bool{"A": {"100": true}},
		dmErr:   errors.New("cannot send messages to this user"),
	}
	wf := newTestWorkflow(reg, dir, WorkflowConfig{AuthorizedUsers: []string{"mod-1"}})

	result, err := wf.Confirm(context.Background(), "mod-1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if result.DMDelivered {
		t.Fatalf("DM marked delivered despite error")
	}
	if len(result.Removed) != 1 {
		t.Fatalf("removed = %v, removal should still happen", result.Removed)
	}
}

func TestCancel(t *testing.T) {
	wf := newTestWorkflow(&fakeRegistry{}, &fakeDirectory{}, WorkflowConfig{AuthorizedUsers: []string{"mod-1"}})

	if err := wf.Cancel("anyone"); err != nil {
		t.Fatalf("cancel without auth requirement: %v", err)
	}
	if wf.State() != StateCancelled {
		t.Fatalf("state = %v, want cancelled", wf.State())
	}
	if _, err := wf.Confirm(context.Background(), "mod-1"); !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("confirm after cancel err = %v, want ErrAlreadyDecided", err)
	}
}

func TestCancelRequiresAuth(t *testing.T) {
	wf := newTestWorkflow(&fakeRegistry{}, &fakeDirectory{}, WorkflowConfig{
		AuthorizedUsers:    []string{"mod-1"},
		CancelRequiresAuth: true,
	})

	if err := wf.Cancel("intruder"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("err = %v, want ErrNotAuthorized", err)
	}
	if wf.State() != StatePending {
		t.Fatalf("state = %v, want pending", wf.State())
	}
	if err := wf.Cancel("mod-1"); err != nil {
		t.Fatalf("authorized cancel: %v", err)
	}
}

func TestEnforcerEvaluate(t *testing.T) {
	reg := &fakeRegistry{status: Status{Blacklisted: true, Reason: "Griefing"}}
	enf := NewEnforcer(reg, 100, 10, zap.NewNop())

	reason, banned := enf.Evaluate(context.Background(), "100")
	if !banned || reason != "Griefing" {
		t.Fatalf("evaluate = (%q, %v), want (Griefing, true)", reason, banned)
	}
}

func TestEnforcerFailsOpen(t *testing.T) {
	reg := &fakeRegistry{checkErr: errors.New("connection refused")}
	enf := NewEnforcer(reg, 100, 10, zap.NewNop())

	reason, banned := enf.Evaluate(context.Background(), "100")
	if banned || reason != "" {
		t.Fatalf("evaluate = (%q, %v), want fail open", reason, banned)
	}
}

func TestEnforcerDefaultReason(t *testing.T) {
	reg := &fakeRegistry{status: Status{Blacklisted: true}}
	enf := NewEnforcer(reg, 100, 10, zap.NewNop())

	reason, banned := enf.Evaluate(context.Background(), "100")
	if !banned || reason != "blacklisted" {
		t.Fatalf("evaluate = (%q, %v), want default reason", reason, banned)
	}
}
