package blacklist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

type State int

const (
	StatePending State = iota
	StateProcessing
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateProcessing:
		return "processing"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrNotAuthorized  = errors.New("actor is not authorized to decide this request")
	ErrAlreadyDecided = errors.New("request has already been decided")
)

// Directory abstracts the Discord surface the workflow acts through: which
// guilds the bot can see, who is in them, and how to remove or message a user.
type Directory interface {
	Guilds() []GuildInfo
	IsMember(ctx context.Context, guildID, userID string) (bool, error)
	Remove(ctx context.Context, guildID, userID, reason string) error
	DirectMessage(ctx context.Context, userID, content string) error
}

type GuildInfo struct {
	ID   string
	Name string
}

// Result describes what confirming a request actually did. Guild slices hold
// guild IDs in the order the guilds were visited.
type Result struct {
	UserID      string
	Removed     []string
	Absent      []string
	Failed      []string
	DMDelivered bool
}

// Workflow carries one blacklist request from intake to a terminal state.
// Exactly one decision wins: the state transitions are guarded so that
// concurrent confirms or a confirm racing a cancel resolve to a single
// submission.
type Workflow struct {
	mu    sync.Mutex
	state State

	request  Request
	registry Registry
	dir      Directory
	logger   *zap.Logger

	authorized         map[string]bool
	cancelRequiresAuth bool
}

type WorkflowConfig struct {
	AuthorizedUsers    []string
	CancelRequiresAuth bool
}

func NewWorkflow(req Request, registry Registry, dir Directory, cfg WorkflowConfig, logger *zap.Logger) *Workflow {
	authorized := make(map[string]bool, len(cfg.AuthorizedUsers))
	for _, id := range cfg.AuthorizedUsers {
		authorized[id] = true
	}
	return &Workflow{
		state:              StatePending,
		request:            req,
		registry:           registry,
		dir:                dir,
		logger:             logger,
		authorized:         authorized,
		cancelRequiresAuth: cfg.CancelRequiresAuth,
	}
}

func (w *Workflow) Request() Request {
	return w.request
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Confirm submits the request to the registry and, on success, propagates the
// ban across every mutual guild. An unauthorized actor leaves the request
// Pending and untouched. Propagation failures are reported in the Result but
// never abort the sweep; each guild gets exactly one removal attempt.
func (w *Workflow) Confirm(ctx context.Context, actorID string) (Result, error) {
	w.mu.Lock()
	if !w.authorized[actorID] {
		w.mu.Unlock()
		return Result{}, ErrNotAuthorized
	}
	if w.state != StatePending {
		w.mu.Unlock()
		return Result{}, ErrAlreadyDecided
	}
	w.state = StateProcessing
	w.mu.Unlock()

	result := Result{UserID: w.request.UserID}

	entry := Entry{
		AuthID:      actorID,
		UserID:      w.request.UserID,
		DisplayName: w.request.DisplayName,
		Reason:      w.request.Reason,
	}
	if w.request.MCUsername != "" || w.request.MCUUID != "" {
		entry.MCInfo = &MCInfo{Username: w.request.MCUsername, UUID: w.request.MCUUID}
	}

	if err := w.registry.Submit(ctx, entry); err != nil {
		w.setState(StateCompleted)
		return result, fmt.Errorf("submit blacklist entry: %w", err)
	}

	// Membership is resolved for every guild before anything irreversible
	// happens, so the DM can still reach the user from any mutual server.
	var mutual []GuildInfo
	for _, guild := range w.dir.Guilds() {
		member, err := w.dir.IsMember(ctx, guild.ID, w.request.UserID)
		if err != nil {
			w.logger.Warn("membership check failed",
				zap.String("guild_id", guild.ID),
				zap.String("user_id", w.request.UserID),
				zap.Error(err))
			result.Failed = append(result.Failed, guild.ID)
			continue
		}
		if member {
			mutual = append(mutual, guild)
		} else {
			result.Absent = append(result.Absent, guild.ID)
		}
	}

	dm := fmt.Sprintf("You have been blacklisted from the network.\nReason: %s", w.request.Reason)
	if len(mutual) > 0 {
		names := make([]string, 0, len(mutual))
		for _, guild := range mutual {
			names = append(names, guild.Name)
		}
		dm += "\nYou were a member of the following servers: " + strings.Join(names, ", ")
	}
	if err := w.dir.DirectMessage(ctx, w.request.UserID, dm); err != nil {
		w.logger.Info("blacklist DM not delivered",
			zap.String("user_id", w.request.UserID),
			zap.Error(err))
	} else {
		result.DMDelivered = true
	}

	for _, guild := range mutual {
		if err := w.dir.Remove(ctx, guild.ID, w.request.UserID, w.request.Reason); err != nil {
			w.logger.Warn("removal failed",
				zap.String("guild_id", guild.ID),
				zap.String("user_id", w.request.UserID),
				zap.Error(err))
			result.Failed = append(result.Failed, guild.ID)
			continue
		}
		result.Removed = append(result.Removed, guild.ID)
	}

	w.setState(StateCompleted)
	return result, nil
}

// Cancel closes the request without touching the registry. Authorization is
// only enforced when the deployment opts into it.
func (w *Workflow) Cancel(actorID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancelRequiresAuth && !w.authorized[actorID] {
		return ErrNotAuthorized
	}
	if w.state != StatePending {
		return ErrAlreadyDecided
	}
	w.state = StateCancelled
	return nil
}

func (w *Workflow) setState(state State) {
	w.mu.Lock()
	w.state = state
	w.mu.Unlock()
}
