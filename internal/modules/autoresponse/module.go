package autoresponse

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"warden/internal/storage"

	"go.uber.org/zap"
)

// Module replies to configured trigger phrases. Plain triggers match the
// whole message case-insensitively; regex triggers match anywhere in it.
type Module struct {
	store  *storage.Store
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string][]rule // guildID -> compiled rules
}

type rule struct {
	trigger  string
	response string
	re       *regexp.Regexp
}

func New(store *storage.Store, logger *zap.Logger) *Module {
	return &Module{store: store, logger: logger, cache: make(map[string][]rule)}
}

// Add registers a trigger. Regex triggers are compiled up front so a broken
// pattern is rejected at creation time instead of crashing message handling.
func (m *Module) Add(ctx context.Context, guildID, trigger, response string, isRegex bool) error {
	if strings.TrimSpace(trigger) == "" || strings.TrimSpace(response) == "" {
		return fmt.Errorf("trigger and response must be non-empty")
	}
	if isRegex {
		if _, err := regexp.Compile("(?i)" + trigger); err != nil {
			return fmt.Errorf("invalid trigger pattern: %w", err)
		}
	}

	inserted, err := m.store.AddAutoResponse(ctx, storage.AutoResponse{
		GuildID:  guildID,
		Trigger:  trigger,
		Response: response,
		IsRegex:  isRegex,
	})
	if err != nil {
		return err
	}
	if !inserted {
		return fmt.Errorf("trigger %q already exists", trigger)
	}
	m.invalidate(guildID)
	return nil
}

func (m *Module) Remove(ctx context.Context, guildID, trigger string) (bool, error) {
	removed, err := m.store.RemoveAutoResponse(ctx, guildID, trigger)
	if err != nil {
		return false, err
	}
	if removed {
		m.invalidate(guildID)
	}
	return removed, nil
}

func (m *Module) List(ctx context.Context, guildID string) ([]storage.AutoResponse, error) {
	return m.store.ListAutoResponses(ctx, guildID)
}

// Match returns the response for the first matching trigger, in trigger
// order, or false when nothing matches.
func (m *Module) Match(ctx context.Context, guildID, content string) (string, bool) {
	rules, err := m.rules(ctx, guildID)
	if err != nil {
		m.logger.Warn("auto-response lookup failed", zap.String("guild_id", guildID), zap.Error(err))
		return "", false
	}

	trimmed := strings.TrimSpace(content)
	for _, r := range rules {
		if r.re != nil {
			if r.re.MatchString(content) {
				return r.response, true
			}
			continue
		}
		if strings.EqualFold(trimmed, r.trigger) {
			return r.response, true
		}
	}
	return "", false
}

func (m *Module) rules(ctx context.Context, guildID string) ([]rule, error) {
	m.mu.Lock()
	if cached, ok := m.cache[guildID]; ok {
		m.mu.Unlock()
		return cached, nil
	}
	m.mu.Unlock()

	stored, err := m.store.ListAutoResponses(ctx, guildID)
	if err != nil {
		return nil, err
	}

	rules := make([]rule, 0, len(stored))
	for _, ar := range stored {
		compiled := rule{trigger: ar.Trigger, response: ar.Response}
		if ar.IsRegex {
			re, err := regexp.Compile("(?i)" + ar.Trigger)
			if err != nil {
				// Stored before validation existed, or edited by hand.
				m.logger.Warn("skipping invalid stored trigger",
					zap.String("guild_id", guildID),
					zap.String("trigger", ar.Trigger),
					zap.Error(err))
				continue
			}
			compiled.re = re
		}
		rules = append(rules, compiled)
	}

	m.mu.Lock()
	m.cache[guildID] = rules
	m.mu.Unlock()
	return rules, nil
}

func (m *Module) invalidate(guildID string) {
	m.mu.Lock()
	delete(m.cache, guildID)
	m.mu.Unlock()
}
