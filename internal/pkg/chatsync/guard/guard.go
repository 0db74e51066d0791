// Package guard provides the concrete action policy consulted before every
// mutating operation: sending, marking read, creating conversations.
package guard

import "log/slog"

// Config declares which actions are denied. ReadOnly blocks everything,
// matching an impersonation session where an operator must be able to look
// but never write on the member's behalf.
type Config struct {
	ReadOnly       bool
	BlockedActions []string
}

// Guard evaluates actions against a static config. Satisfies
// port.ActionGuard.
type Guard struct {
	cfg     Config
	blocked map[string]bool
	log     *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}
	blocked := make(map[string]bool, len(cfg.BlockedActions))
	for _, a := range cfg.BlockedActions {
		blocked[a] = true
	}
	return &Guard{cfg: cfg, blocked: blocked, log: log}
}

// GuardAction reports whether the action may proceed. Denials are logged
// with the human label so the audit trail reads without a lookup table.
func (g *Guard) GuardAction(action, label string) bool {
	if g.cfg.ReadOnly {
		g.log.Warn("guard: action denied in read-only session", "action", action, "label", label)
		return false
	}
	if g.blocked[action] {
		g.log.Warn("guard: action denied by policy", "action", action, "label", label)
		return false
	}
	return true
}
