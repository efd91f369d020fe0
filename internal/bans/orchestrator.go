// Package bans composes database-level whitelist bans with optional mirrored
// game-server actions. The database mutation always completes (commit or
// rollback) before any RCON command is attempted, so the authoritative
// whitelist state never depends on the game server being reachable; RCON
// failures after a commit are downgraded to warnings in the outcome.
package bans

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hexborne/warden/internal/domain"
	"github.com/hexborne/warden/internal/storage"
)

// ErrRconUnavailable: a kick was requested but RCON is disabled or unconfigured.
var ErrRconUnavailable = errors.New("rcon is not enabled")

// RconActions is the slice of the RCON client the orchestrator needs.
type RconActions interface {
	Usable() bool
	KickPlayer(identifier, reason string) error
	BanPlayer(identifier, reason string, minutes int) error
	UnbanPlayer(guid string) error
}

// EventSink receives admin events for the dashboard's live stream.
type EventSink interface {
	Broadcast(event domain.Event)
}

// Outcome is the aggregated result of one orchestrated request: a success
// flag plus one human-readable message per sub-action, so partial failures
// (database succeeded, game server didn't) are reported without losing the
// committed state change.
type Outcome struct {
	Success  bool     `json:"success"`
	Messages []string `json:"-"`
}

// Message joins the step messages for display.
func (o Outcome) Message() string {
	return strings.Join(o.Messages, ". ")
}

// Orchestrator wires the store, the RCON client and the event stream.
type Orchestrator struct {
	store  *storage.Store
	rcon   RconActions
	events EventSink
}

// New creates an orchestrator. events may be nil.
func New(store *storage.Store, rcon RconActions, events EventSink) *Orchestrator {
	return &Orchestrator{store: store, rcon: rcon, events: events}
}

// BanRequest is one application-level ban request.
type BanRequest struct {
	UserID    int64
	ActorID   int64
	Scope     domain.BanScope
	Reason    string
	ExpiresAt *time.Time
	Kick      bool
	ServerBan bool
}

// IssueBan records the whitelist ban first (transactional; a failure there
// fails the whole call with no RCON attempt), then mirrors the requested
// server-side action, folding any RCON failure into a warning message.
func (o *Orchestrator) IssueBan(ctx context.Context, req BanRequest) (Outcome, error) {
	if !req.Scope.Valid() {
		return Outcome{}, fmt.Errorf("%w: %q", storage.ErrInvalidScope, req.Scope)
	}

	user, err := o.store.GetUserByID(ctx, req.UserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading user: %w", err)
	}

	ban, err := o.store.IssueBan(ctx, storage.IssueBanParams{
		UserID:     req.UserID,
		ActorID:    req.ActorID,
		Scope:      req.Scope,
		Reason:     req.Reason,
		ExpiresAt:  req.ExpiresAt,
		ServerKick: req.Kick,
		ServerBan:  req.ServerBan,
	})
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{Success: true, Messages: []string{"Whitelist ban issued"}}

	if req.ServerBan || req.Kick {
		o.mirrorBan(user, req, &outcome)
	}

	o.broadcast(domain.EventBanIssued, map[string]any{
		"ban_id":  ban.ID,
		"user_id": req.UserID,
		"scope":   req.Scope,
	})
	log.Info().Int64("user_id", req.UserID).Int64("actor_id", req.ActorID).
		Str("scope", string(req.Scope)).Msg("whitelist ban issued")

	return outcome, nil
}

// mirrorBan performs the server-side half of an issued ban. The whitelist ban
// is already committed, so every failure here becomes a warning, never an
// overall failure.
func (o *Orchestrator) mirrorBan(user *domain.User, req BanRequest, outcome *Outcome) {
	if !o.rcon.Usable() {
		outcome.Messages = append(outcome.Messages, "Warning: server action skipped, RCON is not enabled")
		return
	}

	identifier := user.SteamID
	if identifier == "" {
		identifier = user.DisplayName
	}

	if req.ServerBan {
		minutes := 0
		if req.ExpiresAt != nil {
			if m := int(time.Until(*req.ExpiresAt).Minutes()); m > 0 {
				minutes = m
			}
		}
		if err := o.rcon.BanPlayer(identifier, req.Reason, minutes); err != nil {
			outcome.Messages = append(outcome.Messages, "Warning: server ban failed: "+err.Error())
		} else {
			outcome.Messages = append(outcome.Messages, "Player banned on game server")
		}
		return
	}

	if err := o.rcon.KickPlayer(identifier, req.Reason); err != nil {
		outcome.Messages = append(outcome.Messages, "Warning: server kick failed: "+err.Error())
	} else {
		outcome.Messages = append(outcome.Messages, "Player kicked from game server")
	}
}

// RevokeBan lifts the user's active whitelist ban, then, only when the
// original ban requested a server ban, removes the matching server-side ban
// by the user's stored Steam64. RCON failures become warnings.
func (o *Orchestrator) RevokeBan(ctx context.Context, userID, actorID int64, reason string) (Outcome, error) {
	user, err := o.store.GetUserByID(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading user: %w", err)
	}

	ban, err := o.store.RevokeBan(ctx, userID, actorID, reason)
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{Success: true, Messages: []string{"Whitelist ban lifted"}}

	if ban.ServerBan {
		switch {
		case !o.rcon.Usable():
			outcome.Messages = append(outcome.Messages, "Warning: server unban skipped, RCON is not enabled")
		case user.SteamID == "":
			outcome.Messages = append(outcome.Messages, "Warning: server unban skipped, user has no stored Steam ID")
		default:
			if err := o.rcon.UnbanPlayer(user.SteamID); err != nil {
				outcome.Messages = append(outcome.Messages, "Warning: server unban failed: "+err.Error())
			} else {
				outcome.Messages = append(outcome.Messages, "Server ban removed")
			}
		}
	}

	o.broadcast(domain.EventBanRevoked, map[string]any{
		"ban_id":  ban.ID,
		"user_id": userID,
	})
	log.Info().Int64("user_id", userID).Int64("actor_id", actorID).Msg("whitelist ban lifted")

	return outcome, nil
}

// Kick removes the user from the game server without touching the whitelist.
// Requires usable RCON; there is no database half to fall back on.
func (o *Orchestrator) Kick(ctx context.Context, userID, actorID int64, reason string) (Outcome, error) {
	user, err := o.store.GetUserByID(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading user: %w", err)
	}
	if !o.rcon.Usable() {
		return Outcome{}, ErrRconUnavailable
	}

	identifier := user.SteamID
	if identifier == "" {
		identifier = user.DisplayName
	}
	if err := o.rcon.KickPlayer(identifier, reason); err != nil {
		return Outcome{}, err
	}

	o.broadcast(domain.EventPlayerKicked, map[string]any{"user_id": userID})
	log.Info().Int64("user_id", userID).Int64("actor_id", actorID).Msg("player kicked from game server")

	return Outcome{Success: true, Messages: []string{"Player kicked from game server"}}, nil
}

func (o *Orchestrator) broadcast(t domain.EventType, data map[string]any) {
	if o.events != nil {
		o.events.Broadcast(domain.NewEvent(t, data))
	}
}
