package session

import (
	"github.com/google/uuid"

	"github.com/yungbote/speakwell-backend/internal/domain/user"
)

type Phase string

const (
	PhaseSignedOut      Phase = "signed_out"
	PhaseLoadingProfile Phase = "loading_profile"
	PhaseReady          Phase = "ready"
	PhaseOffline        Phase = "offline"
	PhaseFailed         Phase = "failed"
)

// State is the per-session view of who is signed in and whether their
// profile is available. It is a value; Reduce returns a new one.
type State struct {
	Phase    Phase         `json:"phase"`
	UserID   uuid.UUID     `json:"user_id,omitempty"`
	Email    string        `json:"email,omitempty"`
	Provider string        `json:"provider,omitempty"`
	Profile  *user.Profile `json:"profile,omitempty"`
	Error    string        `json:"error,omitempty"`
}

func (s State) SignedIn() bool { return s.Phase != PhaseSignedOut && s.UserID != uuid.Nil }

// Usable reports whether the view can render profile data, real or placeholder.
func (s State) Usable() bool {
	return (s.Phase == PhaseReady || s.Phase == PhaseOffline) && s.Profile != nil
}

type Event interface{ sessionEvent() }

// SessionRestored fires when an existing session token is presented again.
type SessionRestored struct {
	UserID   uuid.UUID
	Email    string
	Provider string
}

type SignedIn struct {
	UserID   uuid.UUID
	Email    string
	Provider string
}

type SignedOut struct{}

type ProfileLoaded struct {
	Profile *user.Profile
	Offline bool
}

type ProfileLoadFailed struct {
	Reason string
}

func (SessionRestored) sessionEvent()   {}
func (SignedIn) sessionEvent()          {}
func (SignedOut) sessionEvent()         {}
func (ProfileLoaded) sessionEvent()     {}
func (ProfileLoadFailed) sessionEvent() {}

// Initial is the state before any event.
func Initial() State { return State{Phase: PhaseSignedOut} }

// Reduce applies one event. Profile events for a user other than the one
// signed in, or arriving while signed out, are stale and ignored.
func Reduce(s State, e Event) State {
	switch ev := e.(type) {
	case SessionRestored:
		if s.SignedIn() && s.UserID == ev.UserID {
			return s
		}
		return State{Phase: PhaseLoadingProfile, UserID: ev.UserID, Email: ev.Email, Provider: ev.Provider}
	case SignedIn:
		return State{Phase: PhaseLoadingProfile, UserID: ev.UserID, Email: ev.Email, Provider: ev.Provider}
	case SignedOut:
		return Initial()
	case ProfileLoaded:
		if !s.SignedIn() || ev.Profile == nil || ev.Profile.ID != s.UserID {
			return s
		}
		next := s
		next.Profile = ev.Profile
		next.Error = ""
		next.Phase = PhaseReady
		if ev.Offline {
			next.Phase = PhaseOffline
		}
		return next
	case ProfileLoadFailed:
		if !s.SignedIn() {
			return s
		}
		next := s
		next.Phase = PhaseFailed
		next.Profile = nil
		next.Error = ev.Reason
		return next
	default:
		return s
	}
}

// ProfileEvent converts a profile load outcome into the matching event.
func ProfileEvent(r Result[*user.Profile]) Event {
	switch r.State {
	case Loaded:
		return ProfileLoaded{Profile: r.Value}
	case Offline:
		return ProfileLoaded{Profile: r.Value, Offline: true}
	default:
		return ProfileLoadFailed{Reason: r.Reason}
	}
}
