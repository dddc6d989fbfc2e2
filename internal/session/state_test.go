package session

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/speakwell-backend/internal/domain/user"
)

func TestReduceSignInLoadSignOut(t *testing.T) {
	id := uuid.New()
	s := Reduce(Initial(), SignedIn{UserID: id, Email: "jo@example.com", Provider: "google"})
	if s.Phase != PhaseLoadingProfile || s.UserID != id {
		t.Fatalf("SignedIn: got %+v", s)
	}
	if s.Usable() {
		t.Fatalf("SignedIn: profile should not be usable yet")
	}

	s = Reduce(s, ProfileLoaded{Profile: &user.Profile{ID: id}})
	if s.Phase != PhaseReady || !s.Usable() {
		t.Fatalf("ProfileLoaded: got %+v", s)
	}

	s = Reduce(s, SignedOut{})
	if s.Phase != PhaseSignedOut || s.SignedIn() || s.Profile != nil {
		t.Fatalf("SignedOut: got %+v", s)
	}
}

func TestReduceOfflineAndFailure(t *testing.T) {
	id := uuid.New()
	s := Reduce(Initial(), SessionRestored{UserID: id})
	s = Reduce(s, ProfileEvent(OfflineResult(user.Placeholder(id, "", ""), "timeout")))
	if s.Phase != PhaseOffline || !s.Usable() {
		t.Fatalf("offline: got %+v", s)
	}

	s = Reduce(s, ProfileEvent(FailedResult[*user.Profile]("boom")))
	if s.Phase != PhaseFailed || s.Error != "boom" || s.Profile != nil {
		t.Fatalf("failed: got %+v", s)
	}

	// A later successful load recovers.
	s = Reduce(s, ProfileEvent(LoadedResult(&user.Profile{ID: id})))
	if s.Phase != PhaseReady || s.Error != "" {
		t.Fatalf("recover: got %+v", s)
	}
}

func TestReduceIgnoresStaleProfileEvents(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	s := Reduce(Initial(), ProfileLoaded{Profile: &user.Profile{ID: a}})
	if s.Phase != PhaseSignedOut {
		t.Fatalf("profile while signed out should be ignored: %+v", s)
	}
	s = Reduce(s, ProfileLoadFailed{Reason: "x"})
	if s.Phase != PhaseSignedOut {
		t.Fatalf("failure while signed out should be ignored: %+v", s)
	}

	s = Reduce(s, SignedIn{UserID: b})
	s = Reduce(s, ProfileLoaded{Profile: &user.Profile{ID: a}})
	if s.Phase != PhaseLoadingProfile || s.Profile != nil {
		t.Fatalf("profile for another user should be ignored: %+v", s)
	}
}

func TestReduceRestoreSameUserKeepsProfile(t *testing.T) {
	id := uuid.New()
	s := Reduce(Initial(), SignedIn{UserID: id})
	s = Reduce(s, ProfileLoaded{Profile: &user.Profile{ID: id}})
	s = Reduce(s, SessionRestored{UserID: id})
	if s.Phase != PhaseReady || s.Profile == nil {
		t.Fatalf("restore same user: got %+v", s)
	}
	other := uuid.New()
	s = Reduce(s, SessionRestored{UserID: other})
	if s.Phase != PhaseLoadingProfile || s.UserID != other || s.Profile != nil {
		t.Fatalf("restore other user: got %+v", s)
	}
}

func TestResultJSON(t *testing.T) {
	raw, err := json.Marshal(FailedResult[int]("nope"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(raw), "value") || !strings.Contains(string(raw), `"state":"failed"`) {
		t.Fatalf("failed result json: %s", raw)
	}
	raw, _ = json.Marshal(OfflineResult(7, "slow"))
	if !strings.Contains(string(raw), `"value":7`) {
		t.Fatalf("offline result json: %s", raw)
	}
	if v, ok := OfflineResult(7, "").Get(); !ok || v != 7 {
		t.Fatalf("Get: got %v %v", v, ok)
	}
	if _, ok := FailedResult[int]("").Get(); ok {
		t.Fatalf("Get: failed result should not be usable")
	}
}
