package core

import (
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Estimate/internal/catalog"
	"github.com/dkeye/Estimate/internal/clock"
	"github.com/dkeye/Estimate/internal/domain"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestRoom(t *testing.T) (RoomService, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(epoch)
	room := domain.NewRoom("ABCD", domain.Admin{SID: "admin", Name: "Admin", Token: "secret"}, clk.Now())
	return NewRoomService(room, catalog.Default(), clk), clk
}

func assertStatusInvariant(t *testing.T, r RoomService) {
	t.Helper()
	snap := r.Snapshot()
	if (snap.Status == domain.RoomWaiting) != (snap.CurrentRound == nil) {
		t.Fatalf("status %q with current round %v", snap.Status, snap.CurrentRound)
	}
	if snap.CurrentRound != nil && string(snap.Status) != string(snap.CurrentRound.Status) {
		t.Fatalf("room status %q does not mirror round status %q", snap.Status, snap.CurrentRound.Status)
	}
}

func hasVoted(t *testing.T, r RoomService, sid SessionID) bool {
	t.Helper()
	p, ok := r.Participant(sid)
	if !ok {
		t.Fatalf("participant %s missing", sid)
	}
	return p.HasVoted
}

func TestStartRoundValidation(t *testing.T) {
	timer := func(n int) *int { return &n }
	tests := []struct {
		name    string
		ids     []domain.TemplateID
		topic   string
		timer   *int
		wantErr error
	}{
		{name: "no templates", ids: nil, topic: "x", wantErr: domain.ErrNoTemplates},
		{name: "unknown template", ids: []domain.TemplateID{"fibonacci", "nope"}, topic: "x", wantErr: domain.ErrUnknownTemplate},
		{name: "blank topic", ids: []domain.TemplateID{"fibonacci"}, topic: "  ", wantErr: domain.ErrTopicRequired},
		{name: "zero timer", ids: []domain.TemplateID{"fibonacci"}, topic: "x", timer: timer(0), wantErr: domain.ErrInvalidTimer},
		{name: "huge timer", ids: []domain.TemplateID{"fibonacci"}, topic: "x", timer: timer(domain.MaxTimerSeconds + 1), wantErr: domain.ErrInvalidTimer},
		{name: "ok with timer", ids: []domain.TemplateID{"fibonacci"}, topic: "Login page", timer: timer(60)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRoom(t)
			round, defs, err := r.StartRound(tt.ids, tt.topic, tt.timer)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if r.Status() != domain.RoomWaiting {
					t.Fatalf("rejected start mutated room status to %q", r.Status())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if round.ID != 1 || round.Status != domain.RoundVoting || *round.TimerSeconds != 60 {
				t.Errorf("round = %+v", round)
			}
			if len(defs) != 1 || defs[0].ID != "fibonacci" {
				t.Errorf("defs = %v", defs)
			}
			assertStatusInvariant(t, r)
		})
	}
}

func TestStartRoundDedupesTemplates(t *testing.T) {
	r, _ := newTestRoom(t)
	round, defs, err := r.StartRound([]domain.TemplateID{"traffic", "fibonacci", "traffic"}, "x", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(round.TemplateIDs) != 2 || round.TemplateIDs[0] != "traffic" || len(defs) != 2 {
		t.Errorf("TemplateIDs = %v", round.TemplateIDs)
	}
}

func TestVoteToggle(t *testing.T) {
	r, _ := newTestRoom(t)
	r.AddParticipant("p1", "Alice")
	if _, _, err := r.StartRound([]domain.TemplateID{"fibonacci"}, "Story", nil); err != nil {
		t.Fatal(err)
	}

	out, err := r.CastVote("p1", "fibonacci", "5")
	if err != nil || out != VoteRecorded {
		t.Fatalf("first vote = %v, %v", out, err)
	}
	if !hasVoted(t, r, "p1") || r.VoteCount() != 1 {
		t.Fatal("vote not recorded")
	}

	out, err = r.CastVote("p1", "fibonacci", "5")
	if err != nil || out != VoteRemoved {
		t.Fatalf("repeat vote = %v, %v, want removed", out, err)
	}
	if hasVoted(t, r, "p1") {
		t.Error("hasVoted still true after toggle-off")
	}
	if r.VoteCount() != 0 {
		t.Error("empty ballot should be dropped from the votes map")
	}
	if cur := r.CurrentRound(); len(cur.Votes) != 0 {
		t.Errorf("votes = %v, want empty", cur.Votes)
	}

	if out, _ = r.CastVote("p1", "fibonacci", "5"); out != VoteRecorded {
		t.Fatalf("vote after toggle-off = %v", out)
	}
	if out, _ = r.CastVote("p1", "fibonacci", "8"); out != VoteChanged {
		t.Fatalf("different value = %v, want changed", out)
	}
	if v, _ := r.CurrentRound().VoteOf("p1", "fibonacci"); v.Value != "8" {
		t.Errorf("recorded value = %q, want 8", v.Value)
	}
}

func TestCastVoteRejections(t *testing.T) {
	r, _ := newTestRoom(t)
	r.AddParticipant("p1", "Alice")

	if _, err := r.CastVote("p1", "fibonacci", "5"); !errors.Is(err, domain.ErrNoActiveVoting) {
		t.Errorf("vote while waiting: %v", err)
	}
	if _, _, err := r.StartRound([]domain.TemplateID{"fibonacci"}, "x", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CastVote("p1", "traffic", "green"); !errors.Is(err, domain.ErrTemplateNotInRound) {
		t.Errorf("vote for foreign template: %v", err)
	}
	if _, err := r.CastVote("p1", "fibonacci", "4"); !errors.Is(err, domain.ErrInvalidVote) {
		t.Errorf("vote outside domain: %v", err)
	}
	if _, err := r.CastVote("stranger", "fibonacci", "5"); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Errorf("vote from non participant: %v", err)
	}
	if r.VoteCount() != 0 {
		t.Fatal("rejected votes were recorded")
	}

	if _, err := r.Reveal(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CastVote("p1", "fibonacci", "5"); !errors.Is(err, domain.ErrNoActiveVoting) {
		t.Errorf("vote after reveal: %v", err)
	}
}

func TestHasVotedRequiresEveryTemplate(t *testing.T) {
	r, _ := newTestRoom(t)
	r.AddParticipant("p1", "Alice")
	if _, _, err := r.StartRound([]domain.TemplateID{"fibonacci", "traffic"}, "x", nil); err != nil {
		t.Fatal(err)
	}
	r.CastVote("p1", "fibonacci", "3")
	if hasVoted(t, r, "p1") {
		t.Fatal("hasVoted after one of two templates")
	}
	r.CastVote("p1", "traffic", "green")
	if !hasVoted(t, r, "p1") {
		t.Fatal("hasVoted false after voting on every template")
	}
	if err := r.RemoveVote("p1", "traffic"); err != nil {
		t.Fatal(err)
	}
	if hasVoted(t, r, "p1") {
		t.Fatal("hasVoted true after removing a vote")
	}
	if err := r.RemoveVote("p1", "fibonacci"); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.CurrentRound().Votes["p1"]; ok {
		t.Fatal("empty ballot left in votes map")
	}
}

func TestRoundLifecycle(t *testing.T) {
	r, clk := newTestRoom(t)
	r.AddParticipant("p1", "Alice")
	r.AddParticipant("p2", "Bob")
	assertStatusInvariant(t, r)

	if _, err := r.Reveal(); !errors.Is(err, domain.ErrNoActiveRound) {
		t.Errorf("reveal without round: %v", err)
	}
	if _, err := r.EndRound(); !errors.Is(err, domain.ErrNoActiveRound) {
		t.Errorf("end without round: %v", err)
	}

	r.StartRound([]domain.TemplateID{"numeric5"}, "First", nil)
	assertStatusInvariant(t, r)
	r.CastVote("p1", "numeric5", "2")
	r.CastVote("p2", "numeric5", "4")

	if st, _ := r.Stats(); st.Votes != nil {
		t.Error("raw votes visible before reveal")
	}
	clk.Advance(time.Minute)
	st, err := r.Reveal()
	if err != nil {
		t.Fatal(err)
	}
	assertStatusInvariant(t, r)
	if r.Status() != domain.RoomRevealed {
		t.Fatalf("status = %q", r.Status())
	}
	if *st.ByTemplate["numeric5"].Average != 3 || len(st.Votes) != 2 {
		t.Errorf("stats = %+v", st)
	}
	if cur := r.CurrentRound(); cur.RevealedAt == nil || !cur.RevealedAt.Equal(epoch.Add(time.Minute)) {
		t.Errorf("RevealedAt = %v", cur.RevealedAt)
	}
	if !hasVoted(t, r, "p1") {
		t.Error("reveal must not reset hasVoted")
	}

	ended, err := r.EndRound()
	if err != nil {
		t.Fatal(err)
	}
	assertStatusInvariant(t, r)
	if ended.EndedAt == nil || ended.ID != 1 {
		t.Errorf("ended round = %+v", ended)
	}
	if hasVoted(t, r, "p1") || hasVoted(t, r, "p2") {
		t.Error("hasVoted not reset on end")
	}
	hist := r.History()
	if len(hist) != 1 || len(hist[0].Votes) != 2 {
		t.Fatalf("history = %v", hist)
	}

	next, _, _ := r.StartRound([]domain.TemplateID{"numeric5"}, "Second", nil)
	if next.ID != 2 {
		t.Errorf("next round id = %d, want 2", next.ID)
	}
	if r.VoteCount() != 0 {
		t.Error("votes leaked into the next round")
	}
	// Ending directly from voting is allowed.
	if _, err := r.EndRound(); err != nil {
		t.Errorf("end from voting: %v", err)
	}
	assertStatusInvariant(t, r)
}

func TestStartRoundReplacesActiveRound(t *testing.T) {
	r, _ := newTestRoom(t)
	r.AddParticipant("p1", "Alice")
	r.StartRound([]domain.TemplateID{"fibonacci"}, "Old", nil)
	r.CastVote("p1", "fibonacci", "3")

	round, _, err := r.StartRound([]domain.TemplateID{"traffic"}, "New", nil)
	if err != nil {
		t.Fatal(err)
	}
	if round.ID != 1 || round.Topic != "New" {
		t.Errorf("replacement round = %+v", round)
	}
	if r.VoteCount() != 0 || hasVoted(t, r, "p1") {
		t.Error("votes from the replaced round carried over")
	}
	if len(r.History()) != 0 {
		t.Error("replaced round must not be archived")
	}
}

func TestRebindAdmin(t *testing.T) {
	r, _ := newTestRoom(t)
	if err := r.RebindAdmin("other", "wrong"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("wrong token: %v", err)
	}
	if err := r.RebindAdmin("other", ""); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("empty token: %v", err)
	}
	if !r.IsAdmin("admin") {
		t.Fatal("failed rebind changed admin")
	}
	if r.VerifyToken("wrong") || r.VerifyToken("") || !r.VerifyToken("secret") {
		t.Fatal("VerifyToken disagrees with RebindAdmin")
	}
	if err := r.RebindAdmin("other", "secret"); err != nil {
		t.Fatal(err)
	}
	if r.IsAdmin("admin") || !r.IsAdmin("other") {
		t.Fatal("admin did not move to the new connection")
	}
}

func TestParticipantsKeepJoinOrder(t *testing.T) {
	r, _ := newTestRoom(t)
	r.AddParticipant("p2", "Bob")
	r.AddParticipant("p1", "Alice")
	r.AddParticipant("p3", "Carol")
	if _, ok := r.RemoveParticipant("p1"); !ok {
		t.Fatal("remove failed")
	}
	if _, ok := r.RemoveParticipant("p1"); ok {
		t.Fatal("second remove should report false")
	}
	ps := r.Participants()
	if len(ps) != 2 || ps[0].ID != "p2" || ps[1].ID != "p3" {
		t.Errorf("participants = %v", ps)
	}
	if r.ParticipantCount() != 2 {
		t.Errorf("count = %d", r.ParticipantCount())
	}
}
