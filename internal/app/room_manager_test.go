package app

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/dkeye/Estimate/internal/catalog"
	"github.com/dkeye/Estimate/internal/clock"
	"github.com/dkeye/Estimate/internal/core"
	"github.com/dkeye/Estimate/internal/domain"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestManager(clk clock.Clock, random io.Reader) core.RoomManager {
	return NewRoomManager(ManagerOptions{
		Templates: catalog.Default(),
		Clock:     clk,
		Random:    random,
	})
}

func TestCreateRoomCodesAreDistinct(t *testing.T) {
	m := newTestManager(clock.Fake(epoch), nil)
	seen := make(map[domain.RoomCode]bool)
	for i := 0; i < 500; i++ {
		room, token, err := m.CreateRoom("admin", "Admin")
		if err != nil {
			t.Fatal(err)
		}
		code := room.Code()
		if seen[code] {
			t.Fatalf("duplicate code %s", code)
		}
		seen[code] = true
		if len(code) != 4 || len(token) != 64 {
			t.Fatalf("code %q token len %d", code, len(token))
		}
	}
	if len(m.List()) != 500 {
		t.Fatalf("List() = %d rooms", len(m.List()))
	}
}

func TestCreateRoomRetriesOnCollision(t *testing.T) {
	token := bytes.Repeat([]byte{0}, tokenBytes)
	var script []byte
	script = append(script, token...)
	script = append(script, 0xab, 0xcd)
	script = append(script, token...)
	script = append(script, 0xab, 0xcd, 0x12, 0x34)

	m := newTestManager(clock.Fake(epoch), bytes.NewReader(script))
	first, _, err := m.CreateRoom("a1", "Admin")
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := m.CreateRoom("a2", "Admin")
	if err != nil {
		t.Fatal(err)
	}
	if first.Code() != "ABCD" || second.Code() != "1234" {
		t.Fatalf("codes = %s, %s", first.Code(), second.Code())
	}
}

func TestCreateRoomRandomFailure(t *testing.T) {
	m := newTestManager(clock.Fake(epoch), bytes.NewReader(nil))
	_, _, err := m.CreateRoom("a1", "Admin")
	if err == nil || domain.CodeOf(err) != domain.CodeInternal {
		t.Fatalf("err = %v, want internal", err)
	}
	if len(m.List()) != 0 {
		t.Fatal("room registered despite failure")
	}
}

func TestGetAndDeleteRoom(t *testing.T) {
	m := newTestManager(clock.Fake(epoch), nil)
	room, _, _ := m.CreateRoom("a1", "  ")
	if got, ok := m.GetRoom(room.Code()); !ok || got != room {
		t.Fatal("GetRoom did not return the created room")
	}
	if !m.DeleteRoom(room.Code()) {
		t.Fatal("DeleteRoom reported false")
	}
	if m.DeleteRoom(room.Code()) {
		t.Fatal("second DeleteRoom reported true")
	}
	if _, ok := m.GetRoom(room.Code()); ok {
		t.Fatal("room still present")
	}
}

func TestCleanup(t *testing.T) {
	clk := clock.Fake(epoch)
	m := newTestManager(clk, nil)

	oldEmpty, _, _ := m.CreateRoom("a1", "Admin")
	oldBusy, _, _ := m.CreateRoom("a2", "Admin")
	oldBusy.AddParticipant("p1", "Alice")

	clk.Advance(2 * time.Hour)
	youngEmpty, _, _ := m.CreateRoom("a3", "Admin")

	// Exactly at the retention boundary nothing is old yet.
	if removed := m.Cleanup(); len(removed) != 0 {
		t.Fatalf("removed at boundary: %v", removed)
	}

	clk.Advance(time.Hour)
	removed := m.Cleanup()
	if len(removed) != 1 || removed[0] != oldEmpty.Code() {
		t.Fatalf("removed = %v, want [%s]", removed, oldEmpty.Code())
	}
	if _, ok := m.GetRoom(oldBusy.Code()); !ok {
		t.Error("3h old room with a participant was evicted")
	}
	if _, ok := m.GetRoom(youngEmpty.Code()); !ok {
		t.Error("1h old empty room was evicted")
	}
}

func TestManagerErrorsAreDomainErrors(t *testing.T) {
	m := newTestManager(clock.Fake(epoch), errReader{})
	_, _, err := m.CreateRoom("a", "Admin")
	var de *domain.Error
	if !errors.As(err, &de) || !errors.Is(err, errBoom) {
		t.Fatalf("err = %v", err)
	}
}

var errBoom = errors.New("entropy exhausted")

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errBoom }
