package app

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Estimate/internal/clock"
	"github.com/dkeye/Estimate/internal/core"
	"github.com/dkeye/Estimate/internal/domain"
)

const (
	DefaultRoomTTL = 2 * time.Hour

	codeBytes    = 2
	tokenBytes   = 32
	maxCodeTries = 1 << 12
)

type ManagerOptions struct {
	Templates core.TemplateSource
	Clock     clock.Clock
	// RoomTTL is how long an empty room survives Cleanup.
	RoomTTL time.Duration
	// Random feeds room codes and admin tokens. Defaults to crypto/rand.
	Random io.Reader
}

type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomCode]core.RoomService

	templates core.TemplateSource
	clock     clock.Clock
	ttl       time.Duration
	random    io.Reader
}

func NewRoomManager(opts ManagerOptions) core.RoomManager {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.RoomTTL <= 0 {
		opts.RoomTTL = DefaultRoomTTL
	}
	if opts.Random == nil {
		opts.Random = rand.Reader
	}
	return &RoomManagerImpl{
		rooms:     make(map[domain.RoomCode]core.RoomService),
		templates: opts.Templates,
		clock:     opts.Clock,
		ttl:       opts.RoomTTL,
		random:    opts.Random,
	}
}

func (m *RoomManagerImpl) CreateRoom(adminSID core.SessionID, adminName string) (core.RoomService, string, error) {
	name, err := domain.NormalizeName(adminName)
	if err != nil {
		name = "Admin"
	}
	token, err := m.randomHex(tokenBytes)
	if err != nil {
		log.Error().Err(err).Str("module", "app.rooms").Msg("admin token generation failed")
		return nil, "", domain.WrapError(domain.CodeInternal, "generate admin token", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	code, err := m.uniqueCodeLocked()
	if err != nil {
		log.Error().Err(err).Str("module", "app.rooms").Msg("room code generation failed")
		return nil, "", domain.WrapError(domain.CodeInternal, "generate room code", err)
	}
	room := domain.NewRoom(code, domain.Admin{SID: string(adminSID), Name: name, Token: token}, m.clock.Now())
	svc := core.NewRoomService(room, m.templates, m.clock)
	m.rooms[code] = svc
	log.Info().Str("module", "app.rooms").Str("room", string(code)).Str("sid", string(adminSID)).Str("admin", name).Msg("room created")
	return svc, token, nil
}

func (m *RoomManagerImpl) uniqueCodeLocked() (domain.RoomCode, error) {
	for range maxCodeTries {
		raw, err := m.randomHex(codeBytes)
		if err != nil {
			return "", err
		}
		code := domain.RoomCode(strings.ToUpper(raw))
		if _, taken := m.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free room code after %d attempts", maxCodeTries)
}

func (m *RoomManagerImpl) randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(m.random, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (m *RoomManagerImpl) GetRoom(code domain.RoomCode) (core.RoomService, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[code]
	return room, ok
}

func (m *RoomManagerImpl) DeleteRoom(code domain.RoomCode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[code]; !ok {
		return false
	}
	delete(m.rooms, code)
	log.Info().Str("module", "app.rooms").Str("room", string(code)).Msg("room deleted")
	return true
}

func (m *RoomManagerImpl) List() []core.RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(m.rooms))
	for code, r := range m.rooms {
		out = append(out, core.RoomInfo{
			Code:             code,
			Status:           r.Status(),
			ParticipantCount: r.ParticipantCount(),
			CreatedAt:        r.CreatedAt(),
		})
	}
	slices.SortFunc(out, func(a, b core.RoomInfo) int { return strings.Compare(string(a.Code), string(b.Code)) })
	return out
}

func (m *RoomManagerImpl) Cleanup() []domain.RoomCode {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []domain.RoomCode
	for code, r := range m.rooms {
		if r.ParticipantCount() == 0 && now.Sub(r.CreatedAt()) > m.ttl {
			delete(m.rooms, code)
			removed = append(removed, code)
			log.Info().Str("module", "app.rooms").Str("room", string(code)).Msg("cleaning up old empty room")
		}
	}
	slices.Sort(removed)
	return removed
}
