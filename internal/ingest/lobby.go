package ingest

import (
	"errors"
	"strings"

	"github.com/cschnabel/mplog/internal/log"
	"github.com/cschnabel/mplog/internal/payload"
)

var errMalformedLobby = errors.New("lobby info without isHost")

// LobbySnapshot is the lobby metadata the log owner saw before a game started.
type LobbySnapshot struct {
	Host      *string
	Guest     *string
	HostMods  []string
	GuestMods []string
	IsHost    bool
}

func parseLobbyInfo(line string) (*LobbySnapshot, error) {
	isHost := boolField(line, "isHost")
	if isHost == nil {
		return nil, errMalformedLobby
	}

	snap := &LobbySnapshot{IsHost: *isHost}
	if v, ok := textField(line, "host"); ok {
		snap.Host = &v
	}
	if v, ok := textField(line, "guest"); ok {
		snap.Guest = &v
	}
	if v, ok := textField(line, "hostHash"); ok {
		snap.HostMods = payload.SplitList(v)
	}
	if v, ok := textField(line, "guestHash"); ok {
		snap.GuestMods = payload.SplitList(v)
	}
	return snap, nil
}

// names returns the log owner's and the opponent's display names.
func (s *LobbySnapshot) names() (logOwner, opponent string) {
	host, guest := "Host", "Guest"
	if s.Host != nil {
		host = *s.Host
	}
	if s.Guest != nil {
		guest = *s.Guest
	}
	if s.IsHost {
		return host, guest
	}
	return guest, host
}

// lobbyCorrelator pairs the most recent lobby info with the next game start.
// Every game start consumes the slot, whether or not it was filled.
type lobbyCorrelator struct {
	pending *LobbySnapshot
}

func (c *lobbyCorrelator) observe(snapshot *LobbySnapshot) {
	c.pending = snapshot
}

func (c *lobbyCorrelator) take() *LobbySnapshot {
	snap := c.pending
	c.pending = nil
	return snap
}

// CorrelateLobbies returns one entry per game-start line in lines: the lobby
// snapshot that preceded it since the previous start, or nil.
func CorrelateLobbies(lines []string) []*LobbySnapshot {
	var (
		c   lobbyCorrelator
		out []*LobbySnapshot
	)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ev, ok := classifyLine(line)
		if !ok {
			continue
		}
		switch ev := ev.(type) {
		case gameStartLine:
			out = append(out, c.take())
		case lobbyInfoLine:
			if ev.err != nil {
				log.Warn("malformed lobby info", "error", ev.err)
			}
			c.observe(ev.snapshot)
		}
	}
	return out
}
