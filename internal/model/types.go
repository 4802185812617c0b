package model

import (
	"fmt"
	"time"

	"github.com/samber/lo"
)

type ParseStats struct {
	Source           string    `json:"source"`
	LinesRead        int64     `json:"linesRead"`
	BytesRead        int64     `json:"bytesRead"`
	GamesFound       int64     `json:"gamesFound"`
	EventsRecorded   int64     `json:"eventsRecorded"`
	IgnoredLines     int64     `json:"ignoredLines"`
	DecodeFailures   int64     `json:"decodeFailures"`
	MalformedLobbies int64     `json:"malformedLobbies"`
	StartedAt        time.Time `json:"startedAt"`
	CompletedAt      time.Time `json:"completedAt"`
}

type Winner string

const (
	WinnerUnknown  Winner = ""
	WinnerLogOwner Winner = "logOwner"
	WinnerOpponent Winner = "opponent"
)

type Side string

const (
	SideLogOwner Side = "logOwner"
	SideOpponent Side = "opponent"
)

type EventType string

const (
	EventTypeEvent  EventType = "event"
	EventTypeStatus EventType = "status"
	EventTypeSystem EventType = "system"
	EventTypeShop   EventType = "shop"
	EventTypeAction EventType = "action"
	EventTypeError  EventType = "error"
	EventTypeInfo   EventType = "info"
)

type LogEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Type      EventType `json:"type"`
	Img       string    `json:"img,omitempty"`
}

type HandScore struct {
	Timestamp time.Time `json:"timestamp"`
	Gained    float64   `json:"gained"`
	Total     float64   `json:"total"`
	HandsLeft *int64    `json:"handsLeft"`
	Side      Side      `json:"side"`
}

type PvpBlind struct {
	BlindNumber   int         `json:"blindNumber"`
	StartedAt     time.Time   `json:"startedAt"`
	EndedAt       *time.Time  `json:"endedAt"`
	LogOwnerScore float64     `json:"logOwnerScore"`
	OpponentScore float64     `json:"opponentScore"`
	HandScores    []HandScore `json:"handScores"`
	Winner        Winner      `json:"winner"`
}

// Scoreless reports whether neither side scored in the blind.
func (b PvpBlind) Scoreless() bool {
	return b.LogOwnerScore == 0 && b.OpponentScore == 0
}

type GameOptions struct {
	Ruleset       string            `json:"ruleset,omitempty"`
	Gamemode      string            `json:"gamemode,omitempty"`
	Stake         *int64            `json:"stake,omitempty"`
	StartingLives *int64            `json:"startingLives,omitempty"`
	Toggles       map[string]bool   `json:"toggles,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

type ShopPurchase struct {
	Timestamp time.Time `json:"timestamp"`
	Card      string    `json:"card"`
	Cost      *int64    `json:"cost"`
}

type Game struct {
	ID                 int            `json:"id"`
	Host               *string        `json:"host"`
	Guest              *string        `json:"guest"`
	IsHost             *bool          `json:"isHost"`
	LogOwnerName       *string        `json:"logOwnerName"`
	OpponentName       *string        `json:"opponentName"`
	HostMods           []string       `json:"hostMods"`
	GuestMods          []string       `json:"guestMods"`
	Deck               *string        `json:"deck"`
	Seed               *string        `json:"seed"`
	Options            *GameOptions   `json:"options"`
	MoneyGained        int64          `json:"moneyGained"`
	MoneySpent         int64          `json:"moneySpent"`
	OpponentMoneySpent int64          `json:"opponentMoneySpent"`
	LogOwnerShopSpent  []*int64       `json:"logOwnerShopSpending"`
	OpponentShopSpent  []*int64       `json:"opponentShopSpending"`
	ShopPurchases      []ShopPurchase `json:"shopPurchases"`
	OpponentLastLives  *int64         `json:"opponentLastLives"`
	OpponentLastSkips  *int64         `json:"opponentLastSkips"`
	StartedAt          time.Time      `json:"startedAt"`
	EndedAt            *time.Time     `json:"endedAt"`
	Duration           time.Duration  `json:"durationNs"`
	PvpBlinds          []PvpBlind     `json:"pvpBlinds"`
	Events             []LogEvent     `json:"events"`
	LogOwnerJokers     []string       `json:"logOwnerFinalJokers"`
	OpponentJokers     []string       `json:"opponentFinalJokers"`
	Winner             Winner         `json:"winner"`
}

func (g *Game) TabKey() string {
	return fmt.Sprintf("game-%d", g.ID)
}

func (g *Game) DurationSeconds() float64 {
	return g.Duration.Seconds()
}

// RenumberedBlinds returns the blinds in which either side scored, numbered 1..n.
func (g *Game) RenumberedBlinds() []PvpBlind {
	played := lo.Reject(g.PvpBlinds, func(b PvpBlind, _ int) bool { return b.Scoreless() })
	return lo.Map(played, func(b PvpBlind, i int) PvpBlind {
		b.BlindNumber = i + 1
		return b
	})
}

type ShopSlot struct {
	Index    int    `json:"index"`
	LogOwner *int64 `json:"logOwner"`
	Opponent *int64 `json:"opponent"`
}

// ShopSlots zips both sides' shop spending by visit index. A nil entry is a
// skipped or unreported visit.
func (g *Game) ShopSlots() []ShopSlot {
	n := max(len(g.LogOwnerShopSpent), len(g.OpponentShopSpent))
	out := make([]ShopSlot, n)
	for i := range out {
		out[i].Index = i
		if i < len(g.LogOwnerShopSpent) {
			out[i].LogOwner = g.LogOwnerShopSpent[i]
		}
		if i < len(g.OpponentShopSpent) {
			out[i].Opponent = g.OpponentShopSpent[i]
		}
	}
	return out
}

type RunStatus string

const (
	RunStatusOK      RunStatus = "ok"
	RunStatusNoGames RunStatus = "no_games"
	RunStatusFailed  RunStatus = "failed"
)

type RunRow struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Status      RunStatus `json:"status"`
	Games       int64     `json:"games"`
	Error       string    `json:"error,omitempty"`
	StartedAt   string    `json:"startedAt"`
	CompletedAt string    `json:"completedAt"`
}

type GameRow struct {
	RunID     string `json:"runId"`
	GameNo    int64  `json:"gameNo"`
	Winner    string `json:"winner"`
	LogOwner  string `json:"logOwner"`
	Opponent  string `json:"opponent"`
	StartedAt string `json:"startedAt"`
	EndedAt   string `json:"endedAt"`
}

type RunDetail struct {
	Run   RunRow    `json:"run"`
	Games []GameRow `json:"games"`
}
