package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/cschnabel/mplog/internal/log"
	"github.com/cschnabel/mplog/internal/model"
	"github.com/cschnabel/mplog/internal/payload"
)

// ErrParseFailed marks a parse that aborted on an internal defect. A parse that
// simply found no games is not an error.
var ErrParseFailed = errors.New("parse failed")

const ctxCheckInterval = 1024

type Option func(*Parser)

// WithClock replaces the clock used for lines that carry no timestamp.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		p.now = now
	}
}

type Parser struct {
	now func() time.Time
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type Result struct {
	Games  []model.Game
	Stats  model.ParseStats
	Status model.RunStatus
}

// inGame is the InGame state. The blind index is only meaningful while hasBlind is set.
type inGame struct {
	game     model.Game
	blind    int
	hasBlind bool
}

// parseState belongs to exactly one Parse call. current == nil is the NoGame state.
type parseState struct {
	now     func() time.Time
	stats   *model.ParseStats
	current *inGame
	lobby   lobbyCorrelator
	options *model.GameOptions
	games   []model.Game
	nextID  int
	lastTS  time.Time
}

func (p *Parser) ParseFile(ctx context.Context, logPath string) (Result, error) {
	file, err := os.Open(logPath)
	if err != nil {
		return Result{Status: model.RunStatusFailed}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	res, err := p.parse(ctx, file, logPath)
	if err != nil {
		return res, err
	}
	log.Debug("parsed log",
		"path", logPath,
		"lines", res.Stats.LinesRead,
		"games", res.Stats.GamesFound,
		"duration", res.Stats.CompletedAt.Sub(res.Stats.StartedAt))
	return res, nil
}

func (p *Parser) ParseString(ctx context.Context, text string) (Result, error) {
	return p.parse(ctx, strings.NewReader(text), "")
}

func (p *Parser) Parse(ctx context.Context, r io.Reader) (Result, error) {
	return p.parse(ctx, r, "")
}

func (p *Parser) parse(ctx context.Context, r io.Reader, source string) (res Result, err error) {
	stats := model.ParseStats{Source: source, StartedAt: p.now().UTC()}
	state := &parseState{now: p.now, stats: &stats}

	defer func() {
		if rec := recover(); rec != nil {
			stats.CompletedAt = p.now().UTC()
			res = Result{Stats: stats, Status: model.RunStatusFailed}
			err = fmt.Errorf("%w: %v", ErrParseFailed, rec)
		}
	}()

	// A BOM switches decoding to UTF-8 without the mark or to UTF-16.
	decoded := transform.NewReader(r, unicode.BOMOverride(transform.Nop))
	reader := bufio.NewReaderSize(decoded, 1024*1024)

	for {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return Result{Stats: stats, Status: model.RunStatusFailed}, fmt.Errorf("read line: %w", readErr)
		}
		if len(line) == 0 && errors.Is(readErr, io.EOF) {
			break
		}

		stats.LinesRead++
		stats.BytesRead += int64(len(line))
		if stats.LinesRead%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Result{Stats: stats, Status: model.RunStatusFailed}, err
			}
		}

		state.processLine(line)

		if errors.Is(readErr, io.EOF) {
			break
		}
	}

	state.finalize(state.lastTS)
	stats.CompletedAt = p.now().UTC()

	res = Result{Games: state.games, Stats: stats, Status: model.RunStatusOK}
	if len(res.Games) == 0 {
		res.Status = model.RunStatusNoGames
	}
	return res, nil
}

func (s *parseState) processLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	ts := lineTimestamp(line, s.now)
	s.lastTS = ts

	ev, ok := classifyLine(line)
	if !ok {
		s.stats.IgnoredLines++
		return
	}

	switch ev := ev.(type) {
	case gameStartLine:
		s.startGame(ts, ev)
		return
	case lobbyInfoLine:
		if ev.err != nil {
			log.Warn("malformed lobby info", "line", s.stats.LinesRead, "error", ev.err)
			s.stats.MalformedLobbies++
		}
		s.lobby.observe(ev.snapshot)
		return
	case lobbyOptionsLine:
		opts := ev.options
		s.options = &opts
		return
	}

	if s.current == nil {
		s.stats.IgnoredLines++
		return
	}
	s.applyInGame(ts, ev)
}

func (s *parseState) applyInGame(ts time.Time, ev lineEvent) {
	g := &s.current.game

	switch ev := ev.(type) {
	case endGameJokersLine:
		items, err := payload.DecodeItems(ev.keys)
		if err != nil {
			log.Warn("decode end-game jokers", "side", ev.side, "game", g.ID, "error", err)
			s.stats.DecodeFailures++
			items = []string{}
		}
		who := "Your"
		if ev.side == model.SideOpponent {
			g.OpponentJokers = items
			who = "Opponent's"
		} else {
			g.LogOwnerJokers = items
		}
		s.emit(ts, model.EventTypeInfo, fmt.Sprintf("%s final jokers: %s", who, strings.Join(items, ", ")), "")

	case enemyInfoLine:
		if ev.lives != nil {
			if g.OpponentLastLives != nil && *ev.lives < *g.OpponentLastLives {
				s.emit(ts, model.EventTypeStatus, fmt.Sprintf("Opponent lost a life (%d left)", *ev.lives), "")
			}
			g.OpponentLastLives = ev.lives
		}
		if ev.skips != nil {
			if g.OpponentLastSkips != nil && *ev.skips > *g.OpponentLastSkips {
				delta := *ev.skips - *g.OpponentLastSkips
				text := "Opponent skipped a blind"
				if delta > 1 {
					text = fmt.Sprintf("Opponent skipped %d blinds", delta)
				}
				s.emit(ts, model.EventTypeStatus, text, "")
				for i := int64(0); i < delta; i++ {
					g.OpponentShopSpent = append(g.OpponentShopSpent, nil)
				}
			}
			g.OpponentLastSkips = ev.skips
		}
		if ev.score != nil && s.current.hasBlind {
			s.addScore(ts, model.SideOpponent, *ev.score, ev.handsLeft)
		}

	case playHandLine:
		if ev.score != nil && s.current.hasBlind {
			s.addScore(ts, model.SideLogOwner, *ev.score, ev.handsLeft)
		}

	case setLocationLine:
		if m := reBlindLocation.FindStringSubmatch(ev.location); len(m) == 2 {
			n := len(g.PvpBlinds) + 1
			g.PvpBlinds = append(g.PvpBlinds, model.PvpBlind{
				BlindNumber: n,
				StartedAt:   ts,
				HandScores:  []model.HandScore{},
			})
			s.current.blind = n - 1
			s.current.hasBlind = true
			s.emit(ts, model.EventTypeEvent, fmt.Sprintf("Started blind %d (%s)", n, m[1]), "")
			return
		}
		if ev.location == "loc_shop" {
			s.emit(ts, model.EventTypeShop, "Entered shop", "")
		}

	case endPvPLine:
		if ev.lost == nil || !s.current.hasBlind {
			return
		}
		blind := &g.PvpBlinds[s.current.blind]
		end := ts
		blind.EndedAt = &end
		verb := "Won"
		blind.Winner = model.WinnerLogOwner
		if *ev.lost {
			verb = "Lost"
			blind.Winner = model.WinnerOpponent
		}
		s.emit(ts, model.EventTypeStatus, fmt.Sprintf("%s blind %d (%s vs %s)",
			verb, blind.BlindNumber, formatScore(blind.LogOwnerScore), formatScore(blind.OpponentScore)), "")
		s.current.hasBlind = false

	case gameResultLine:
		if g.Winner != model.WinnerUnknown {
			return
		}
		g.Winner = ev.winner
		text := "Won the game"
		if ev.winner == model.WinnerOpponent {
			text = "Lost the game"
		}
		s.emit(ts, model.EventTypeSystem, text, "")

	case moneyMovedLine:
		if ev.amount == nil {
			return
		}
		amount := *ev.amount
		if amount >= 0 {
			g.MoneyGained += amount
			if amount > 0 {
				s.emit(ts, model.EventTypeAction, fmt.Sprintf("Gained $%d", amount), "")
			}
			return
		}
		g.MoneySpent += -amount
		s.emit(ts, model.EventTypeAction, fmt.Sprintf("Spent $%d", -amount), "")

	case boughtCardLine:
		g.ShopPurchases = append(g.ShopPurchases, model.ShopPurchase{Timestamp: ts, Card: ev.card, Cost: ev.cost})
		text := "Bought " + displayCard(ev.card)
		if ev.cost != nil {
			text += fmt.Sprintf(" for $%d", *ev.cost)
		}
		s.emit(ts, model.EventTypeShop, text, ev.card)

	case rerollShopLine:
		text := "Rerolled shop"
		if ev.cost != nil {
			text += fmt.Sprintf(" for $%d", *ev.cost)
		}
		s.emit(ts, model.EventTypeShop, text, "")

	case usedCardLine:
		s.emit(ts, model.EventTypeAction, "Used "+displayCard(ev.card), ev.card)

	case soldCardLine:
		s.emit(ts, model.EventTypeShop, "Sold "+displayCard(ev.card), ev.card)

	case spentLastShopLine:
		if ev.side == model.SideOpponent {
			g.OpponentShopSpent = append(g.OpponentShopSpent, ev.amount)
			if ev.amount == nil {
				s.emit(ts, model.EventTypeShop, "Opponent left the shop", "")
				return
			}
			g.OpponentMoneySpent += *ev.amount
			s.emit(ts, model.EventTypeShop, fmt.Sprintf("Opponent spent $%d in the shop", *ev.amount), "")
			return
		}
		g.LogOwnerShopSpent = append(g.LogOwnerShopSpent, ev.amount)
		if ev.amount != nil {
			s.emit(ts, model.EventTypeShop, fmt.Sprintf("Spent $%d in the shop", *ev.amount), "")
		}

	case skipLine:
		g.LogOwnerShopSpent = append(g.LogOwnerShopSpent, nil)
		s.emit(ts, model.EventTypeAction, "Skipped blind", "")

	default:
		panic(fmt.Sprintf("unhandled line event %T", ev))
	}
}

// addScore applies a cumulative score report. A report below the current total
// is dropped so totals never decrease.
func (s *parseState) addScore(ts time.Time, side model.Side, total float64, handsLeft *int64) {
	blind := &s.current.game.PvpBlinds[s.current.blind]
	current := &blind.LogOwnerScore
	if side == model.SideOpponent {
		current = &blind.OpponentScore
	}
	if total < *current {
		log.Debug("dropped decreasing score", "side", side, "total", total, "current", *current)
		return
	}

	gained := total - *current
	*current = total
	blind.HandScores = append(blind.HandScores, model.HandScore{
		Timestamp: ts,
		Gained:    gained,
		Total:     total,
		HandsLeft: handsLeft,
		Side:      side,
	})
	if gained <= 0 {
		return
	}

	text := fmt.Sprintf("Scored %s (total %s)", formatScore(gained), formatScore(total))
	if side == model.SideOpponent {
		text = "Opponent " + strings.ToLower(text[:1]) + text[1:]
	}
	s.emit(ts, model.EventTypeEvent, text, "")
}

// formatScore prints whole scores without an exponent until they get too long
// to read.
func formatScore(v float64) string {
	if math.Abs(v) < 1e21 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (s *parseState) startGame(ts time.Time, ev gameStartLine) {
	s.finalize(ts)

	s.nextID++
	g := model.Game{
		ID:                s.nextID,
		Deck:              ev.deck,
		Seed:              ev.seed,
		StartedAt:         ts,
		LogOwnerShopSpent: []*int64{},
		OpponentShopSpent: []*int64{},
		ShopPurchases:     []model.ShopPurchase{},
		PvpBlinds:         []model.PvpBlind{},
		Events:            []model.LogEvent{},
		LogOwnerJokers:    []string{},
		OpponentJokers:    []string{},
	}

	if snap := s.lobby.take(); snap != nil {
		isHost := snap.IsHost
		owner, opponent := snap.names()
		g.Host = snap.Host
		g.Guest = snap.Guest
		g.IsHost = &isHost
		g.LogOwnerName = &owner
		g.OpponentName = &opponent
		g.HostMods = snap.HostMods
		g.GuestMods = snap.GuestMods
	}

	if s.options != nil || ev.stake != nil {
		opts := model.GameOptions{}
		if s.options != nil {
			opts = cloneOptions(*s.options)
		}
		if ev.stake != nil {
			opts.Stake = ev.stake
		}
		g.Options = &opts
	}

	s.current = &inGame{game: g}

	text := "Game started"
	if g.OpponentName != nil {
		text += " vs " + *g.OpponentName
	}
	s.emit(ts, model.EventTypeSystem, text, "")
}

// finalize closes the current game. The end time is the last event's
// timestamp, else fallback, else the start time.
func (s *parseState) finalize(fallback time.Time) {
	if s.current == nil {
		return
	}

	g := s.current.game
	end := g.StartedAt
	switch {
	case len(g.Events) > 0:
		end = g.Events[len(g.Events)-1].Timestamp
	case !fallback.IsZero():
		end = fallback
	}
	g.EndedAt = &end
	g.Duration = end.Sub(g.StartedAt)

	s.games = append(s.games, g)
	s.stats.GamesFound++
	s.current = nil
}

func (s *parseState) emit(ts time.Time, typ model.EventType, text, img string) {
	s.current.game.Events = append(s.current.game.Events, model.LogEvent{
		Timestamp: ts,
		Text:      text,
		Type:      typ,
		Img:       img,
	})
	s.stats.EventsRecorded++
}

func displayCard(card string) string {
	if card == "" {
		return "a card"
	}
	return card
}

func cloneOptions(in model.GameOptions) model.GameOptions {
	out := in
	if in.Toggles != nil {
		out.Toggles = make(map[string]bool, len(in.Toggles))
		for k, v := range in.Toggles {
			out.Toggles[k] = v
		}
	}
	if in.Extra != nil {
		out.Extra = make(map[string]string, len(in.Extra))
		for k, v := range in.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
