package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/cschnabel/mplog/internal/model"
	"github.com/cschnabel/mplog/internal/payload"
)

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestParser() *Parser {
	return NewParser(WithClock(func() time.Time { return fixedNow }))
}

func parseLines(t *testing.T, lines ...string) Result {
	t.Helper()
	res, err := newTestParser().ParseString(context.Background(), strings.Join(lines, "\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return res
}

func onlyGame(t *testing.T, res Result) model.Game {
	t.Helper()
	if len(res.Games) != 1 {
		t.Fatalf("expected 1 game, got %d", len(res.Games))
	}
	return res.Games[0]
}

func lastEvent(t *testing.T, g model.Game) model.LogEvent {
	t.Helper()
	if len(g.Events) == 0 {
		t.Fatalf("game %d has no events", g.ID)
	}
	return g.Events[len(g.Events)-1]
}

func TestMoneyMovedNegativeIsSpent(t *testing.T) {
	res := parseLines(t,
		"2024-01-01 09:59:00 Client got startGame message: (deck: b_red seed: ABC123)",
		"2024-01-01 10:00:00 Client sent message: action:moneyMoved amount: -50",
	)
	g := onlyGame(t, res)

	if g.MoneySpent != 50 {
		t.Fatalf("expected moneySpent 50, got %d", g.MoneySpent)
	}
	if g.MoneyGained != 0 {
		t.Fatalf("expected moneyGained 0, got %d", g.MoneyGained)
	}
	ev := lastEvent(t, g)
	if ev.Text != "Spent $50" {
		t.Fatalf("expected event %q, got %q", "Spent $50", ev.Text)
	}
	if g.Deck == nil || *g.Deck != "b_red" || g.Seed == nil || *g.Seed != "ABC123" {
		t.Fatalf("unexpected deck/seed: %v %v", g.Deck, g.Seed)
	}
}

func TestMoneyMovedGainAndZero(t *testing.T) {
	res := parseLines(t,
		"2024-01-01 09:59:00 Client got startGame message",
		"2024-01-01 10:00:00 Client sent message: action:moneyMoved,amount:4",
		"2024-01-01 10:00:01 Client sent message: action:moneyMoved,amount:0",
		"2024-01-01 10:00:02 Client sent message: action:moneyMoved,amount:NaN",
	)
	g := onlyGame(t, res)

	if g.MoneyGained != 4 || g.MoneySpent != 0 {
		t.Fatalf("expected gained 4 spent 0, got %d/%d", g.MoneyGained, g.MoneySpent)
	}
	if len(g.Events) != 2 || g.Events[1].Text != "Gained $4" {
		t.Fatalf("expected only the start and one gain event, got %#v", g.Events)
	}
}

func TestEnemyInfoLivesAndSkips(t *testing.T) {
	res := parseLines(t,
		"2024-01-01 09:59:00 Client got startGame message",
		"2024-01-01 10:00:01 Client got enemyInfo message: (lives:4 skips: 1)",
		"2024-01-01 10:00:05 Client got enemyInfo message: (lives:3 skips: 2)",
	)
	g := onlyGame(t, res)

	var lifeEvents, skipEvents int
	for _, ev := range g.Events {
		switch {
		case strings.HasPrefix(ev.Text, "Opponent lost a life"):
			lifeEvents++
		case ev.Text == "Opponent skipped a blind":
			skipEvents++
		}
	}
	if lifeEvents != 1 || skipEvents != 1 {
		t.Fatalf("expected 1 life and 1 skip event, got %d/%d: %#v", lifeEvents, skipEvents, g.Events)
	}
	if g.OpponentLastLives == nil || *g.OpponentLastLives != 3 {
		t.Fatalf("expected opponentLastLives 3, got %v", g.OpponentLastLives)
	}
	if g.OpponentLastSkips == nil || *g.OpponentLastSkips != 2 {
		t.Fatalf("expected opponentLastSkips 2, got %v", g.OpponentLastSkips)
	}
	if len(g.OpponentShopSpent) != 1 || g.OpponentShopSpent[0] != nil {
		t.Fatalf("expected one empty opponent shop slot, got %v", g.OpponentShopSpent)
	}
}

func TestConsecutiveStartsEmitZeroLengthGame(t *testing.T) {
	res := parseLines(t,
		"2024-01-01 10:00:00 Client got startGame message",
		"2024-01-01 10:05:00 Client got startGame message",
	)
	if len(res.Games) != 2 {
		t.Fatalf("expected 2 games, got %d", len(res.Games))
	}

	first := res.Games[0]
	if first.ID != 1 || res.Games[1].ID != 2 {
		t.Fatalf("expected sequential ids, got %d and %d", first.ID, res.Games[1].ID)
	}
	if first.EndedAt == nil || !first.EndedAt.Equal(first.StartedAt) {
		t.Fatalf("expected first game to end at its start, got %v", first.EndedAt)
	}
	if first.Duration != 0 {
		t.Fatalf("expected zero duration, got %s", first.Duration)
	}
	if first.TabKey() != "game-1" {
		t.Fatalf("unexpected tab key %q", first.TabKey())
	}
}

func TestDurationUsesLastEvent(t *testing.T) {
	res := parseLines(t,
		"2024-01-01 10:00:00 Client got startGame message",
		"2024-01-01 10:03:00 Client sent message: action:moneyMoved,amount:3",
		"2024-01-01 10:07:00 some unrelated chatter",
	)
	g := onlyGame(t, res)

	if g.Duration != 3*time.Minute {
		t.Fatalf("expected 3m duration, got %s", g.Duration)
	}
	if g.DurationSeconds() != 180 {
		t.Fatalf("expected 180 seconds, got %v", g.DurationSeconds())
	}
}

func TestEmptyInputIsNoGames(t *testing.T) {
	res, err := newTestParser().ParseString(context.Background(), "  \n\n\t \n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Status != model.RunStatusNoGames {
		t.Fatalf("expected status %q, got %q", model.RunStatusNoGames, res.Status)
	}
	if len(res.Games) != 0 {
		t.Fatalf("expected no games, got %d", len(res.Games))
	}
}

func TestLinesBeforeFirstGameAreIgnored(t *testing.T) {
	res := parseLines(t,
		"2024-01-01 09:00:00 Client sent message: action:moneyMoved,amount:10",
		"2024-01-01 09:00:01 Client got winGame message",
		"2024-01-01 10:00:00 Client got startGame message",
	)
	g := onlyGame(t, res)

	if g.MoneyGained != 0 || g.Winner != model.WinnerUnknown {
		t.Fatalf("pre-game lines leaked into game: gained=%d winner=%q", g.MoneyGained, g.Winner)
	}
	if len(g.Events) != 1 {
		t.Fatalf("expected only the start event, got %#v", g.Events)
	}
	if res.Stats.IgnoredLines != 2 {
		t.Fatalf("expected 2 ignored lines, got %d", res.Stats.IgnoredLines)
	}
}

func TestBlindScoringAndRenumbering(t *testing.T) {
	res := parseLines(t,
		"2024-01-01 10:00:00 Client got startGame message",
		"2024-01-01 10:00:01 Client sent message: action:setLocation,location:loc_playing-bl_pvp",
		"2024-01-01 10:00:02 Client sent message: action:playHand,score:100,handsLeft:3",
		"2024-01-01 10:00:03 Client got enemyInfo message: (score: 80 handsLeft: 3 lives: 4 skips: 0)",
		"2024-01-01 10:00:04 Client sent message: action:playHand,score:100,handsLeft:2",
		"2024-01-01 10:00:05 Client sent message: action:playHand,score:90,handsLeft:2",
		"2024-01-01 10:00:06 Client sent message: action:playHand,score:250,handsLeft:1",
		"2024-01-01 10:00:07 Client got endPvP message: (lost: false)",
		"2024-01-01 10:01:00 Client sent message: action:setLocation,location:loc_shop",
		"2024-01-01 10:02:00 Client sent message: action:setLocation,location:loc_playing-bl_pvp",
		"2024-01-01 10:02:30 Client got endPvP message: (lost: true)",
		"2024-01-01 10:03:00 Client sent message: action:setLocation,location:loc_playing-bl_pvp",
		"2024-01-01 10:03:01 Client got enemyInfo message: (score: 40 handsLeft: 3)",
		"2024-01-01 10:03:02 Client got endPvP message: (lost: true)",
		"2024-01-01 10:03:03 Client got endPvP message: (lost: false)",
	)
	g := onlyGame(t, res)

	if len(g.PvpBlinds) != 3 {
		t.Fatalf("expected 3 blinds, got %d", len(g.PvpBlinds))
	}

	first := g.PvpBlinds[0]
	if first.LogOwnerScore != 250 || first.OpponentScore != 80 {
		t.Fatalf("unexpected first blind scores %v/%v", first.LogOwnerScore, first.OpponentScore)
	}
	if first.Winner != model.WinnerLogOwner || first.EndedAt == nil {
		t.Fatalf("expected first blind won and closed, got %q %v", first.Winner, first.EndedAt)
	}
	if len(first.HandScores) != 4 {
		t.Fatalf("expected 4 hand scores (decreasing report dropped), got %d", len(first.HandScores))
	}
	zero := first.HandScores[2]
	if zero.Gained != 0 || zero.Total != 100 || zero.HandsLeft == nil || *zero.HandsLeft != 2 {
		t.Fatalf("unexpected zero-delta hand score %#v", zero)
	}
	if last := first.HandScores[3]; last.Gained != 150 || last.Total != 250 {
		t.Fatalf("unexpected last hand score %#v", last)
	}

	var scoreEvents int
	for _, ev := range g.Events {
		if strings.Contains(ev.Text, "cored") {
			scoreEvents++
		}
	}
	if scoreEvents != 4 {
		t.Fatalf("expected 4 score events (zero delta suppressed), got %d", scoreEvents)
	}

	if g.PvpBlinds[1].Winner != model.WinnerOpponent || !g.PvpBlinds[1].Scoreless() {
		t.Fatalf("expected second blind lost without score, got %#v", g.PvpBlinds[1])
	}
	// The trailing endPvP has no open blind and must not touch the third blind.
	if g.PvpBlinds[2].Winner != model.WinnerOpponent {
		t.Fatalf("expected third blind lost, got %q", g.PvpBlinds[2].Winner)
	}

	shown := g.RenumberedBlinds()
	if len(shown) != 2 {
		t.Fatalf("expected 2 renumbered blinds, got %d", len(shown))
	}
	if shown[0].BlindNumber != 1 || shown[1].BlindNumber != 2 || shown[1].OpponentScore != 40 {
		t.Fatalf("unexpected renumbering %#v", shown)
	}
}

func TestVeryLargeScoresAreKept(t *testing.T) {
	res := parseLines(t,
		"2024-01-01 10:00:00 Client got startGame message",
		"2024-01-01 10:00:01 Client sent message: action:setLocation,location:loc_playing-bl_pvp",
		"2024-01-01 10:00:02 Client sent message: action:playHand,score:5000,handsLeft:2",
		"2024-01-01 10:00:03 Client sent message: action:playHand,score:1e25,handsLeft:1",
		"2024-01-01 10:00:04 Client got endPvP message: (lost: false)",
	)

	blind := res.Games[0].PvpBlinds[0]
	if len(blind.HandScores) != 2 {
		t.Fatalf("expected 2 hand scores, got %d", len(blind.HandScores))
	}
	if blind.LogOwnerScore != 1e25 {
		t.Fatalf("expected total 1e25, got %v", blind.LogOwnerScore)
	}
	if hs := blind.HandScores[1]; hs.Total != 1e25 || hs.Gained != 1e25-5000 {
		t.Fatalf("unexpected hand score %#v", hs)
	}

	var found bool
	for _, ev := range res.Games[0].Events {
		if ev.Text == "Scored 1e+25 (total 1e+25)" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing score event for the large hand: %#v", res.Games[0].Events)
	}
}

func TestScoresOutsideBlindAreIgnored(t *testing.T) {
	res := parseLines(t,
		"2024-01-01 10:00:00 Client got startGame message",
		"2024-01-01 10:00:02 Client sent message: action:playHand,score:100,handsLeft:3",
		"2024-01-01 10:00:03 Client got endPvP message: (lost: true)",
	)
	g := onlyGame(t, res)
	if len(g.PvpBlinds) != 0 || len(g.Events) != 1 {
		t.Fatalf("expected no blind state, got blinds=%d events=%d", len(g.PvpBlinds), len(g.Events))
	}
}

func TestShopAccountingStaysIndependent(t *testing.T) {
	res := parseLines(t,
		"2024-01-01 10:00:00 Client got startGame message",
		"2024-01-01 10:01:00 Client sent message: action:boughtCardFromShop,card:j_joker,cost:5",
		"2024-01-01 10:01:01 Client sent message: action:moneyMoved,amount:-5",
		"2024-01-01 10:01:02 Client sent message: action:rerollShop,cost:2",
		"2024-01-01 10:01:03 Client sent message: action:soldCard,card:j_egg",
		"2024-01-01 10:01:04 Client sent message: action:usedCard,card:c_pluto",
		"2024-01-01 10:01:05 Client sent message: action:spentLastShop,amount:7",
		"2024-01-01 10:01:06 Client got spentLastShop message: (amount: 12)",
		"2024-01-01 10:01:07 Client got spentLastShop message",
		"2024-01-01 10:02:00 Client sent message: action:skip,skips:1",
	)
	g := onlyGame(t, res)

	if g.MoneySpent != 5 {
		t.Fatalf("expected moneySpent 5 from moneyMoved only, got %d", g.MoneySpent)
	}
	if g.OpponentMoneySpent != 12 {
		t.Fatalf("expected opponentMoneySpent 12, got %d", g.OpponentMoneySpent)
	}
	if len(g.ShopPurchases) != 1 || g.ShopPurchases[0].Card != "j_joker" || *g.ShopPurchases[0].Cost != 5 {
		t.Fatalf("unexpected purchases %#v", g.ShopPurchases)
	}

	if len(g.LogOwnerShopSpent) != 2 || *g.LogOwnerShopSpent[0] != 7 || g.LogOwnerShopSpent[1] != nil {
		t.Fatalf("unexpected log owner shop slots %v", g.LogOwnerShopSpent)
	}
	if len(g.OpponentShopSpent) != 2 || *g.OpponentShopSpent[0] != 12 || g.OpponentShopSpent[1] != nil {
		t.Fatalf("unexpected opponent shop slots %v", g.OpponentShopSpent)
	}

	slots := g.ShopSlots()
	if len(slots) != 2 || *slots[0].LogOwner != 7 || *slots[0].Opponent != 12 {
		t.Fatalf("unexpected shop slots %#v", slots)
	}

	imgs := map[string]string{}
	for _, ev := range g.Events {
		if ev.Img != "" {
			imgs[ev.Img] = ev.Text
		}
	}
	want := map[string]string{
		"j_joker": "Bought j_joker for $5",
		"j_egg":   "Sold j_egg",
		"c_pluto": "Used c_pluto",
	}
	for img, text := range want {
		if imgs[img] != text {
			t.Fatalf("expected event %q for %s, got %q", text, img, imgs[img])
		}
	}
}

func TestWinnerIsSetOnce(t *testing.T) {
	res := parseLines(t,
		"2024-01-01 10:00:00 Client got startGame message",
		"2024-01-01 10:10:00 Client got winGame message",
		"2024-01-01 10:10:01 Client got loseGame message",
	)
	g := onlyGame(t, res)
	if g.Winner != model.WinnerLogOwner {
		t.Fatalf("expected logOwner winner, got %q", g.Winner)
	}
	if ev := lastEvent(t, g); ev.Text != "Won the game" || ev.Type != model.EventTypeSystem {
		t.Fatalf("unexpected last event %#v", ev)
	}
}

func TestEndGameJokers(t *testing.T) {
	unsafe, err := payload.Pack(`return {["cards"]={}} -- function`)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	res := parseLines(t,
		"2024-01-01 10:00:00 Client got startGame message",
		"2024-01-01 10:20:00 Client sent message: action:receiveEndGameJokers,keys:j_joker;j_dna",
		"2024-01-01 10:20:01 Client got receiveEndGameJokers message: (keys: "+unsafe+")",
	)
	g := onlyGame(t, res)

	if strings.Join(g.LogOwnerJokers, ",") != "j_joker,j_dna" {
		t.Fatalf("unexpected log owner jokers %v", g.LogOwnerJokers)
	}
	if g.OpponentJokers == nil || len(g.OpponentJokers) != 0 {
		t.Fatalf("expected empty opponent jokers, got %#v", g.OpponentJokers)
	}
	if res.Stats.DecodeFailures != 1 {
		t.Fatalf("expected 1 decode failure, got %d", res.Stats.DecodeFailures)
	}
}

func TestLobbyPairing(t *testing.T) {
	lines := []string{
		"2024-01-01 09:00:00 Client got lobbyInfo message: (host: Alice guest: Bob hostHash: modA;modB guestHash: modC isHost: true)",
		"2024-01-01 09:01:00 Client got startGame message",
		"2024-01-01 09:10:00 Client got startGame message",
		"2024-01-01 09:11:00 Client got lobbyInfo message: (host: Carol guest: Dave)",
		"2024-01-01 09:12:00 Client got startGame message",
		"2024-01-01 09:20:00 Client got lobbyInfo message: (host: Eve guest: Frank isHost: false)",
		"2024-01-01 09:21:00 Client got lobbyInfo message: (guest: Gina isHost: false)",
		"2024-01-01 09:22:00 Client got startGame message",
	}
	res := parseLines(t, lines...)
	if len(res.Games) != 4 {
		t.Fatalf("expected 4 games, got %d", len(res.Games))
	}

	first := res.Games[0]
	if first.LogOwnerName == nil || *first.LogOwnerName != "Alice" || *first.OpponentName != "Bob" {
		t.Fatalf("unexpected names %v/%v", first.LogOwnerName, first.OpponentName)
	}
	if first.IsHost == nil || !*first.IsHost {
		t.Fatalf("expected isHost true, got %v", first.IsHost)
	}
	if strings.Join(first.HostMods, ",") != "modA,modB" || strings.Join(first.GuestMods, ",") != "modC" {
		t.Fatalf("unexpected mods %v %v", first.HostMods, first.GuestMods)
	}

	for _, i := range []int{1, 2} {
		g := res.Games[i]
		if g.Host != nil || g.IsHost != nil || g.LogOwnerName != nil {
			t.Fatalf("expected game %d without lobby data, got %#v", g.ID, g)
		}
	}
	if res.Stats.MalformedLobbies != 1 {
		t.Fatalf("expected 1 malformed lobby, got %d", res.Stats.MalformedLobbies)
	}

	last := res.Games[3]
	if last.LogOwnerName == nil || *last.LogOwnerName != "Gina" || *last.OpponentName != "Host" {
		t.Fatalf("expected latest lobby with host fallback, got %v/%v", last.LogOwnerName, last.OpponentName)
	}

	snaps := CorrelateLobbies(lines)
	if len(snaps) != 4 {
		t.Fatalf("expected 4 correlated slots, got %d", len(snaps))
	}
	if snaps[0] == nil || snaps[1] != nil || snaps[2] != nil || snaps[3] == nil {
		t.Fatalf("unexpected slot pattern %#v", snaps)
	}
}

func TestLobbyOptionsCarryIntoGames(t *testing.T) {
	res := parseLines(t,
		"2024-01-01 09:00:00 Client sent message: action:lobbyOptions,ruleset:ruleset_mp_standard,gamemode:gamemode_mp_attrition,starting_lives:4,stake:1,different_seeds:false,custom_seed:random",
		"2024-01-01 09:01:00 Client got startGame message: (deck: b_blue stake: 3)",
		"2024-01-01 09:30:00 Client got startGame message",
	)
	if len(res.Games) != 2 {
		t.Fatalf("expected 2 games, got %d", len(res.Games))
	}

	opts := res.Games[0].Options
	if opts == nil {
		t.Fatalf("expected options on first game")
	}
	if opts.Ruleset != "ruleset_mp_standard" || opts.Gamemode != "gamemode_mp_attrition" {
		t.Fatalf("unexpected ruleset/gamemode %q/%q", opts.Ruleset, opts.Gamemode)
	}
	if opts.Stake == nil || *opts.Stake != 3 {
		t.Fatalf("expected start-line stake 3, got %v", opts.Stake)
	}
	if opts.StartingLives == nil || *opts.StartingLives != 4 {
		t.Fatalf("expected starting lives 4, got %v", opts.StartingLives)
	}
	if v, ok := opts.Toggles["different_seeds"]; !ok || v {
		t.Fatalf("expected different_seeds=false toggle, got %v", opts.Toggles)
	}
	if opts.Extra["custom_seed"] != "random" {
		t.Fatalf("expected custom_seed extra, got %v", opts.Extra)
	}

	second := res.Games[1].Options
	if second == nil || second.Stake == nil || *second.Stake != 1 {
		t.Fatalf("expected lobby stake on second game, got %#v", second)
	}
}

func TestMissingTimestampUsesClock(t *testing.T) {
	res := parseLines(t, "Client got startGame message")
	g := onlyGame(t, res)
	if !g.StartedAt.Equal(fixedNow) {
		t.Fatalf("expected start %v, got %v", fixedNow, g.StartedAt)
	}
}

func TestParseFileStripsBOM(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "multiplayer.log")
	lines := []string{
		"\ufeff2024-01-01 10:00:00 Client got startGame message",
		"2024-01-01 10:00:01 Client got winGame message",
	}
	if err := writeLogLines(logPath, lines, false); err != nil {
		t.Fatalf("write log lines: %v", err)
	}

	res, err := newTestParser().ParseFile(context.Background(), logPath)
	if err != nil {
		t.Fatalf("parse file: %v", err)
	}
	g := onlyGame(t, res)
	if !g.StartedAt.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", g.StartedAt)
	}
	if res.Stats.Source != logPath || res.Stats.LinesRead != 2 {
		t.Fatalf("unexpected stats %#v", res.Stats)
	}
}

type panicReader struct{}

func (panicReader) Read([]byte) (int, error) {
	panic("reader exploded")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk gone")
}

func TestParseFailuresAreDistinct(t *testing.T) {
	res, err := newTestParser().Parse(context.Background(), panicReader{})
	if !errors.Is(err, ErrParseFailed) {
		t.Fatalf("expected ErrParseFailed, got %v", err)
	}
	if res.Status != model.RunStatusFailed {
		t.Fatalf("expected failed status, got %q", res.Status)
	}

	res, err = newTestParser().Parse(context.Background(), failingReader{})
	if err == nil || errors.Is(err, ErrParseFailed) {
		t.Fatalf("expected plain read error, got %v", err)
	}
	if res.Status != model.RunStatusFailed {
		t.Fatalf("expected failed status, got %q", res.Status)
	}
}

func TestParseProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	noise := []string{
		"2024-01-01 10:00:00 Client sent message: action:moneyMoved,amount:3",
		"2024-01-01 10:00:00 Client got enemyInfo message: (lives: 2)",
		"2024-01-01 10:00:00 random chatter",
		"2024-01-01 10:00:00 Client got lobbyInfo message: (host: A guest: B isHost: true)",
		"",
	}

	properties.Property("N game starts yield N games", prop.ForAll(
		func(picks []int) bool {
			var (
				lines  []string
				starts int
			)
			for _, pick := range picks {
				if pick == len(noise) {
					lines = append(lines, "2024-01-01 10:00:00 Client got StartGame message")
					starts++
					continue
				}
				lines = append(lines, noise[pick])
			}

			res, err := newTestParser().ParseString(context.Background(), strings.Join(lines, "\n"))
			if err != nil || len(res.Games) != starts {
				return false
			}
			if starts == 0 {
				return res.Status == model.RunStatusNoGames
			}
			return res.Status == model.RunStatusOK
		},
		gen.SliceOf(gen.IntRange(0, len(noise))),
	))

	properties.Property("hand score totals never decrease", prop.ForAll(
		func(scores []int64) bool {
			lines := []string{
				"2024-01-01 10:00:00 Client got startGame message",
				"2024-01-01 10:00:01 Client sent message: action:setLocation,location:loc_playing-bl_pvp",
			}
			for i, score := range scores {
				if i%2 == 0 {
					lines = append(lines, fmt.Sprintf("2024-01-01 10:00:02 Client sent message: action:playHand,score:%d", score))
				} else {
					lines = append(lines, fmt.Sprintf("2024-01-01 10:00:02 Client got enemyInfo message: (score: %d)", score))
				}
			}

			res, err := newTestParser().ParseString(context.Background(), strings.Join(lines, "\n"))
			if err != nil || len(res.Games) != 1 || len(res.Games[0].PvpBlinds) != 1 {
				return false
			}

			last := map[model.Side]float64{}
			for _, hs := range res.Games[0].PvpBlinds[0].HandScores {
				if hs.Total < last[hs.Side] || hs.Gained != hs.Total-last[hs.Side] {
					return false
				}
				last[hs.Side] = hs.Total
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(0, 1000)),
	))

	properties.TestingRun(t)
}

func writeLogLines(path string, lines []string, appendMode bool) error {
	if len(lines) == 0 {
		return nil
	}
	content := strings.Join(lines, "\n") + "\n"
	if appendMode {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = f.WriteString(content)
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
