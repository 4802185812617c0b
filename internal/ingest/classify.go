package ingest

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cschnabel/mplog/internal/model"
)

const timestampLayout = "2006-01-02 15:04:05"

const (
	markerEndGameJokers    = "EndGameJokers"
	markerGotEndGameJokers = "Client got receiveEndGameJokers message"
	markerStartGame        = "startgame message"
	markerEnemyInfo        = "enemyinfo"
	markerSoldCard         = "Client sent message: action:soldCard"
	markerGotSpentLastShop = "Client got spentLastShop message"
	markerSentSpentLast    = "Client sent message: action:spentLastShop"
	markerSkip             = "Client sent message: action:skip"
	markerWinGame          = "Client got winGame message"
	markerLoseGame         = "Client got loseGame message"
	markerEndPvP           = "Client got endPvP message"
	markerClientSent       = "Client sent message"
	markerLobbyOptions     = "lobbyoptions"
	markerLobbyInfo        = "Client got lobbyInfo message"
)

var (
	reTimestamp     = regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)
	reAction        = regexp.MustCompile(`action:\s*([A-Za-z0-9_]+)`)
	reBlindLocation = regexp.MustCompile(`^loc_playing-(.*)$`)
	reOptionPair    = regexp.MustCompile(`([A-Za-z0-9_]+):\s*([^\s,()]+)`)
)

// tokenFields hold compact values: numbers, booleans, keys.
var tokenFields = map[string]*regexp.Regexp{}

// textFields hold values that may contain spaces, such as display names.
var textFields = map[string]*regexp.Regexp{}

func init() {
	for _, key := range []string{
		"amount", "card", "cost", "score", "handsLeft", "lives", "skips", "lost",
		"location", "deck", "seed", "stake", "keys", "isHost",
	} {
		tokenFields[key] = regexp.MustCompile(`\b` + key + `:\s*([^\s,()]+)`)
	}
	for _, key := range []string{"host", "guest", "hostHash", "guestHash"} {
		textFields[key] = regexp.MustCompile(`\b` + key + `:\s*(.*?)\s*(?:\)|,|\s[A-Za-z_]+:|$)`)
	}
}

func lineTimestamp(line string, now func() time.Time) time.Time {
	if m := reTimestamp.FindString(line); m != "" {
		if ts, err := time.ParseInLocation(timestampLayout, m, time.UTC); err == nil {
			return ts
		}
	}
	return now().UTC()
}

func tokenField(line, key string) (string, bool) {
	re, ok := tokenFields[key]
	if !ok {
		return "", false
	}
	m := re.FindStringSubmatch(line)
	if len(m) != 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}

func textField(line, key string) (string, bool) {
	re, ok := textFields[key]
	if !ok {
		return "", false
	}
	m := re.FindStringSubmatch(line)
	if len(m) != 2 {
		return "", false
	}
	v := strings.TrimSpace(m[1])
	return v, v != ""
}

// floatField parses a numeric field. Anything that does not parse to a finite
// number is absent, never zero.
func floatField(line, key string) *float64 {
	raw, ok := tokenField(line, key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// intField rounds a numeric field to an integer. Values outside the int64
// range are absent.
func intField(line, key string) *int64 {
	f := floatField(line, key)
	if f == nil {
		return nil
	}
	r := math.Round(*f)
	if r < math.MinInt64 || r >= math.MaxInt64 {
		return nil
	}
	v := int64(r)
	return &v
}

func boolField(line, key string) *bool {
	raw, ok := tokenField(line, key)
	if !ok {
		return nil
	}
	var v bool
	switch strings.ToLower(raw) {
	case "true":
		v = true
	case "false":
		v = false
	default:
		return nil
	}
	return &v
}

func stringField(line, key string) *string {
	raw, ok := tokenField(line, key)
	if !ok {
		return nil
	}
	return &raw
}

type lineEvent interface {
	isLineEvent()
}

type endGameJokersLine struct {
	side model.Side
	keys string
}

type gameStartLine struct {
	deck  *string
	seed  *string
	stake *int64
}

type enemyInfoLine struct {
	score     *float64
	handsLeft *int64
	lives     *int64
	skips     *int64
}

type soldCardLine struct {
	card string
}

type spentLastShopLine struct {
	side   model.Side
	amount *int64
}

type skipLine struct {
	skips *int64
}

type gameResultLine struct {
	winner model.Winner
}

type endPvPLine struct {
	lost *bool
}

type moneyMovedLine struct {
	amount *int64
}

type boughtCardLine struct {
	card string
	cost *int64
}

type rerollShopLine struct {
	cost *int64
}

type usedCardLine struct {
	card string
}

type playHandLine struct {
	score     *float64
	handsLeft *int64
}

type setLocationLine struct {
	location string
}

type lobbyOptionsLine struct {
	options model.GameOptions
}

type lobbyInfoLine struct {
	snapshot *LobbySnapshot
	err      error
}

func (endGameJokersLine) isLineEvent() {}
func (gameStartLine) isLineEvent()     {}
func (enemyInfoLine) isLineEvent()     {}
func (soldCardLine) isLineEvent()      {}
func (spentLastShopLine) isLineEvent() {}
func (skipLine) isLineEvent()          {}
func (gameResultLine) isLineEvent()    {}
func (endPvPLine) isLineEvent()        {}
func (moneyMovedLine) isLineEvent()    {}
func (boughtCardLine) isLineEvent()    {}
func (rerollShopLine) isLineEvent()    {}
func (usedCardLine) isLineEvent()      {}
func (playHandLine) isLineEvent()      {}
func (setLocationLine) isLineEvent()   {}
func (lobbyOptionsLine) isLineEvent()  {}
func (lobbyInfoLine) isLineEvent()     {}

func containsFold(line, marker string) bool {
	return strings.Contains(strings.ToLower(line), marker)
}

// isGameStart is the one game-start predicate; the lobby pairing depends on
// every caller agreeing on it.
func isGameStart(line string) bool {
	return containsFold(line, markerStartGame)
}

func isLobbyInfo(line string) bool {
	return strings.Contains(line, markerLobbyInfo)
}

// classifyLine maps a line to the first marker it carries. Markers are tried in
// a fixed order; the second result is false when nothing matched.
func classifyLine(line string) (lineEvent, bool) {
	switch {
	case strings.Contains(line, markerEndGameJokers):
		side := model.SideOpponent
		if !strings.Contains(line, markerGotEndGameJokers) {
			if !strings.Contains(line, markerClientSent) {
				return nil, false
			}
			side = model.SideLogOwner
		}
		keys, _ := tokenField(line, "keys")
		return endGameJokersLine{side: side, keys: keys}, true

	case isGameStart(line):
		return gameStartLine{
			deck:  stringField(line, "deck"),
			seed:  stringField(line, "seed"),
			stake: intField(line, "stake"),
		}, true

	case containsFold(line, markerEnemyInfo):
		return enemyInfoLine{
			score:     floatField(line, "score"),
			handsLeft: intField(line, "handsLeft"),
			lives:     intField(line, "lives"),
			skips:     intField(line, "skips"),
		}, true

	case strings.Contains(line, markerSoldCard):
		card, _ := tokenField(line, "card")
		return soldCardLine{card: card}, true

	case strings.Contains(line, markerGotSpentLastShop):
		return spentLastShopLine{side: model.SideOpponent, amount: intField(line, "amount")}, true

	case strings.Contains(line, markerSentSpentLast):
		return spentLastShopLine{side: model.SideLogOwner, amount: intField(line, "amount")}, true

	case strings.Contains(line, markerSkip):
		return skipLine{skips: intField(line, "skips")}, true

	case strings.Contains(line, markerWinGame):
		return gameResultLine{winner: model.WinnerLogOwner}, true

	case strings.Contains(line, markerLoseGame):
		return gameResultLine{winner: model.WinnerOpponent}, true

	case strings.Contains(line, markerEndPvP):
		return endPvPLine{lost: boolField(line, "lost")}, true

	case containsFold(line, markerLobbyOptions):
		return lobbyOptionsLine{options: parseLobbyOptions(line)}, true

	case isLobbyInfo(line):
		snapshot, err := parseLobbyInfo(line)
		return lobbyInfoLine{snapshot: snapshot, err: err}, true

	case strings.Contains(line, markerClientSent):
		return classifyClientSent(line)
	}

	return nil, false
}

func classifyClientSent(line string) (lineEvent, bool) {
	m := reAction.FindStringSubmatch(line)
	if len(m) != 2 {
		return nil, false
	}

	switch m[1] {
	case "moneyMoved":
		return moneyMovedLine{amount: intField(line, "amount")}, true
	case "boughtCardFromShop":
		card, _ := tokenField(line, "card")
		return boughtCardLine{card: card, cost: intField(line, "cost")}, true
	case "rerollShop":
		return rerollShopLine{cost: intField(line, "cost")}, true
	case "usedCard":
		card, _ := tokenField(line, "card")
		return usedCardLine{card: card}, true
	case "playHand":
		return playHandLine{score: floatField(line, "score"), handsLeft: intField(line, "handsLeft")}, true
	case "setLocation":
		location, _ := tokenField(line, "location")
		return setLocationLine{location: location}, true
	}
	return nil, false
}

// parseLobbyOptions collects every key:value pair after the marker. Known keys
// fill typed fields, booleans become toggles, the rest lands in Extra.
func parseLobbyOptions(line string) model.GameOptions {
	opts := model.GameOptions{}
	idx := strings.Index(strings.ToLower(line), markerLobbyOptions)
	if idx < 0 {
		return opts
	}

	for _, m := range reOptionPair.FindAllStringSubmatch(line[idx:], -1) {
		key, raw := m[1], m[2]
		switch key {
		case "action":
			continue
		case "ruleset":
			opts.Ruleset = raw
		case "gamemode":
			opts.Gamemode = raw
		case "stake":
			if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
				opts.Stake = &v
			}
		case "starting_lives":
			if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
				opts.StartingLives = &v
			}
		default:
			switch strings.ToLower(raw) {
			case "true", "false":
				if opts.Toggles == nil {
					opts.Toggles = map[string]bool{}
				}
				opts.Toggles[key] = strings.EqualFold(raw, "true")
			default:
				if opts.Extra == nil {
					opts.Extra = map[string]string{}
				}
				opts.Extra[key] = raw
			}
		}
	}
	return opts
}
