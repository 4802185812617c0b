package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cschnabel/mplog/internal/model"
)

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want lineEvent
	}{
		{
			name: "opponent jokers",
			line: "Client got receiveEndGameJokers message: (keys: j_joker)",
			want: endGameJokersLine{side: model.SideOpponent, keys: "j_joker"},
		},
		{
			name: "own jokers",
			line: "Client sent message: action:receiveEndGameJokers,keys:j_dna;j_egg",
			want: endGameJokersLine{side: model.SideLogOwner, keys: "j_dna;j_egg"},
		},
		{
			name: "game start is case insensitive",
			line: "Client got STARTGAME MESSAGE: (deck: b_red)",
			want: gameStartLine{deck: ptr("b_red")},
		},
		{
			name: "enemy info",
			line: "Client got enemyInfo message: (score: 120 handsLeft: 2 lives: 3 skips: 0)",
			want: enemyInfoLine{score: ptr[float64](120), handsLeft: ptr[int64](2), lives: ptr[int64](3), skips: ptr[int64](0)},
		},
		{
			name: "enemy info beats client sent",
			line: "Client sent message: action:enemyInfo,score:5",
			want: enemyInfoLine{score: ptr[float64](5)},
		},
		{
			name: "sold card",
			line: "Client sent message: action:soldCard,card:j_egg",
			want: soldCardLine{card: "j_egg"},
		},
		{
			name: "opponent shop spend",
			line: "Client got spentLastShop message: (amount: 9)",
			want: spentLastShopLine{side: model.SideOpponent, amount: ptr[int64](9)},
		},
		{
			name: "own shop spend",
			line: "Client sent message: action:spentLastShop,amount:3",
			want: spentLastShopLine{side: model.SideLogOwner, amount: ptr[int64](3)},
		},
		{
			name: "skip",
			line: "Client sent message: action:skip,skips:2",
			want: skipLine{skips: ptr[int64](2)},
		},
		{
			name: "win",
			line: "Client got winGame message",
			want: gameResultLine{winner: model.WinnerLogOwner},
		},
		{
			name: "lose",
			line: "Client got loseGame message",
			want: gameResultLine{winner: model.WinnerOpponent},
		},
		{
			name: "end pvp",
			line: "Client got endPvP message: (lost: true)",
			want: endPvPLine{lost: ptr(true)},
		},
		{
			name: "money moved",
			line: "Client sent message: action:moneyMoved,amount:-3",
			want: moneyMovedLine{amount: ptr[int64](-3)},
		},
		{
			name: "bought card",
			line: "Client sent message: action:boughtCardFromShop,card:j_joker,cost:4",
			want: boughtCardLine{card: "j_joker", cost: ptr[int64](4)},
		},
		{
			name: "reroll",
			line: "Client sent message: action:rerollShop,cost:5",
			want: rerollShopLine{cost: ptr[int64](5)},
		},
		{
			name: "used card",
			line: "Client sent message: action:usedCard,card:c_mars",
			want: usedCardLine{card: "c_mars"},
		},
		{
			name: "play hand",
			line: "Client sent message: action:playHand,score:40,handsLeft:3",
			want: playHandLine{score: ptr[float64](40), handsLeft: ptr[int64](3)},
		},
		{
			name: "set location",
			line: "Client sent message: action:setLocation,location:loc_shop",
			want: setLocationLine{location: "loc_shop"},
		},
		{
			name: "lobby options",
			line: "Client got lobbyOptions message: (gamemode: gamemode_mp_showdown)",
			want: lobbyOptionsLine{options: model.GameOptions{Gamemode: "gamemode_mp_showdown"}},
		},
		{
			name: "lobby info",
			line: "Client got lobbyInfo message: (host: Big Al isHost: false)",
			want: lobbyInfoLine{snapshot: &LobbySnapshot{Host: ptr("Big Al")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := classifyLine(tt.line)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyLineUnmatched(t *testing.T) {
	for _, line := range []string{
		"random chatter",
		"Client sent message: action:keepAlive",
		"Client sent message: no action here",
		"Client got receiveEndGameJokersTimeout",
	} {
		_, ok := classifyLine(line)
		assert.False(t, ok, line)
	}
}

func TestFieldWhitespaceTolerance(t *testing.T) {
	for _, line := range []string{"amount:7", "amount: 7", "amount:   7", "(amount: 7)", "x,amount:7,y"} {
		v := intField(line, "amount")
		require.NotNil(t, v, line)
		assert.Equal(t, int64(7), *v, line)
	}
}

func TestNumericFieldsRejectNaN(t *testing.T) {
	assert.Nil(t, intField("score: NaN", "score"))
	assert.Nil(t, intField("score: Inf", "score"))
	assert.Nil(t, intField("score: abc", "score"))
	assert.Nil(t, intField("nothing here", "score"))
	require.NotNil(t, intField("score: 12.6", "score"))
	assert.Equal(t, int64(13), *intField("score: 12.6", "score"))
}

func TestIntFieldRejectsOutOfRange(t *testing.T) {
	assert.Nil(t, intField("amount: 1e25", "amount"))
	assert.Nil(t, intField("amount: -1e25", "amount"))
	assert.Nil(t, intField("amount: 9223372036854775807", "amount"))

	v := intField("amount: -9000000000000000000", "amount")
	require.NotNil(t, v)
	assert.Equal(t, int64(-9000000000000000000), *v)
}

func TestScoreFieldsKeepLargeValues(t *testing.T) {
	ev, ok := classifyLine("Client sent message: action:playHand,score:1e25,handsLeft:1")
	require.True(t, ok)
	hand, ok := ev.(playHandLine)
	require.True(t, ok)
	require.NotNil(t, hand.score)
	assert.Equal(t, 1e25, *hand.score)

	assert.Nil(t, floatField("score: NaN", "score"))
	assert.Nil(t, floatField("score: -Inf", "score"))
}

func TestLineTimestamp(t *testing.T) {
	now := func() time.Time { return time.Date(2030, 5, 5, 5, 5, 5, 0, time.UTC) }

	assert.Equal(t, time.Date(2024, 3, 2, 1, 2, 3, 0, time.UTC),
		lineTimestamp("[2024-03-02 01:02:03] INFO Client got winGame message", now))
	assert.Equal(t, now(), lineTimestamp("no timestamp", now))
	assert.Equal(t, now(), lineTimestamp("2024-13-45 99:99:99 bogus", now))
}

func ptr[T any](v T) *T {
	return &v
}
