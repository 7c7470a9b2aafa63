package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooseBool(t *testing.T) {
	tests := []struct {
		raw   string
		value bool
		set   bool
	}{
		{`true`, true, true},
		{`false`, false, true},
		{`"true"`, true, true},
		{`"false"`, false, true},
		{`"1"`, true, true},
		{`"0"`, false, true},
		{`1`, true, true},
		{`0`, false, true},
		{`2.5`, true, true},
		{`null`, false, false},
	}
	for _, tt := range tests {
		var b LooseBool
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &b), tt.raw)
		assert.Equal(t, tt.value, b.Value, tt.raw)
		assert.Equal(t, tt.set, b.Set, tt.raw)
	}

	var b LooseBool
	assert.Error(t, json.Unmarshal([]byte(`"maybe"`), &b))
	assert.Error(t, json.Unmarshal([]byte(`[]`), &b))
}

func TestLooseBoolDefault(t *testing.T) {
	assert.True(t, LooseBool{}.Or(true))
	assert.False(t, LooseBool{Set: true, Value: false}.Or(true))
}

func TestLooseInt(t *testing.T) {
	for raw, want := range map[string]int{
		`14`:    14,
		`"14"`:  14,
		`" 7 "`: 7,
		`-3`:    -3,
		`9.9`:   9,
		`""`:    0,
		`null`:  0,

		`2147483647`: 2147483647,
	} {
		var n LooseInt
		require.NoError(t, json.Unmarshal([]byte(raw), &n), raw)
		assert.Equal(t, want, int(n), raw)
	}

	var n LooseInt
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &n))
	assert.Error(t, json.Unmarshal([]byte(`true`), &n))
	for _, raw := range []string{`1e30`, `-1e30`, `2147483648`, `"99999999999"`} {
		assert.Error(t, json.Unmarshal([]byte(raw), &n), raw)
	}
}

func TestDecodeEntriesOutOfRangeRoll(t *testing.T) {
	inputs := decodeEntries([]json.RawMessage{
		json.RawMessage(`{"name":"Goblin","initiative_roll":1e30}`),
		json.RawMessage(`{"name":"Goblin","initiative_roll":9}`),
	})
	require.Len(t, inputs, 2)
	assert.NotEmpty(t, inputs[0].Malformed)
	assert.Empty(t, inputs[1].Malformed)
	assert.Equal(t, 9, inputs[1].InitiativeRoll)
}

func TestDecodeEntries(t *testing.T) {
	var req addEntriesRequest
	require.NoError(t, json.Unmarshal([]byte(`{"entries":[
		{"character_id":5,"name":"Alice","initiative_roll":"14","initiative_bonus":3},
		{"name":"Goblin","initiative_roll":9,"initiative_bonus":"1","is_player":"false"},
		{"name":"Orc","is_player":"maybe"},
		{"name":"Ogre","auto_roll":true,"is_player":0}
	]}`), &req))

	inputs := decodeEntries(req.Entries)
	require.Len(t, inputs, 4)

	assert.Equal(t, uint(5), inputs[0].CharacterID)
	assert.Equal(t, 14, inputs[0].InitiativeRoll)
	assert.True(t, inputs[0].IsPlayer, "missing is_player means a player")

	assert.Equal(t, uint(0), inputs[1].CharacterID)
	assert.Equal(t, 1, inputs[1].InitiativeBonus)
	assert.False(t, inputs[1].IsPlayer)

	assert.NotEmpty(t, inputs[2].Malformed)

	assert.True(t, inputs[3].AutoRoll)
	assert.Equal(t, 0, inputs[3].InitiativeRoll)
	assert.False(t, inputs[3].IsPlayer)
	assert.Empty(t, inputs[3].Malformed)
}
