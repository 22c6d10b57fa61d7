package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/glyphbot/glyph/internal/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGuild(t *testing.T) {
	t.Parallel()

	guildID, err := parseGuild([]string{"10"})
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(10), guildID)

	_, err = parseGuild(nil)
	require.ErrorIs(t, err, ErrGuildIDRequired)

	_, err = parseGuild([]string{"10", "20"})
	require.ErrorIs(t, err, ErrGuildIDRequired)

	_, err = parseGuild([]string{"guild"})
	require.ErrorContains(t, err, "invalid guild id")
}

func TestParseMember(t *testing.T) {
	t.Parallel()

	guildID, userID, err := parseMember([]string{"10", "40"})
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(10), guildID)
	assert.Equal(t, snowflake.ID(40), userID)

	_, _, err = parseMember([]string{"10"})
	require.ErrorIs(t, err, ErrMemberRequired)

	_, _, err = parseMember([]string{"10", "someone"})
	require.ErrorContains(t, err, "invalid user id")
}

func TestPrintWarns(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, printWarns(&out, nil))
	assert.Equal(t, "No warns.\n", out.String())

	out.Reset()

	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	warns := []*types.Warn{
		{ID: 2, UserID: 40, GuildID: 10, ModeratorID: 7, Reason: "Flagged message: ban by mod", CreatedAt: created},
		{ID: 1, UserID: 40, GuildID: 10, ModeratorID: 7, Reason: "Flagged message: kick by mod", CreatedAt: created.Add(-time.Hour)},
	}
	require.NoError(t, printWarns(&out, warns))
	assert.Equal(t,
		"#2  2026-03-01 09:30:00  moderator=7  Flagged message: ban by mod\n"+
			"#1  2026-03-01 08:30:00  moderator=7  Flagged message: kick by mod\n",
		out.String())
}
