package action_test

import (
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/glyphbot/glyph/internal/moderation/action"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCustomID(t *testing.T) {
	t.Parallel()

	got := action.EncodeCustomID(action.ActionKick, 111, 222)
	assert.Equal(t, "flagged_message_options:kick-111-222", got)

	target, ok := action.DecodeCustomID(got)
	require.True(t, ok)
	assert.Equal(t, action.Target{
		Action:    action.ActionKick,
		ChannelID: snowflake.ID(111),
		MessageID: snowflake.ID(222),
	}, target)
}

func TestDecodeCustomID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		customID string
		want     action.Target
		ok       bool
	}{
		{
			name:     "delete",
			customID: "flagged_message_options:delete-1-2",
			want:     action.Target{Action: action.ActionDelete, ChannelID: 1, MessageID: 2},
			ok:       true,
		},
		{
			name:     "timeout",
			customID: "flagged_message_options:timeout-1234567890123456789-987654321",
			want:     action.Target{Action: action.ActionTimeout, ChannelID: 1234567890123456789, MessageID: 987654321},
			ok:       true,
		},
		{name: "other namespace", customID: "settings_menu:ban-1-2"},
		{name: "no separator", customID: "flagged_message_options"},
		{name: "empty", customID: ""},
		{name: "unknown action", customID: "flagged_message_options:mute-1-2"},
		{name: "missing message", customID: "flagged_message_options:ban-1"},
		{name: "extra part", customID: "flagged_message_options:ban-1-2-3"},
		{name: "non numeric channel", customID: "flagged_message_options:ban-abc-2"},
		{name: "negative message", customID: "flagged_message_options:ban-1--2"},
		{name: "zero channel", customID: "flagged_message_options:ban-0-2"},
		{name: "overflow", customID: "flagged_message_options:ban-1-99999999999999999999"},
		{name: "uppercase action", customID: "flagged_message_options:BAN-1-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := action.DecodeCustomID(tt.customID)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildView(t *testing.T) {
	t.Parallel()

	t.Run("enabled", func(t *testing.T) {
		t.Parallel()

		buttons := action.BuildView(10, 20, 30, 24*time.Hour, false).Buttons()
		require.Len(t, buttons, 5)

		assert.Equal(t, "https://discord.com/channels/10/20/30", buttons[0].URL)
		assert.Equal(t, "Timeout [1d]", buttons[2].Label)
		assert.Equal(t, "flagged_message_options:delete-20-30", buttons[1].CustomID)
		assert.Equal(t, "flagged_message_options:timeout-20-30", buttons[2].CustomID)
		assert.Equal(t, "flagged_message_options:kick-20-30", buttons[3].CustomID)
		assert.Equal(t, "flagged_message_options:ban-20-30", buttons[4].CustomID)

		for _, b := range buttons {
			assert.False(t, b.Disabled)
		}
	})

	t.Run("disabled keeps link", func(t *testing.T) {
		t.Parallel()

		buttons := action.BuildView(10, 20, 30, 24*time.Hour, true).Buttons()
		require.Len(t, buttons, 5)

		assert.False(t, buttons[0].Disabled)
		for _, b := range buttons[1:] {
			assert.True(t, b.Disabled, b.Label)
		}
	})

	t.Run("timeout label follows duration", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			timeout time.Duration
			want    string
		}{
			{6 * time.Hour, "Timeout [6h]"},
			{36 * time.Hour, "Timeout [36h]"},
			{72 * time.Hour, "Timeout [3d]"},
			{30 * time.Minute, "Timeout [30m]"},
			{90 * time.Second, "Timeout [1m30s]"},
		}

		for _, tt := range tests {
			buttons := action.BuildView(10, 20, 30, tt.timeout, false).Buttons()
			assert.Equal(t, tt.want, buttons[2].Label)
		}
	})
}
