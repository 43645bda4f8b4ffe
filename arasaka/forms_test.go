package arasaka

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestParseRequestCustomID(t *testing.T) {
	tests := []struct {
		customID string
		action   string
		kind     requestKind
		ok       bool
	}{
		{"request:promotion:accept", requestAccept, requestPromotion, true},
		{"request:inactivity:decline", requestDecline, requestInactivity, true},
		{"request:discharge:accept", requestAccept, requestDischarge, true},
		{"request:vacation:accept", "", "", false},
		{"request:promotion:approve", "", "", false},
		{"request:promotion", "", "", false},
		{"confirm:abc:yes", "", "", false},
	}
	for _, tt := range tests {
		t.Run(
			tt.customID, func(t *testing.T) {
				action, kind, ok := parseRequestCustomID(tt.customID)
				assert.Equal(t, tt.action, action)
				assert.Equal(t, tt.kind, kind)
				assert.Equal(t, tt.ok, ok)
			},
		)
	}

	// every button posted with a request can be parsed back
	for _, k := range []requestKind{requestPromotion, requestInactivity, requestDischarge} {
		for _, id := range buttonIDs(requestButtons(k)) {
			_, kind, ok := parseRequestCustomID(id)
			assert.True(t, ok, id)
			assert.Equal(t, k, kind)
		}
	}
}

func TestModalValues(t *testing.T) {
	data := discordgo.ModalSubmitInteractionData{
		CustomID: modalDischarge,
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: inputUsername, Value: " Goro "},
				},
			},
			&discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: inputReason, Value: "Moving on"},
				},
			},
			// value types aren't what discordgo decodes, and are skipped
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.TextInput{CustomID: inputRank, Value: "Sergeant"},
				},
			},
		},
	}
	assert.Equal(
		t,
		map[string]string{inputUsername: "Goro", inputReason: "Moving on"},
		modalValues(data),
	)
}

func TestRequestEmbed(t *testing.T) {
	embed := requestEmbed(
		requestInactivity,
		Actor{ID: "member-1", DisplayName: "alice"},
		[]*discordgo.MessageEmbedField{
			{Name: fieldUsername, Value: "alice"},
			{Name: fieldReason, Value: "Vacation"},
		},
	)
	assert.Equal(t, "Inactivity Notice", embed.Title)
	assert.Equal(t, "Submitted by <@member-1>", embed.Description)
	assert.Equal(t, "member-1", embed.Footer.Text)
	assert.Equal(t, map[string]string{fieldUsername: "alice", fieldReason: "Vacation"}, embedFields(embed))
}
