package arasaka

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

const (
	confirmCustomIDPrefix = "confirm:"
	confirmYes            = "yes"
	confirmNo             = "no"
)

// pendingConfirmations tracks confirmation prompts waiting on a button
// press, keyed by the prompt ID embedded in the button custom IDs.
type pendingConfirmations struct {
	mu      sync.Mutex
	pending map[string]chan bool
}

func newPendingConfirmations() *pendingConfirmations {
	return &pendingConfirmations{pending: map[string]chan bool{}}
}

func (p *pendingConfirmations) register() (string, chan bool) {
	id := uuid.NewString()
	ch := make(chan bool, 1)
	p.mu.Lock()
	p.pending[id] = ch
	p.mu.Unlock()
	return id, ch
}

func (p *pendingConfirmations) remove(id string) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

// resolve delivers the answer for the given prompt, returning false if
// the prompt isn't pending (already answered, or timed out)
func (p *pendingConfirmations) resolve(id string, answer bool) bool {
	p.mu.Lock()
	ch, ok := p.pending[id]
	delete(p.pending, id)
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- answer
	return true
}

func (p *pendingConfirmations) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// parseConfirmCustomID returns the prompt ID and answer from a
// confirmation button's custom ID
func parseConfirmCustomID(customID string) (id string, answer bool, ok bool) {
	rest, found := strings.CutPrefix(customID, confirmCustomIDPrefix)
	if !found {
		return "", false, false
	}
	id, choice, found := strings.Cut(rest, ":")
	if !found || id == "" {
		return "", false, false
	}
	switch choice {
	case confirmYes:
		return id, true, true
	case confirmNo:
		return id, false, true
	default:
		return "", false, false
	}
}

// ButtonConfirmer asks the user who ran a command to confirm a fuzzy
// username match, with Confirm/Cancel buttons on an ephemeral followup.
type ButtonConfirmer struct {
	handler InteractionHandler
	pending *pendingConfirmations
	timeout time.Duration
}

func (c *ButtonConfirmer) ConfirmMatch(ctx context.Context, username, match string) (bool, error) {
	id, answer := c.pending.register()
	defer c.pending.remove(id)

	msg, err := c.handler.Followup(
		ctx, &discordgo.WebhookParams{
			Flags: discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{
				{
					Title: "XP Update Confirmation",
					Color: colorBlurple,
					Description: fmt.Sprintf(
						"The username `%s` was not found. Did you mean `%s`?",
						username, match,
					),
				},
			},
			Components: confirmButtons(id),
		},
	)
	if err != nil {
		return false, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	var (
		ok      bool
		content string
	)
	select {
	case ok = <-answer:
		if ok {
			content = fmt.Sprintf("Confirmed! Proceeding with the closest match: %s.", match)
		} else {
			content = "Confirmed! I won't proceed with this username then."
		}
	case <-timer.C:
		content = "Timed out. I won't proceed with this username."
	case <-ctx.Done():
		return false, ctx.Err()
	}

	components := []discordgo.MessageComponent{}
	_, _ = c.handler.FollowupEdit(
		ctx, msg.ID, &discordgo.WebhookEdit{
			Content:    &content,
			Components: &components,
		},
	)
	return ok, nil
}

func confirmButtons(id string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Confirm",
					Style:    discordgo.SuccessButton,
					Emoji:    &discordgo.ComponentEmoji{Name: "✅"},
					CustomID: confirmCustomIDPrefix + id + ":" + confirmYes,
				},
				discordgo.Button{
					Label:    "Cancel",
					Style:    discordgo.DangerButton,
					Emoji:    &discordgo.ComponentEmoji{Name: "❌"},
					CustomID: confirmCustomIDPrefix + id + ":" + confirmNo,
				},
			},
		},
	}
}
