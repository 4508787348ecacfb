package game

import (
	"strings"
	"time"

	"taboo/internal/words"
)

type ChatMessage struct {
	ID         string    `json:"id"`
	Author     string    `json:"author"`
	AuthorName string    `json:"author_name"`
	AuthorRole Role      `json:"author_role"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
}

// postChat broadcasts a chat line. While a turn is running nobody may
// mention the secret word or one of its forbidden terms; the line is
// rejected before anyone sees it.
func (r *Room) postChat(identity, text string, now time.Time) (ChatMessage, error) {
	if r.status == StatusFinished {
		return ChatMessage{}, ErrSessionEnded
	}
	p := r.player(identity)
	if p == nil {
		return ChatMessage{}, ErrNotAPlayer
	}
	body := strings.TrimSpace(text)
	if body == "" {
		return ChatMessage{}, ErrEmptyMessage
	}
	if r.status == StatusPlaying {
		r.tick(now)
		if r.status == StatusFinished {
			return ChatMessage{}, ErrSessionEnded
		}
		// The explainer is filtered as well as guessers. Chat is broadcast
		// to every member, so an explainer line naming the word would hand
		// it to the guessers.
		if term, hit := words.Mentions(body, r.session.entry); hit {
			r.reg.log.Debug().Str("room", r.code).Str("identity", identity).Str("term", term).Msg("chat rejected")
			return ChatMessage{}, ErrForbiddenWordUsed
		}
	}
	msg := ChatMessage{
		ID:         newEventID(),
		Author:     p.ID,
		AuthorName: p.DisplayName,
		AuthorRole: p.Role,
		Body:       body,
		SentAt:     now,
	}
	r.chat = append(r.chat, msg)
	if limit := r.reg.settings.ChatHistory; limit > 0 && len(r.chat) > limit {
		r.chat = append([]ChatMessage(nil), r.chat[len(r.chat)-limit:]...)
	}
	r.updatedAt = now
	r.emit(EventChatMessage, ChatPayload{Message: msg})
	return msg, nil
}
