package dispatch

import (
	"sort"
	"strings"
)

// SubTypeBotMessage is the Slack subtype carried by bot-authored messages.
const SubTypeBotMessage = "bot_message"

// Message is one inbound chat message.
type Message struct {
	SenderID    string
	Text        string
	ChannelID   string
	ChannelType string
	BotOrigin   bool
	SubType     string
}

// FromBot reports whether the message was authored by a bot.
func (m Message) FromBot() bool {
	return m.BotOrigin || m.SubType == SubTypeBotMessage
}

// UserSet is an immutable set of user IDs allowed to issue commands.
type UserSet struct {
	ids map[string]struct{}
}

// NewUserSet builds a set from ids, ignoring blanks.
func NewUserSet(ids ...string) UserSet {
	set := UserSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set.ids[id] = struct{}{}
		}
	}
	return set
}

// Contains reports whether id is in the set.
func (s UserSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the set size.
func (s UserSet) Len() int { return len(s.ids) }

// IDs returns the members, sorted.
func (s UserSet) IDs() []string {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
