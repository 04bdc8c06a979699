package server

import (
	"regexp"

	"github.com/jeremymiller99/lumberjacksim-sub000/internal/items"
	"github.com/jeremymiller99/lumberjacksim-sub000/internal/quest"
)

// Client to server message types.
const (
	MsgHello     = "hello"
	MsgInteract  = "interact"
	MsgSelect    = "select"
	MsgEvent     = "event"
	MsgSpawn     = "spawn"
	MsgDespawn   = "despawn"
	MsgQuests    = "quests"
	MsgInventory = "inventory"
)

// Server to client message types. Quest snapshots and alert toggles use the
// payload types defined by the quest package.
const (
	MsgWelcome       = "welcome"
	MsgDialogue      = "dialogue"
	MsgDialogueClose = "dialogueClose"
	MsgNotify        = "notify"
	MsgError         = "error"
)

// Error codes carried by ErrorMessage.
const (
	CodeBadHello         = "bad_hello"
	CodeAlreadyConnected = "already_connected"
	CodeUnavailable      = "unavailable"
	CodeMalformed        = "malformed"
	CodeUnknownType      = "unknown_type"
	CodeBadRequest       = "bad_request"
	CodeStaleOption      = "stale_option"
	CodeUnknownItem      = "unknown_item"
	CodeRateLimited      = "rate_limited"
)

var playerIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// ValidPlayerID reports whether id may identify a player
func ValidPlayerID(id string) bool {
	return playerIDPattern.MatchString(id)
}

// ClientMessage is the union of every message a client can send.
type ClientMessage struct {
	Type     string `json:"type"`
	Player   string `json:"player,omitempty"`   // hello
	NPC      string `json:"npc,omitempty"`      // interact, select
	ID       int    `json:"id,omitempty"`       // select
	Kind     string `json:"kind,omitempty"`     // event
	Target   string `json:"target,omitempty"`   // event
	Quantity int    `json:"quantity,omitempty"` // event
}

// WelcomeMessage acknowledges a hello.
type WelcomeMessage struct {
	Type      string   `json:"type"`
	Player    string   `json:"player"`
	Active    []string `json:"active"`
	Completed []string `json:"completed"`
}

// OptionView is one selectable dialogue option.
type OptionView struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// DialogueMessage shows NPC text and the options the player can pick.
type DialogueMessage struct {
	Type    string       `json:"type"`
	NPC     string       `json:"npc"`
	Text    string       `json:"text,omitempty"`
	Options []OptionView `json:"options"`
}

// DialogueCloseMessage tells the client to close the dialogue window.
type DialogueCloseMessage struct {
	Type string `json:"type"`
	NPC  string `json:"npc"`
}

// NotifyMessage is a user-facing notification.
type NotifyMessage struct {
	Type    string           `json:"type"`
	Message string           `json:"message"`
	Kind    quest.NotifyKind `json:"kind"`
}

// ErrorMessage reports a rejected request.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// InventoryMessage describes the player's bag and purse.
type InventoryMessage struct {
	Type        string        `json:"type"`
	Items       []items.Stack `json:"items"`
	FreeSlots   int           `json:"freeSlots"`
	Currency    int           `json:"currency"`
	SkillPoints int           `json:"skillPoints"`
}

func newError(code, message string) ErrorMessage {
	return ErrorMessage{Type: MsgError, Code: code, Message: message}
}

func optionViews(opts []*quest.DialogueOption) []OptionView {
	views := make([]OptionView, 0, len(opts))
	for _, opt := range opts {
		views = append(views, OptionView{ID: opt.ID(), Text: opt.Text})
	}
	return views
}
