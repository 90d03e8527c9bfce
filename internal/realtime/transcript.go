package realtime

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one attributable span of speech. Content only grows until Final is set and
// never changes afterwards.
type Turn struct {
	ID        int64     `json:"id"`
	ItemID    string    `json:"item_id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Final     bool      `json:"final"`
	CreatedAt time.Time `json:"created_at"`
}

// Assembler rebuilds the conversation from normalized events. At most one assistant
// turn is open at a time.
type Assembler struct {
	turns  []Turn
	index  map[int64]int
	nextID int64
	open   int64

	now func() time.Time
	log logrus.FieldLogger
}

func NewAssembler(log logrus.FieldLogger) *Assembler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Assembler{
		index: make(map[int64]int),
		now:   func() time.Time { return time.Now().UTC() },
		log:   log,
	}
}

// Reset drops every turn. Ids keep increasing so a turn id is never reused within the
// lifetime of the assembler.
func (a *Assembler) Reset() {
	a.turns = nil
	a.index = make(map[int64]int)
	a.open = 0
}

// OpenTurnID is the id of the open assistant turn, or 0.
func (a *Assembler) OpenTurnID() int64 { return a.open }

// OpenTurn appends an empty turn. Opening an assistant turn while another is still
// open finalizes the old one with what it has.
func (a *Assembler) OpenTurn(role Role, itemID string) int64 {
	if role == RoleAssistant && a.open != 0 {
		a.log.WithField("turn_id", a.open).Warn("assistant turn opened before previous closed; finalizing previous")
		a.Finalize(a.open)
		a.open = 0
	}

	a.nextID++
	id := a.nextID
	a.index[id] = len(a.turns)
	a.turns = append(a.turns, Turn{
		ID:        id,
		ItemID:    itemID,
		Role:      role,
		CreatedAt: a.now(),
	})
	if role == RoleAssistant {
		a.open = id
	}
	return id
}

// AppendDelta adds text to a non-final turn.
func (a *Assembler) AppendDelta(id int64, text string) bool {
	i, ok := a.index[id]
	if !ok {
		a.log.WithField("turn_id", id).Warn("delta for unknown turn dropped")
		return false
	}
	if a.turns[i].Final {
		a.log.WithField("turn_id", id).Warn("delta for final turn dropped")
		return false
	}
	if text == "" {
		return false
	}
	a.turns[i].Content += text
	return true
}

// Finalize marks a turn final. Finalizing twice is a no-op.
func (a *Assembler) Finalize(id int64) bool {
	i, ok := a.index[id]
	if !ok || a.turns[i].Final {
		return false
	}
	a.turns[i].Final = true
	return true
}

// UserUtteranceComplete records a user transcription, which arrives whole.
func (a *Assembler) UserUtteranceComplete(text, itemID string) int64 {
	a.nextID++
	id := a.nextID
	a.index[id] = len(a.turns)
	a.turns = append(a.turns, Turn{
		ID:        id,
		ItemID:    itemID,
		Role:      RoleUser,
		Content:   text,
		Final:     true,
		CreatedAt: a.now(),
	})
	return id
}

// Turns returns a copy of the transcript in creation order.
func (a *Assembler) Turns() []Turn {
	out := make([]Turn, len(a.turns))
	copy(out, a.turns)
	return out
}

// Apply folds one event into the transcript and reports whether it changed.
func (a *Assembler) Apply(ev Event) bool {
	log := a.log.WithFields(logrus.Fields{"event_type": ev.Type, "kind": ev.Kind.String()})

	switch ev.Kind {
	case KindUserTranscript:
		if strings.TrimSpace(ev.Text) == "" {
			log.Debug("empty user transcription ignored")
			return false
		}
		a.UserUtteranceComplete(ev.Text, ev.ItemID)
		return true

	case KindOutputItemAdded:
		if ev.Role != "" && ev.Role != string(RoleAssistant) {
			return false
		}
		if ev.ItemType != "" && ev.ItemType != "message" {
			return false
		}
		a.OpenTurn(RoleAssistant, ev.ItemID)
		return true

	case KindAssistantDelta:
		if a.open == 0 {
			log.Warn("assistant delta with no open turn dropped")
			return false
		}
		return a.AppendDelta(a.open, ev.Text)

	case KindAssistantDone:
		if a.open == 0 {
			log.Debug("assistant done with no open turn")
			return false
		}
		i := a.index[a.open]
		changed := false
		// Deltas may have been lost; the done event carries the full text.
		if !a.turns[i].Final && a.turns[i].Content == "" && ev.Text != "" {
			a.turns[i].Content = ev.Text
			changed = true
		}
		return a.Finalize(a.open) || changed

	case KindOutputItemDone, KindResponseDone:
		if a.open == 0 {
			return false
		}
		changed := a.Finalize(a.open)
		a.open = 0
		return changed
	}
	return false
}
