// Package remote talks to the partner robot over a line based TCP link.
package remote

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedMessage is returned by Parse.
var ErrMalformedMessage = errors.New("malformed remote message")

// Kind is the message verb.
type Kind string

const (
	AddZone    Kind = "add-zone"
	DeleteZone Kind = "delete-zone"
	ActionData Kind = "action-data"
)

// Message is one line of the link protocol:
// add-zone#<id>, delete-zone#<id> or action-data#<id>#<payload>.
type Message struct {
	Kind    Kind
	ID      string
	Payload string
}

// Parse decodes one line; surrounding whitespace is ignored.
func Parse(line string) (Message, error) {
	parts := strings.SplitN(strings.TrimSpace(line), "#", 3)
	if len(parts) < 2 || parts[1] == "" {
		return Message{}, fmt.Errorf("%w: %q", ErrMalformedMessage, line)
	}
	m := Message{Kind: Kind(parts[0]), ID: parts[1]}
	switch m.Kind {
	case AddZone, DeleteZone:
		if len(parts) == 3 {
			return Message{}, fmt.Errorf("%w: %q", ErrMalformedMessage, line)
		}
	case ActionData:
		if len(parts) == 3 {
			m.Payload = parts[2]
		}
	default:
		return Message{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedMessage, parts[0])
	}
	return m, nil
}

var (
	lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")
	idEscaper  = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ", "#", "_")
)

// String encodes m as one line. Line breaks become spaces and a '#' in the
// id becomes '_', so the result always parses back as a single message.
func (m Message) String() string {
	id := idEscaper.Replace(m.ID)
	if m.Kind == ActionData {
		return fmt.Sprintf("%s#%s#%s", m.Kind, id, lineBreaks.Replace(m.Payload))
	}
	return fmt.Sprintf("%s#%s", m.Kind, id)
}
