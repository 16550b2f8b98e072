// Package macro defines the recorded event model and its on-disk format.
package macro

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind tags the variant held by an Event.
type Kind uint8

const (
	KindKey Kind = iota + 1
	KindClick
)

func (k Kind) String() string {
	switch k {
	case KindKey:
		return "key"
	case KindClick:
		return "click"
	default:
		return "unknown"
	}
}

// Point is an absolute screen coordinate in engine space.
type Point struct {
	X int
	Y int
}

func (p Point) String() string {
	return fmt.Sprintf("%d,%d", p.X, p.Y)
}

// Event is a single recorded action: either a key or a mouse click at a
// position. Events are values; the zero Event is invalid.
type Event struct {
	kind   Kind
	key    Key
	button Button
	at     Point
}

// KeyEvent returns a key event.
func KeyEvent(k Key) Event {
	return Event{kind: KindKey, key: k}
}

// ClickEvent returns a mouse click event at (x, y).
func ClickEvent(b Button, x, y int) Event {
	return Event{kind: KindClick, button: b, at: Point{X: x, Y: y}}
}

func (e Event) Kind() Kind         { return e.kind }
func (e Event) Key() Key           { return e.key }
func (e Event) Button() Button     { return e.button }
func (e Event) Point() Point       { return e.at }
func (e Event) Equal(o Event) bool { return e == o }

func (e Event) String() string {
	switch e.kind {
	case KindKey:
		return fmt.Sprintf("Key(%s)", e.key)
	case KindClick:
		return fmt.Sprintf("MouseClick(%s, %d, %d)", e.button, e.at.X, e.at.Y)
	default:
		return "Event(invalid)"
	}
}

// wireEvent is the field-tagged form shared by the JSON and YAML encodings.
type wireEvent struct {
	Type   string  `json:"type" yaml:"type"`
	Key    *Key    `json:"key,omitempty" yaml:"key,omitempty"`
	Button *Button `json:"button,omitempty" yaml:"button,omitempty"`
	X      *int    `json:"x,omitempty" yaml:"x,omitempty"`
	Y      *int    `json:"y,omitempty" yaml:"y,omitempty"`
}

func (e Event) toWire() (wireEvent, error) {
	switch e.kind {
	case KindKey:
		k := e.key
		return wireEvent{Type: KindKey.String(), Key: &k}, nil
	case KindClick:
		b, x, y := e.button, e.at.X, e.at.Y
		return wireEvent{Type: KindClick.String(), Button: &b, X: &x, Y: &y}, nil
	default:
		return wireEvent{}, errors.New("cannot encode invalid event")
	}
}

func (w wireEvent) toEvent() (Event, error) {
	switch strings.ToLower(w.Type) {
	case "key":
		if w.Key == nil {
			return Event{}, errors.New("key event missing key")
		}
		if w.Button != nil || w.X != nil || w.Y != nil {
			return Event{}, errors.New("key event carries click fields")
		}
		return KeyEvent(*w.Key), nil
	case "click":
		if w.Key != nil {
			return Event{}, errors.New("click event carries a key")
		}
		if w.Button == nil {
			return Event{}, errors.New("click event missing button")
		}
		if w.X == nil || w.Y == nil {
			return Event{}, errors.New("click event missing coordinates")
		}
		return ClickEvent(*w.Button, *w.X, *w.Y), nil
	case "":
		return Event{}, errors.New("event missing type")
	default:
		return Event{}, fmt.Errorf("unknown event type %q", w.Type)
	}
}

func (e Event) MarshalJSON() ([]byte, error) {
	w, err := e.toWire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ev, err := w.toEvent()
	if err != nil {
		return err
	}
	*e = ev
	return nil
}

func (e Event) MarshalYAML() (interface{}, error) {
	return e.toWire()
}

func (e *Event) UnmarshalYAML(value *yaml.Node) error {
	var w wireEvent
	if err := value.Decode(&w); err != nil {
		return err
	}
	ev, err := w.toEvent()
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*e = ev
	return nil
}

// Sequence is an ordered macro; index order is the order of occurrence.
type Sequence []Event

// Clone returns an independent copy of s.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	return append(Sequence(nil), s...)
}

// Equal reports whether s and o hold the same events in the same order.
func (s Sequence) Equal(o Sequence) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Counts returns the number of key and click events in s.
func (s Sequence) Counts() (keys, clicks int) {
	for _, ev := range s {
		switch ev.kind {
		case KindKey:
			keys++
		case KindClick:
			clicks++
		}
	}
	return keys, clicks
}
