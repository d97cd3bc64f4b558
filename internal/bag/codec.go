package bag

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// sizedWire is the session/metadata shape of a Sized entry.
type sizedWire struct {
	ItemsBySize map[string]int `json:"items_by_size"`
}

// MarshalJSON renders the bag as {"<product id>": <qty> | {"items_by_size": {...}}}.
// Keys are emitted in sorted order so equal bags always serialize to equal strings.
func (b Bag) MarshalJSON() ([]byte, error) {
	wire := make(map[string]any, len(b))
	for id, entry := range b {
		switch e := entry.(type) {
		case Simple:
			wire[id.String()] = e.Quantity
		case Sized:
			wire[id.String()] = sizedWire{ItemsBySize: e.ItemsBySize}
		default:
			return nil, fmt.Errorf("unsupported bag entry %T", entry)
		}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the session shape. It enforces the same rules as the mutators:
// size maps are non-empty, labels are trimmed and short, quantities are positive.
func (b *Bag) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode bag: %w", err)
	}

	out := make(Bag, len(raw))
	for key, value := range raw {
		id, err := uuid.Parse(key)
		if err != nil {
			return fmt.Errorf("decode bag: invalid product id %q: %w", key, err)
		}
		entry, err := decodeEntry(value)
		if err != nil {
			return fmt.Errorf("decode bag entry %s: %w", key, err)
		}
		out[id] = entry
	}
	*b = out
	return nil
}

func decodeEntry(value json.RawMessage) (Entry, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var sized sizedWire
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&sized); err != nil {
			return nil, err
		}
		if len(sized.ItemsBySize) == 0 {
			return nil, fmt.Errorf("items_by_size is empty")
		}
		for size, qty := range sized.ItemsBySize {
			label, ok, err := normalizeSize(&size)
			if err != nil {
				return nil, err
			}
			if !ok || label != size {
				return nil, fmt.Errorf("invalid size label %q", size)
			}
			if qty <= 0 {
				return nil, fmt.Errorf("size %q has non-positive quantity %d", size, qty)
			}
		}
		return Sized{ItemsBySize: sized.ItemsBySize}, nil
	}

	var qty int
	if err := json.Unmarshal(trimmed, &qty); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, fmt.Errorf("non-positive quantity %d", qty)
	}
	return Simple{Quantity: qty}, nil
}

// Encode returns the canonical serialization stored as an order's original bag.
func Encode(b Bag) (string, error) {
	if b == nil {
		b = New()
	}
	data, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses a serialized bag. An empty string decodes to an empty bag.
func Decode(data string) (Bag, error) {
	if len(bytes.TrimSpace([]byte(data))) == 0 {
		return New(), nil
	}
	var b Bag
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return nil, err
	}
	return b, nil
}
