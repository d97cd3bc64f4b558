package bag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Entry is the quantity held for one product. It is either Simple or Sized.
type Entry interface {
	// Count returns the number of units the entry represents.
	Count() int
	clone() Entry
}

// Simple is a sizeless product line.
type Simple struct {
	Quantity int
}

// Sized holds quantities per size label. It is never stored empty.
type Sized struct {
	ItemsBySize map[string]int
}

func (s Simple) Count() int { return s.Quantity }

func (s Simple) clone() Entry { return s }

func (s Sized) Count() int {
	total := 0
	for _, qty := range s.ItemsBySize {
		total += qty
	}
	return total
}

func (s Sized) clone() Entry {
	items := make(map[string]int, len(s.ItemsBySize))
	for size, qty := range s.ItemsBySize {
		items[size] = qty
	}
	return Sized{ItemsBySize: items}
}

// Sizes returns the size labels in sorted order.
func (s Sized) Sizes() []string {
	sizes := make([]string, 0, len(s.ItemsBySize))
	for size := range s.ItemsBySize {
		sizes = append(sizes, size)
	}
	sort.Strings(sizes)
	return sizes
}

// Bag maps product ids to their entry.
type Bag map[uuid.UUID]Entry

// New returns an empty bag.
func New() Bag {
	return Bag{}
}

// IsEmpty reports whether the bag holds no entries.
func (b Bag) IsEmpty() bool {
	return len(b) == 0
}

// Clone returns a deep copy of the bag.
func (b Bag) Clone() Bag {
	out := make(Bag, len(b))
	for id, entry := range b {
		out[id] = entry.clone()
	}
	return out
}

// Add increments the quantity for productID, or for one size of it when size is set.
func (b Bag) Add(productID uuid.UUID, quantity int, size *string) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"quantity": quantity})
	}
	label, sized, err := normalizeSize(size)
	if err != nil {
		return err
	}

	existing, ok := b[productID]
	if !ok {
		if sized {
			b[productID] = Sized{ItemsBySize: map[string]int{label: quantity}}
		} else {
			b[productID] = Simple{Quantity: quantity}
		}
		return nil
	}

	switch entry := existing.(type) {
	case Simple:
		if sized {
			return conflictingVariant(productID)
		}
		entry.Quantity += quantity
		b[productID] = entry
	case Sized:
		if !sized {
			return conflictingVariant(productID)
		}
		entry.ItemsBySize[label] += quantity
	}
	return nil
}

// SetQuantity replaces the quantity for productID (or one of its sizes). A quantity of zero
// or less removes the entry.
func (b Bag) SetQuantity(productID uuid.UUID, quantity int, size *string) error {
	if quantity <= 0 {
		return b.Remove(productID, size)
	}
	label, sized, err := normalizeSize(size)
	if err != nil {
		return err
	}

	existing, ok := b[productID]
	if !ok {
		if sized {
			b[productID] = Sized{ItemsBySize: map[string]int{label: quantity}}
		} else {
			b[productID] = Simple{Quantity: quantity}
		}
		return nil
	}

	switch entry := existing.(type) {
	case Simple:
		if sized {
			return conflictingVariant(productID)
		}
		b[productID] = Simple{Quantity: quantity}
	case Sized:
		if !sized {
			return conflictingVariant(productID)
		}
		entry.ItemsBySize[label] = quantity
	}
	return nil
}

// Remove deletes productID from the bag, or only one of its sizes. Removing the last size
// removes the product, and so does removing a sized product without naming a size.
func (b Bag) Remove(productID uuid.UUID, size *string) error {
	label, sized, err := normalizeSize(size)
	if err != nil {
		return err
	}

	existing, ok := b[productID]
	if !ok {
		return entryNotFound(productID, label)
	}

	switch entry := existing.(type) {
	case Simple:
		if sized {
			return entryNotFound(productID, label)
		}
		delete(b, productID)
	case Sized:
		if !sized {
			delete(b, productID)
			return nil
		}
		if _, ok := entry.ItemsBySize[label]; !ok {
			return entryNotFound(productID, label)
		}
		delete(entry.ItemsBySize, label)
		if len(entry.ItemsBySize) == 0 {
			delete(b, productID)
		}
	}
	return nil
}

// Row is one flattened (product, size, quantity) tuple.
type Row struct {
	ProductID uuid.UUID
	Size      *string
	Quantity  int
}

// Rows flattens every simple entry and every size of every sized entry. Rows are ordered
// by product id and then size label.
func (b Bag) Rows() []Row {
	ids := make([]uuid.UUID, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	rows := make([]Row, 0, len(b))
	for _, id := range ids {
		switch entry := b[id].(type) {
		case Simple:
			rows = append(rows, Row{ProductID: id, Quantity: entry.Quantity})
		case Sized:
			for _, size := range entry.Sizes() {
				label := size
				rows = append(rows, Row{ProductID: id, Size: &label, Quantity: entry.ItemsBySize[size]})
			}
		}
	}
	return rows
}

func normalizeSize(size *string) (string, bool, error) {
	if size == nil {
		return "", false, nil
	}
	label := strings.TrimSpace(*size)
	if label == "" {
		return "", false, nil
	}
	if len(label) > 10 {
		return "", false, pkgerrors.New(pkgerrors.CodeValidation, "size label is too long").
			WithDetails(map[string]any{"size": label})
	}
	return label, true, nil
}

func conflictingVariant(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "product is already in the bag with a different size variant").
		WithDetails(map[string]any{"product_id": productID.String()})
}

func entryNotFound(productID uuid.UUID, size string) error {
	details := map[string]any{"product_id": productID.String()}
	msg := fmt.Sprintf("product %s is not in the bag", productID)
	if size != "" {
		details["size"] = size
		msg = fmt.Sprintf("size %s of product %s is not in the bag", size, productID)
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, msg).WithDetails(details)
}
