package bag

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func strPtr(v string) *string { return &v }

func TestAddSameProductAccumulates(t *testing.T) {
	b := New()
	id := uuid.New()

	require.NoError(t, b.Add(id, 2, nil))
	require.NoError(t, b.Add(id, 3, nil))

	require.Len(t, b, 1)
	assert.Equal(t, Simple{Quantity: 5}, b[id])
}

func TestAddSameSizeAccumulates(t *testing.T) {
	b := New()
	id := uuid.New()

	require.NoError(t, b.Add(id, 1, strPtr("M")))
	require.NoError(t, b.Add(id, 2, strPtr("M")))
	require.NoError(t, b.Add(id, 1, strPtr("L")))

	require.Len(t, b, 1)
	sized, ok := b[id].(Sized)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"M": 3, "L": 1}, sized.ItemsBySize)
	assert.Equal(t, 4, sized.Count())
}

func TestAddRejectsConflictingVariant(t *testing.T) {
	b := New()
	simpleID, sizedID := uuid.New(), uuid.New()
	require.NoError(t, b.Add(simpleID, 1, nil))
	require.NoError(t, b.Add(sizedID, 1, strPtr("S")))

	err := b.Add(simpleID, 1, strPtr("M"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	err = b.Add(sizedID, 1, nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	assert.Equal(t, Simple{Quantity: 1}, b[simpleID])
}

func TestAddRejectsNonPositiveQuantity(t *testing.T) {
	b := New()
	err := b.Add(uuid.New(), 0, nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.True(t, b.IsEmpty())
}

func TestSetQuantityZeroMatchesRemove(t *testing.T) {
	simpleID, sizedID := uuid.New(), uuid.New()
	seed := func() Bag {
		b := New()
		require.NoError(t, b.Add(simpleID, 2, nil))
		require.NoError(t, b.Add(sizedID, 1, strPtr("M")))
		require.NoError(t, b.Add(sizedID, 2, strPtr("L")))
		return b
	}

	cases := []struct {
		name string
		id   uuid.UUID
		size *string
	}{
		{name: "simple", id: simpleID},
		{name: "sized", id: sizedID, size: strPtr("M")},
		{name: "sized without size", id: sizedID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			viaSet, viaRemove := seed(), seed()
			require.NoError(t, viaSet.SetQuantity(tc.id, 0, tc.size))
			require.NoError(t, viaRemove.Remove(tc.id, tc.size))
			assert.Equal(t, viaRemove, viaSet)
		})
	}
}

func TestSetQuantityReplaces(t *testing.T) {
	b := New()
	id := uuid.New()
	require.NoError(t, b.Add(id, 5, nil))
	require.NoError(t, b.SetQuantity(id, 2, nil))
	assert.Equal(t, Simple{Quantity: 2}, b[id])
}

func TestRemoveLastSizeDropsEntry(t *testing.T) {
	b := New()
	id := uuid.New()
	require.NoError(t, b.Add(id, 1, strPtr("M")))

	require.NoError(t, b.Remove(id, strPtr("M")))
	_, ok := b[id]
	assert.False(t, ok)
	assert.True(t, b.IsEmpty())
}

func TestRemoveWithoutSizeDropsSizedProduct(t *testing.T) {
	b := New()
	id, other := uuid.New(), uuid.New()
	require.NoError(t, b.Add(id, 1, strPtr("M")))
	require.NoError(t, b.Add(id, 2, strPtr("L")))
	require.NoError(t, b.Add(other, 1, nil))

	require.NoError(t, b.Remove(id, nil))
	_, ok := b[id]
	assert.False(t, ok)
	assert.Equal(t, Simple{Quantity: 1}, b[other])
}

func TestRemoveMissingFails(t *testing.T) {
	b := New()
	id := uuid.New()
	err := b.Remove(id, nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, b.Add(id, 1, strPtr("M")))
	err = b.Remove(id, strPtr("XL"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	err = b.SetQuantity(uuid.New(), 0, nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRowsAreOrdered(t *testing.T) {
	b := New()
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	c := uuid.MustParse("00000000-0000-0000-0000-00000000000c")
	require.NoError(t, b.Add(c, 1, nil))
	require.NoError(t, b.Add(a, 1, strPtr("S")))
	require.NoError(t, b.Add(a, 2, strPtr("L")))

	rows := b.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, a, rows[0].ProductID)
	assert.Equal(t, "L", *rows[0].Size)
	assert.Equal(t, "S", *rows[1].Size)
	assert.Equal(t, c, rows[2].ProductID)
	assert.Nil(t, rows[2].Size)
}

func TestEncodeIsCanonical(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	c := uuid.MustParse("00000000-0000-0000-0000-00000000000c")

	first := New()
	require.NoError(t, first.Add(c, 3, nil))
	require.NoError(t, first.Add(a, 2, strPtr("L")))
	require.NoError(t, first.Add(a, 1, strPtr("M")))

	second := New()
	require.NoError(t, second.Add(a, 1, strPtr("M")))
	require.NoError(t, second.Add(a, 2, strPtr("L")))
	require.NoError(t, second.Add(c, 3, nil))

	encodedFirst, err := Encode(first)
	require.NoError(t, err)
	encodedSecond, err := Encode(second)
	require.NoError(t, err)

	assert.Equal(t, encodedFirst, encodedSecond)
	assert.Equal(t,
		`{"00000000-0000-0000-0000-00000000000a":{"items_by_size":{"L":2,"M":1}},"00000000-0000-0000-0000-00000000000c":3}`,
		encodedFirst)

	decoded, err := Decode(encodedFirst)
	require.NoError(t, err)
	assert.Equal(t, first, decoded)
}

func TestDecodeRejectsInvalidShapes(t *testing.T) {
	id := uuid.NewString()
	for name, payload := range map[string]string{
		"empty sizes":   `{"` + id + `":{"items_by_size":{}}}`,
		"zero quantity": `{"` + id + `":0}`,
		"negative size": `{"` + id + `":{"items_by_size":{"M":-1}}}`,
		"bad id":        `{"nope":1}`,
		"not an object": `[1,2]`,
		"empty label":   `{"` + id + `":{"items_by_size":{"":1}}}`,
		"padded label":  `{"` + id + `":{"items_by_size":{" M":1}}}`,
		"long label":    `{"` + id + `":{"items_by_size":{"EXTRA-LARGE":1}}}`,
		"unknown key":   `{"` + id + `":{"items_by_size":{"M":1},"colour":"red"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(payload)
			assert.Error(t, err)
		})
	}

	empty, err := Decode("")
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
}

func TestBagEmbedsInJSONDocuments(t *testing.T) {
	id := uuid.New()
	b := New()
	require.NoError(t, b.Add(id, 2, nil))

	payload, err := json.Marshal(map[string]any{"bag": b})
	require.NoError(t, err)

	var out struct {
		Bag Bag `json:"bag"`
	}
	require.NoError(t, json.Unmarshal(payload, &out))
	assert.Equal(t, b, out.Bag)
}
