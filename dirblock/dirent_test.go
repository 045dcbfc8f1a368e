package dirblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntriesPerBlockReferenceSize(t *testing.T) {
	require.Equal(t, 128, EntriesPerBlock(4096), "reference layout is 128 dirents per 4096-byte block")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	entries := []Entry{
		{Name: ".", Inum: 0},
		{Name: "..", Inum: 0},
		{Name: "notes.txt", Inum: 7},
	}
	for len(entries) < EntriesPerBlock(256) {
		entries = append(entries, Entry{Inum: FreeInum})
	}

	block := Encode(entries, 256)
	decoded := Decode(block)

	require.Len(t, decoded, len(entries))
	for i, e := range entries {
		assert.Equal(t, e, decoded[i], "entry %d did not round-trip", i)
	}
}

func TestEncodeEmptyAllFree(t *testing.T) {
	block := EncodeEmpty(EntriesPerBlock(256), 256)
	for i, e := range Decode(block) {
		assert.Equal(t, FreeInum, e.Inum, "slot %d should start free", i)
	}
}

func TestPutEntryOnlyTouchesOneSlot(t *testing.T) {
	block := EncodeEmpty(EntriesPerBlock(256), 256)
	PutEntry(block, 2, Entry{Name: "file", Inum: 9})

	decoded := Decode(block)
	assert.Equal(t, FreeInum, decoded[0].Inum)
	assert.Equal(t, FreeInum, decoded[1].Inum)
	assert.Equal(t, Entry{Name: "file", Inum: 9}, decoded[2])
	assert.Equal(t, FreeInum, decoded[3].Inum)
}

func TestNameTruncatesAtNUL(t *testing.T) {
	block := EncodeEmpty(1, 64)
	PutEntry(block, 0, Entry{Name: "short", Inum: 1})

	decoded := Decode(block)
	assert.Equal(t, "short", decoded[0].Name)
}
