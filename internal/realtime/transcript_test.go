package realtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orpheus/internal/domain/transcript"
)

func TestTranscriptRecorderAssemblesDeltas(t *testing.T) {
	r := NewTranscriptRecorder(uuid.New(), uuid.New())

	r.AppendDelta("item_1", "Good ")
	r.AppendDelta("item_1", "morning, ")
	r.AppendDelta("item_1", "Alex.")
	r.FinalizeItem("item_1", "")

	entries := r.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Good morning, Alex.", entries[0].Text)
	assert.Equal(t, transcript.RoleAssistant, entries[0].Role)
	assert.Equal(t, uint32(1), entries[0].Seq)
}

func TestTranscriptRecorderDoneTranscriptWins(t *testing.T) {
	r := NewTranscriptRecorder(uuid.New(), uuid.New())

	r.AppendDelta("item_1", "partial fragm")
	r.FinalizeItem("item_1", "The complete corrected sentence.")

	entries := r.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "The complete corrected sentence.", entries[0].Text)
}

func TestTranscriptRecorderInterleavedRoles(t *testing.T) {
	callID := uuid.New()
	callerID := uuid.New()
	r := NewTranscriptRecorder(callID, callerID)

	r.AddUtterance(transcript.RoleCaller, "What time is it?")
	r.AppendDelta("item_2", "It is ")
	r.AppendDelta("item_2", "three o'clock.")
	r.FinalizeItem("item_2", "")
	r.AddUtterance(transcript.RoleCaller, "Thanks, bye")

	entries := r.Entries()
	require.Len(t, entries, 3)

	assert.Equal(t, transcript.RoleCaller, entries[0].Role)
	assert.Equal(t, transcript.RoleAssistant, entries[1].Role)
	assert.Equal(t, transcript.RoleCaller, entries[2].Role)

	// Seq is strictly increasing and every entry carries the call IDs
	for i, e := range entries {
		assert.Equal(t, uint32(i+1), e.Seq)
		assert.Equal(t, callID, e.CallID)
		assert.Equal(t, callerID, e.CallerID)
	}
}

func TestTranscriptRecorderSkipsEmpty(t *testing.T) {
	r := NewTranscriptRecorder(uuid.New(), uuid.New())

	r.AddUtterance(transcript.RoleCaller, "   ")
	r.FinalizeItem("never_seen", "")
	r.AppendDelta("item_1", "  ")
	r.FinalizeItem("item_1", "")

	assert.Zero(t, r.Len())
}

func TestTranscriptRecorderText(t *testing.T) {
	r := NewTranscriptRecorder(uuid.New(), uuid.New())

	r.AddUtterance(transcript.RoleCaller, "Remember that I like jazz")
	r.AddUtterance(transcript.RoleAssistant, "Noted, I will remember that.")

	text := r.Text()
	assert.Equal(t, "caller: Remember that I like jazz\nassistant: Noted, I will remember that.\n", text)
}

func TestTranscriptRecorderFinalizeUnknownItemWithText(t *testing.T) {
	r := NewTranscriptRecorder(uuid.New(), uuid.New())

	// A done event can arrive without any prior deltas
	r.FinalizeItem("item_9", "Full text straight from the done event")

	entries := r.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Full text straight from the done event", entries[0].Text)
}
