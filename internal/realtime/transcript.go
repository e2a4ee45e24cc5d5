package realtime

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"orpheus/internal/domain/transcript"
)

// TranscriptRecorder assembles the call transcript from streamed
// fragments. Assistant speech arrives as per-item deltas that are
// finalized when the item completes; caller speech arrives whole once
// upstream transcription finishes.
type TranscriptRecorder struct {
	mu       sync.Mutex
	callID   uuid.UUID
	callerID uuid.UUID
	seq      uint32
	entries  []transcript.Entry
	partial  map[string]*strings.Builder // item ID -> accumulated deltas
}

// NewTranscriptRecorder creates a recorder bound to one call
func NewTranscriptRecorder(callID, callerID uuid.UUID) *TranscriptRecorder {
	return &TranscriptRecorder{
		callID:   callID,
		callerID: callerID,
		partial:  make(map[string]*strings.Builder),
	}
}

// AppendDelta accumulates one assistant transcript fragment for an item
func (r *TranscriptRecorder) AppendDelta(itemID, delta string) {
	if delta == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.partial[itemID]
	if !ok {
		b = &strings.Builder{}
		r.partial[itemID] = b
	}
	b.WriteString(delta)
}

// FinalizeItem seals an assistant item into a transcript entry. When
// the done event carries the full transcript it wins over accumulated
// deltas; otherwise the deltas are used.
func (r *TranscriptRecorder) FinalizeItem(itemID, fullText string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	text := fullText
	if text == "" {
		if b, ok := r.partial[itemID]; ok {
			text = b.String()
		}
	}
	delete(r.partial, itemID)

	if strings.TrimSpace(text) == "" {
		return
	}
	r.append(transcript.RoleAssistant, text)
}

// AddUtterance records one complete utterance, used for caller speech
// transcribed upstream.
func (r *TranscriptRecorder) AddUtterance(role transcript.Role, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.append(role, text)
}

// append requires r.mu held
func (r *TranscriptRecorder) append(role transcript.Role, text string) {
	r.seq++
	r.entries = append(r.entries, transcript.Entry{
		CallID:   r.callID,
		CallerID: r.callerID,
		Seq:      r.seq,
		Role:     role,
		Text:     text,
		At:       time.Now().UTC(),
	})
}

// Entries returns a snapshot of the finalized entries in order
func (r *TranscriptRecorder) Entries() []transcript.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]transcript.Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of finalized entries
func (r *TranscriptRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Text renders the transcript as "role: text" lines for the summarizer
func (r *TranscriptRecorder) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	for _, e := range r.entries {
		b.WriteString(string(e.Role))
		b.WriteString(": ")
		b.WriteString(e.Text)
		b.WriteString("\n")
	}
	return b.String()
}
