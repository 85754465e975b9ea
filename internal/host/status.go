package host

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"basiccore/internal/heap"
	"basiccore/internal/stack"
)

// Status renders a *STATUS-style diagnostic line: heap watermark and
// free-block count in human-readable units, plus control-stack depth
// and this session's id. Not a BASIC statement itself (spec §6.3
// leaves star commands to the host), and the REPL has no command that
// prints it.
func Status(h *heap.Heap, s *stack.Stack, sessionID string) string {
	st := h.Stats()
	return fmt.Sprintf(
		"session %s: heap %s/%s (%d free blocks), stack depth %d",
		sessionID,
		humanize.Bytes(uint64(st.Watermark)),
		humanize.Bytes(uint64(st.Capacity)),
		st.FreeBlocks,
		s.Depth(),
	)
}
