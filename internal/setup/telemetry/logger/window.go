package logger

// lineWindow keeps the most recent lines written to a log file.
type lineWindow struct {
	lines []string
	next  int // index of the slot written next
	count int // lines currently held
	seen  int // lines written since the last compaction
}

func newLineWindow(capacity int) *lineWindow {
	if capacity < 1 {
		capacity = 1
	}

	return &lineWindow{lines: make([]string, capacity)}
}

func (lw *lineWindow) push(line string) {
	lw.lines[lw.next] = line
	lw.next = (lw.next + 1) % len(lw.lines)

	if lw.count < len(lw.lines) {
		lw.count++
	}

	lw.seen++
}

// snapshot returns the held lines oldest first.
func (lw *lineWindow) snapshot() []string {
	if lw.count == 0 {
		return nil
	}

	out := make([]string, 0, lw.count)
	start := (lw.next - lw.count + len(lw.lines)) % len(lw.lines)

	for i := range lw.count {
		out = append(out, lw.lines[(start+i)%len(lw.lines)])
	}

	return out
}
