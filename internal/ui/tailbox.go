package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/moby/term"
)

// tailBox keeps the last lines of a stream in a bordered box that is redrawn
// in place.
type tailBox struct {
	title string
	lines []string
	max   int
	// rows the box occupies on screen, 0 when erased
	height int
}

func (b *tailBox) push(line string) {
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

func (b *tailBox) draw(w io.Writer, colors palette) {
	if len(b.lines) == 0 {
		return
	}
	box := colors.box.Render(colors.boxTitle.Render(b.title) + "\n" + strings.Join(b.lines, "\n"))
	fmt.Fprintln(w, box)
	b.height = strings.Count(box, "\n") + 1
}

// erase moves the cursor up over the box and blanks its rows.
func (b *tailBox) erase(w io.Writer) {
	if b.height == 0 {
		return
	}
	fmt.Fprintf(w, "\x1b[%dF", b.height)
	fmt.Fprint(w, strings.Repeat("\x1b[2K\r\n", b.height))
	fmt.Fprintf(w, "\x1b[%dF", b.height)
	b.height = 0
}

// TailWriter streams output into a new tail box titled name, replacing any
// open one. Closing the writer leaves the last lines on screen.
func (l *Logger) TailWriter(name string) io.WriteCloser {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.endTailLocked()
	box := &tailBox{title: name, max: l.tailLines}
	l.tail = box
	l.recordLocked("[TAIL " + name + "] start\n")

	tw := &tailWriter{}
	tw.lines.emit = func(line string) { l.tailLine(box, line) }
	tw.end = func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.tail == box {
			l.endTailLocked()
		}
	}
	return tw
}

func (l *Logger) tailLine(box *tailBox, line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.recordLocked("[TAIL " + box.title + "] " + line + "\n")
	if !l.live || l.tail != box {
		fmt.Fprintln(l.out, line)
		return
	}
	box.erase(l.out)
	box.push(fitWidth(line, terminalWidth()-20))
	box.draw(l.out, l.colors)
}

// endTailLocked detaches the open tail. A drawn box stays where it is.
func (l *Logger) endTailLocked() {
	if l.tail == nil {
		return
	}
	l.recordLocked("[TAIL " + l.tail.title + "] end\n")
	l.tail = nil
}

type tailWriter struct {
	lines lineWriter
	end   func()
	once  sync.Once
}

func (w *tailWriter) Write(p []byte) (int, error) {
	return w.lines.Write(p)
}

func (w *tailWriter) Close() error {
	w.lines.flush()
	w.once.Do(w.end)
	return nil
}

func terminalWidth() int {
	if ws, err := term.GetWinsize(os.Stdout.Fd()); err == nil && ws.Width > 0 {
		return int(ws.Width)
	}
	return 120
}

// fitWidth pads or cuts msg to width bytes so the box keeps its shape while
// lines scroll through it.
func fitWidth(msg string, width int) string {
	const cut = "... [truncated]"
	switch {
	case width <= len(cut):
		return msg
	case len(msg) > width:
		return msg[:width-len(cut)] + cut
	default:
		return msg + strings.Repeat(" ", width-len(msg))
	}
}
