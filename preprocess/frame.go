package preprocess

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gogpu/sdsl/source"
)

// FrameID identifies a frame within an Arena.
type FrameID int32

// NoFrame is the parent of a root frame.
const NoFrame FrameID = -1

// ErrReleased is returned when a released arena is accessed.
var ErrReleased = errors.New("preprocess: arena released")

// Segment maps a range of a frame's text to the parent range it was derived
// from. Copied text has DstLen == SrcLen and maps offset by offset;
// synthetic text (a macro expansion) maps every offset to Src.
type Segment struct {
	Dst, DstLen int
	Src, SrcLen int
	Synthetic   bool
}

// Frame is one immutable stage of preprocessed text.
type Frame struct {
	ID       FrameID
	Parent   FrameID
	Phase    string
	Text     string
	Segments []Segment
}

// Arena owns the frames of one preprocessing run.
type Arena struct {
	frames   []Frame
	released bool
	index    *source.LineIndex
}

// NewArena creates an arena whose root frame holds the original source.
func NewArena(text string) *Arena {
	a := &Arena{}
	a.frames = append(a.frames, Frame{
		ID:       0,
		Parent:   NoFrame,
		Phase:    "source",
		Text:     text,
		Segments: []Segment{{Dst: 0, DstLen: len(text), Src: 0, SrcLen: len(text)}},
	})
	return a
}

// Root returns the ID of the original-source frame.
func (a *Arena) Root() FrameID { return 0 }

// Len returns the number of frames.
func (a *Arena) Len() int { return len(a.frames) }

// Frame returns the frame with the given ID.
func (a *Arena) Frame(id FrameID) (*Frame, error) {
	if a.released {
		return nil, ErrReleased
	}
	if id < 0 || int(id) >= len(a.frames) {
		return nil, fmt.Errorf("preprocess: frame %d out of range", id)
	}
	return &a.frames[id], nil
}

// Text returns the text of a frame, or "" if it does not exist.
func (a *Arena) Text(id FrameID) string {
	f, err := a.Frame(id)
	if err != nil {
		return ""
	}
	return f.Text
}

func (a *Arena) add(parent FrameID, phase string, b *frameBuilder) FrameID {
	id := FrameID(len(a.frames))
	a.frames = append(a.frames, Frame{
		ID:       id,
		Parent:   parent,
		Phase:    phase,
		Text:     b.sb.String(),
		Segments: b.segs,
	})
	return id
}

// Translate maps an offset in frame id back to an offset in the original
// source.
func (a *Arena) Translate(id FrameID, offset int) (int, error) {
	return a.translate(id, offset, false)
}

func (a *Arena) translate(id FrameID, offset int, end bool) (int, error) {
	for {
		f, err := a.Frame(id)
		if err != nil {
			return 0, err
		}
		if f.Parent == NoFrame {
			return offset, nil
		}
		offset = f.parentOffset(offset, end)
		id = f.Parent
	}
}

// Position maps an offset in frame id to a position in the original source.
func (a *Arena) Position(id FrameID, offset int) (source.Position, error) {
	off, err := a.Translate(id, offset)
	if err != nil {
		return source.Position{}, err
	}
	if a.index == nil {
		a.index = source.NewLineIndex(a.frames[0].Text)
	}
	return a.index.Position(off), nil
}

// Span maps a span whose offsets are in frame id to an original-source span.
// The length is recomputed from the translated end so that spans over
// macro expansions cover the whole invocation.
func (a *Arena) Span(id FrameID, offset, length int) (source.Span, error) {
	start, err := a.Position(id, offset)
	if err != nil {
		return source.Span{}, err
	}
	if length <= 0 {
		return source.Span{Start: start}, nil
	}
	end, err := a.translate(id, offset+length-1, true)
	if err != nil {
		return source.Span{}, err
	}
	n := end + 1 - start.Offset
	if n < 1 {
		n = 1
	}
	return source.Span{Start: start, Len: n}, nil
}

// Release drops every frame buffer. Later accesses fail with ErrReleased.
func (a *Arena) Release() {
	a.frames = nil
	a.index = nil
	a.released = true
}

// parentOffset maps offset to the parent frame. Inside synthetic text it
// maps to the first byte of the replaced range, or to its last byte when end
// is set.
func (f *Frame) parentOffset(offset int, end bool) int {
	segs := f.Segments
	if len(segs) == 0 {
		return 0
	}
	i := sort.Search(len(segs), func(i int) bool { return segs[i].Dst+segs[i].DstLen > offset })
	if i == len(segs) {
		last := segs[len(segs)-1]
		return last.Src + last.SrcLen
	}
	s := segs[i]
	if offset < s.Dst {
		return s.Src
	}
	if s.Synthetic {
		if end && s.SrcLen > 0 {
			return s.Src + s.SrcLen - 1
		}
		return s.Src
	}
	return s.Src + (offset - s.Dst)
}

// frameBuilder accumulates the text and segments of a new frame.
type frameBuilder struct {
	sb   strings.Builder
	segs []Segment
}

// copy appends parent[from:to] verbatim.
func (b *frameBuilder) copy(parent string, from, to int) {
	if to <= from {
		return
	}
	dst := b.sb.Len()
	b.sb.WriteString(parent[from:to])
	if n := len(b.segs); n > 0 {
		last := &b.segs[n-1]
		if !last.Synthetic && last.Dst+last.DstLen == dst && last.Src+last.SrcLen == from {
			last.DstLen += to - from
			last.SrcLen += to - from
			return
		}
	}
	b.segs = append(b.segs, Segment{Dst: dst, DstLen: to - from, Src: from, SrcLen: to - from})
}

// synth appends text that replaces parent[from:to].
func (b *frameBuilder) synth(text string, from, to int) {
	if text == "" {
		return
	}
	dst := b.sb.Len()
	b.sb.WriteString(text)
	b.segs = append(b.segs, Segment{Dst: dst, DstLen: len(text), Src: from, SrcLen: to - from, Synthetic: true})
}
