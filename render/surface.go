package render

// Surface is a drawing target of fixed size.
type Surface interface {
	Size() (width, height int)
	Clear()
	FillRect(r Rect, c Color)
}

// Op is one recorded surface operation.
type Op struct {
	Clear bool
	Rect  Rect
	Color Color
}

// Recorder is a Surface that records operations instead of drawing them.
type Recorder struct {
	Width, Height int
	Ops           []Op
}

// NewRecorder creates a recorder of the given size.
func NewRecorder(width, height int) *Recorder {
	return &Recorder{Width: width, Height: height}
}

func (r *Recorder) Size() (int, int) { return r.Width, r.Height }
func (r *Recorder) Clear()           { r.Ops = append(r.Ops, Op{Clear: true}) }

func (r *Recorder) FillRect(rect Rect, c Color) {
	r.Ops = append(r.Ops, Op{Rect: rect, Color: c})
}

// Fills returns the recorded fills since the last clear.
func (r *Recorder) Fills() []Op {
	var out []Op
	for _, op := range r.Ops {
		if op.Clear {
			out = out[:0]
			continue
		}
		out = append(out, op)
	}
	return out
}

// Reset drops every recorded operation.
func (r *Recorder) Reset() { r.Ops = nil }
