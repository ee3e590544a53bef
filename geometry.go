package listkit

// Frame geometry is in viewport coordinates: a node's frame moves as the
// list scrolls, and Y grows downward along the scroll axis.

// Point is a position in viewport coordinates.
type Point struct {
	X, Y float64
}

// Size is a width/height pair.
type Size struct {
	Width, Height float64
}

// Rect is a frame in viewport coordinates.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// MaxY returns the bottom edge of the rect.
func (r Rect) MaxY() float64 {
	return r.Y + r.Height
}

// MaxX returns the right edge of the rect.
func (r Rect) MaxX() float64 {
	return r.X + r.Width
}

// Offset returns the rect shifted by dy along the scroll axis.
func (r Rect) Offset(dy float64) Rect {
	r.Y += dy
	return r
}

// Insets are edge distances reserved around content.
type Insets struct {
	Top, Bottom, Left, Right float64
}

// Range is an inclusive index range. It is empty when First > Last.
type Range struct {
	First, Last int
}

// EmptyRange is the canonical empty range.
var EmptyRange = Range{First: 0, Last: -1}

// Empty reports whether the range contains no indices.
func (r Range) Empty() bool {
	return r.First > r.Last
}

// Count returns the number of indices in the range.
func (r Range) Count() int {
	if r.Empty() {
		return 0
	}
	return r.Last - r.First + 1
}

// Contains reports whether i falls inside the range.
func (r Range) Contains(i int) bool {
	return i >= r.First && i <= r.Last
}
