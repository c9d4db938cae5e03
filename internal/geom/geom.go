package geom

import "sync"

// Point is a pixel coordinate on the desktop.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Screen reports the desktop area agents may occupy.
type Screen interface {
	UsableArea() Size
}

// SharedScreen is a Screen whose size can be replaced while agents are running,
// e.g. when a renderer reports the real desktop geometry.
type SharedScreen struct {
	size Size
	mu   sync.RWMutex
}

// NewSharedScreen creates a screen with the given initial size.
func NewSharedScreen(size Size) *SharedScreen {
	return &SharedScreen{size: size}
}

// UsableArea implements Screen.
func (s *SharedScreen) UsableArea() Size {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Resize replaces the usable area. Non-positive dimensions are ignored.
func (s *SharedScreen) Resize(size Size) {
	if size.Width <= 0 || size.Height <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = size
}
