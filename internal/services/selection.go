package services

import "sync"

// Rect is an axis-aligned rectangle in gallery viewport coordinates.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W &&
		r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// ItemBounds is a rendered gallery item's bounding box.
type ItemBounds struct {
	ID     string `json:"id"`
	Bounds Rect   `json:"bounds"`
}

// Selection is the cross-tab set of selected gallery items. Rectangular
// drag-select toggles membership of every item the rectangle touches.
type Selection struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

func (s *Selection) Toggle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
	} else {
		s.ids[id] = struct{}{}
	}
}

// ToggleRect toggles every item whose bounds intersect the drag rectangle.
func (s *Selection) ToggleRect(items []ItemBounds, r Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if !r.Intersects(item.Bounds) {
			continue
		}
		if _, ok := s.ids[item.ID]; ok {
			delete(s.ids, item.ID)
		} else {
			s.ids[item.ID] = struct{}{}
		}
	}
}

func (s *Selection) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *Selection) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}

func (s *Selection) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[string]struct{})
}
