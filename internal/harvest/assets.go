package harvest

import (
	"sort"
	"sync"
)

// Stylesheet is a stylesheet a fragment needs on the page.
type Stylesheet struct {
	Href  string            `json:"href"`
	Media string            `json:"media,omitempty"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Stylesheets collects stylesheets keyed by href. A later record for the same
// href replaces the earlier one but keeps its position.
type Stylesheets struct {
	mu    sync.Mutex
	order []string
	byRef map[string]Stylesheet
}

// NewStylesheets creates an empty collector.
func NewStylesheets() *Stylesheets {
	return &Stylesheets{byRef: make(map[string]Stylesheet)}
}

// Record adds stylesheets. Entries without an href are ignored.
func (s *Stylesheets) Record(list ...Stylesheet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sheet := range list {
		if sheet.Href == "" {
			continue
		}
		if _, seen := s.byRef[sheet.Href]; !seen {
			s.order = append(s.order, sheet.Href)
		}
		s.byRef[sheet.Href] = sheet
	}
}

// CollectAll returns the stylesheets in first-seen order.
func (s *Stylesheets) CollectAll() []Stylesheet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Stylesheet, 0, len(s.order))
	for _, href := range s.order {
		out = append(out, s.byRef[href])
	}
	return out
}

// HydrationURLs collects the URLs of the module code the client needs to
// hydrate the rendered fragments.
type HydrationURLs struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewHydrationURLs creates an empty collector.
func NewHydrationURLs() *HydrationURLs {
	return &HydrationURLs{urls: make(map[string]struct{})}
}

// Record adds url to the set. Empty strings are ignored.
func (h *HydrationURLs) Record(url string) {
	if url == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.urls[url] = struct{}{}
}

// CollectAll returns the recorded URLs, sorted.
func (h *HydrationURLs) CollectAll() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.urls))
	for u := range h.urls {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
