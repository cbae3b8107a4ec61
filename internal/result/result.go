package result

// SearchResult is the unit record produced by every engine adapter. The URL is
// the canonical identity of a result: two results with the same URL are the
// same logical result regardless of which engines produced them.
type SearchResult struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Engines     []string `json:"engines"`
}

// New constructs a SearchResult attributed to the given engines.
func New(title, url, description string, engines ...string) SearchResult {
	return SearchResult{
		Title:       title,
		URL:         url,
		Description: description,
		Engines:     append([]string(nil), engines...),
	}
}

// AddEngine records another engine as a source of this result. Duplicate
// engine names are ignored, so Engines behaves as a set.
func (r *SearchResult) AddEngine(name string) {
	for _, e := range r.Engines {
		if e == name {
			return
		}
	}
	r.Engines = append(r.Engines, name)
}

// FromEngine reports whether the named engine contributed this result.
func (r *SearchResult) FromEngine(name string) bool {
	for _, e := range r.Engines {
		if e == name {
			return true
		}
	}
	return false
}
