package extract

import "strings"

// Denylist drops links whose lowercased href contains any of its entries
type Denylist []string

// NewDenylist lowercases and copies entries, skipping blanks
func NewDenylist(entries []string) Denylist {
	d := make(Denylist, 0, len(entries))
	for _, entry := range entries {
		if entry = strings.ToLower(strings.TrimSpace(entry)); entry != "" {
			d = append(d, entry)
		}
	}
	return d
}

// Blocks reports whether href matches an entry
func (d Denylist) Blocks(href string) bool {
	lower := strings.ToLower(href)
	for _, entry := range d {
		if strings.Contains(lower, entry) {
			return true
		}
	}
	return false
}
