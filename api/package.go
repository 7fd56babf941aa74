package api

// RulesPackage is an assembled package: the package declaration plus every
// valid entry grouped by collection.
type RulesPackage struct {
	ID          string       `json:"id"`
	Title       string       `json:"title,omitempty"`
	PackageType string       `json:"type,omitempty"`
	Ruleset     string       `json:"ruleset,omitempty"`
	Priority    int          `json:"priority"`
	Collections []Collection `json:"collections"`
}

// Collection is one labelled folder of a package.
type Collection struct {
	// Path is relative to the package root.
	Path    string         `json:"path"`
	Type    CollectionType `json:"type"`
	Entries []EntryRef     `json:"entries"`
}

// EntryRef identifies an entry inside a collection.
type EntryRef struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Type ContentType `json:"type"`
	Path string      `json:"path"`
}

// EntryCount returns the number of entries across all collections.
func (p *RulesPackage) EntryCount() int {
	n := 0
	for _, c := range p.Collections {
		n += len(c.Entries)
	}
	return n
}
