package api

// ContentType is the primary type tag of a parsed entry.
type ContentType string

const (
	OracleRollable   ContentType = "oracle_rollable"
	OracleCollection ContentType = "oracle_collection"
	Move             ContentType = "move"
	Asset            ContentType = "asset"
	NPC              ContentType = "npc"
	AtlasEntry       ContentType = "atlas_entry"
	Truth            ContentType = "truth"
	Rarity           ContentType = "rarity"
	DelveSite        ContentType = "delve_site"
	DelveSiteTheme   ContentType = "delve_site_theme"
	DelveSiteDomain  ContentType = "delve_site_domain"
)

// ContentTypes lists every known entry type.
var ContentTypes = []ContentType{
	OracleRollable, OracleCollection, Move, Asset, NPC, AtlasEntry,
	Truth, Rarity, DelveSite, DelveSiteTheme, DelveSiteDomain,
}

// ParseContentType returns the tag for s, or false if it is not a known type.
func ParseContentType(s string) (ContentType, bool) {
	for _, t := range ContentTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// CollectionType tags what kind of homogeneous content a folder may aggregate.
type CollectionType string

const (
	RootCollection    CollectionType = "root"
	OracleCollections CollectionType = "oracle_collection"
	MoveCategory      CollectionType = "move_category"
	AssetCollection   CollectionType = "asset_collection"
	NPCCollection     CollectionType = "npc_collection"
	AtlasCollection   CollectionType = "atlas_collection"
	Truths            CollectionType = "truths"
	Rarities          CollectionType = "rarities"
	DelveSites        CollectionType = "delve_sites"
	SiteThemes        CollectionType = "site_themes"
	SiteDomains       CollectionType = "site_domains"
)

// CollectionTypes is the canonical ordering of collection types. Every
// ordered output (labels, diffs, CLI) follows it.
var CollectionTypes = []CollectionType{
	RootCollection,
	OracleCollections,
	MoveCategory,
	AssetCollection,
	NPCCollection,
	AtlasCollection,
	Truths,
	Rarities,
	DelveSites,
	SiteThemes,
	SiteDomains,
}

// Ordinal returns the canonical index of t, or -1 if unknown.
func (t CollectionType) Ordinal() int {
	for i, c := range CollectionTypes {
		if c == t {
			return i
		}
	}
	return -1
}

// ParseCollectionType returns the tag for s, or false if it is not known.
func ParseCollectionType(s string) (CollectionType, bool) {
	t := CollectionType(s)
	if t.Ordinal() < 0 {
		return "", false
	}
	return t, true
}
