// Package parser extracts expense records from free-form message text.
//
// All classification runs off explicitly ordered rule tables. The tables are
// plain slices, never maps, so the same input always hits the same rule no
// matter how the process was built or restarted.
package parser

// ProjectAlias maps a free-text fragment to a canonical project name.
type ProjectAlias struct {
	Alias   string
	Project string
}

// CategoryRule maps a keyword to a category name.
type CategoryRule struct {
	Keyword  string
	Category string
}

// Ruleset carries every lookup table the extractor needs. One Ruleset is
// shared by all ingestion channels so the web form, the Telegram bot and the
// WhatsApp webhook classify identically.
type Ruleset struct {
	// ProjectAliases is matched in order; longer aliases come first so
	// "wuse ii" wins over "wuse".
	ProjectAliases []ProjectAlias

	// CategoryRules is matched in order; first keyword found in the text wins.
	CategoryRules []CategoryRule

	// KnownVendors are matched (case-insensitive) before the positional
	// vendor fallback runs.
	KnownVendors []string

	// SkipWords are filler words the vendor fallback ignores on top of
	// numeric tokens, unit suffixes and the alias/keyword tables.
	SkipWords []string
}

// DefaultRuleset returns the canonical tables for the Abuja sites.
func DefaultRuleset() Ruleset {
	return Ruleset{
		ProjectAliases: []ProjectAlias{
			{"katampe hills estate", "Katampe Hills Estate"},
			{"asokoro residences", "Asokoro Residences"},
			{"asokoro boulevard", "Asokoro Residences"},
			{"maitama heights", "Maitama Heights"},
			{"wuse ii towers", "Wuse II Towers"},
			{"katampe hills", "Katampe Hills Estate"},
			{"jabi lakeside", "Jabi Lakeside"},
			{"garki site", "Garki Site"},
			{"wuse ii", "Wuse II Towers"},
			{"wuse 2", "Wuse II Towers"},
			{"katampe", "Katampe Hills Estate"},
			{"asokoro", "Asokoro Residences"},
			{"maitama", "Maitama Heights"},
			{"garki1", "Garki Site"},
			{"garki", "Garki Site"},
			{"jabi", "Jabi Lakeside"},
			{"wuse", "Wuse II Towers"},
		},
		CategoryRules: []CategoryRule{
			{"cement", "Cement"},
			{"block", "Blocks"},
			{"brick", "Blocks"},
			{"foundation", "Foundation"},
			{"footing", "Foundation"},
			{"excavation", "Foundation"},
			{"roofing", "Roofing"},
			{"roof", "Roofing"},
			{"aluminum", "Roofing"},
			{"zinc", "Roofing"},
			{"tile", "Tiles"},
			{"labour", "Labour"},
			{"labor", "Labour"},
			{"workers", "Labour"},
			{"salary", "Labour"},
			{"transport", "Transport"},
			{"delivery", "Transport"},
			{"plumbing", "Plumbing"},
			{"pipes", "Plumbing"},
			{"electrical", "Electrical"},
			{"wiring", "Electrical"},
			{"wood", "Wood"},
			{"sand", "Sand"},
			{"paint", "Paint"},
			{"pop", "POP"},
		},
		KnownVendors: []string{
			"Dangote",
			"BUA",
			"Julius Berger",
			"Sahad",
			"Excel",
			"PW",
		},
		SkipWords: []string{
			"paid", "for", "to", "at", "of", "the", "and",
			"naira", "ngn", "project", "site",
		},
	}
}
