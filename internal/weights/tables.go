package weights

// Static category lookup tables. Unrecognized keys fall back to the
// package default constants rather than failing: the category vocabulary
// is open-world and grows through the CRUD boundary without code changes.

// DefaultCategoryWeight is used when a role, occupation, or workplace
// type is not found in its lookup table.
const DefaultCategoryWeight = 0.1

// RoleWeight maps faction roles to their activity contribution.
var RoleWeight = map[string]float64{
	"leader":    1.0,
	"elder":     0.85,
	"officer":   0.7,
	"treasurer": 0.65,
	"member":    0.4,
	"recruit":   0.2,
}

// RoleInitiative maps faction roles to their initiative contribution.
var RoleInitiative = map[string]float64{
	"leader":    0.5,
	"elder":     0.35,
	"officer":   0.3,
	"treasurer": 0.25,
	"member":    0.1,
	"recruit":   0.05,
}

// RolePressure maps faction roles to the social pressure a member is
// under to stay loyal.
var RolePressure = map[string]float64{
	"leader":    0.9,
	"elder":     0.7,
	"officer":   0.6,
	"treasurer": 0.6,
	"member":    0.3,
	"recruit":   0.2,
}

// RoleBenefit maps faction roles to the benefit a member draws.
var RoleBenefit = map[string]float64{
	"leader":    0.9,
	"elder":     0.7,
	"officer":   0.6,
	"treasurer": 0.7,
	"member":    0.4,
	"recruit":   0.2,
}

// OccupationWeight maps occupations to their involvement contribution.
var OccupationWeight = map[string]float64{
	"mayor":      1.0,
	"priest":     0.8,
	"merchant":   0.7,
	"blacksmith": 0.6,
	"innkeeper":  0.6,
	"healer":     0.6,
	"guard":      0.5,
	"farmer":     0.3,
	"laborer":    0.2,
}

// WorkplaceWeight maps workplace types to their involvement contribution.
var WorkplaceWeight = map[string]float64{
	"town_hall": 0.9,
	"temple":    0.7,
	"market":    0.7,
	"tavern":    0.6,
	"forge":     0.5,
	"farm":      0.3,
}

// WorkplaceBenefit maps workplace types to the benefit flowing to a
// worker.
var WorkplaceBenefit = map[string]float64{
	"town_hall": 0.8,
	"temple":    0.5,
	"market":    0.7,
	"tavern":    0.5,
	"forge":     0.5,
	"farm":      0.3,
}

// FactionPower maps faction names to their standing in the village.
var FactionPower = map[string]float64{
	"Town Council":    0.9,
	"Merchant Guild":  0.7,
	"Temple of Dawn":  0.6,
	"River Wardens":   0.5,
	"Hunters' Lodge":  0.4,
	"Thieves' Circle": 0.3,
}

// speciesAffinity maps (species, faction name) pairs to an alignment
// bonus in [0, 1]. Pairs not listed fall back to SpeciesAlignmentNeutral.
var speciesAffinity = map[string]map[string]float64{
	"human": {
		"Town Council":   0.9,
		"Merchant Guild": 0.7,
	},
	"elf": {
		"Temple of Dawn": 0.8,
		"River Wardens":  0.7,
	},
	"dwarf": {
		"Merchant Guild": 0.8,
		"Hunters' Lodge": 0.6,
	},
	"halfling": {
		"Merchant Guild": 0.6,
		"Town Council":   0.5,
	},
}

// SpeciesAlignmentNeutral is the fallback affinity for species/faction
// pairs with no recorded history.
const SpeciesAlignmentNeutral = 0.5

// Lookup returns table[key], or fallback when the key is absent.
func Lookup(table map[string]float64, key string, fallback float64) float64 {
	if v, ok := table[key]; ok {
		return v
	}
	return fallback
}

// SpeciesAlignment returns the affinity between a species and a faction,
// falling back to SpeciesAlignmentNeutral for unknown pairs.
func SpeciesAlignment(species, factionName string) float64 {
	if byFaction, ok := speciesAffinity[species]; ok {
		if v, ok := byFaction[factionName]; ok {
			return v
		}
	}
	return SpeciesAlignmentNeutral
}
