// Package economy defines the core data model of the cookie economy.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package economy

// Kind identifies one of the fixed purchasable production sources.
type Kind string

const (
	KindCursor  Kind = "cursor"
	KindGrandma Kind = "grandma"
	KindFarm    Kind = "farm"
	KindMine    Kind = "mine"
	KindFactory Kind = "factory"
	KindBank    Kind = "bank"
	KindTemple  Kind = "temple"
	KindWizard  Kind = "wizard"
)

// Kinds lists every upgrade kind in shop order.
var Kinds = []Kind{
	KindCursor,
	KindGrandma,
	KindFarm,
	KindMine,
	KindFactory,
	KindBank,
	KindTemple,
	KindWizard,
}

// Upgrade holds the immutable constants of an upgrade kind.
type Upgrade struct {
	Kind        Kind    `json:"kind"`
	BaseCost    float64 `json:"base_cost"`
	BaseCps     float64 `json:"base_cps"` // per level per second
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
}

var catalog = map[Kind]Upgrade{
	KindCursor:  {Kind: KindCursor, BaseCost: 10, BaseCps: 0.1, Name: "Cursor", Description: "Automatically clicks once every 10 seconds", Icon: "mouse-pointer"},
	KindGrandma: {Kind: KindGrandma, BaseCost: 100, BaseCps: 1, Name: "Grandma", Description: "A nice grandma to bake cookies for you", Icon: "user-friends"},
	KindFarm:    {Kind: KindFarm, BaseCost: 1100, BaseCps: 8, Name: "Cookie Farm", Description: "Grows cookie plants from cookie seeds", Icon: "seedling"},
	KindMine:    {Kind: KindMine, BaseCost: 12000, BaseCps: 47, Name: "Cookie Mine", Description: "Mines out cookie ores from the ground", Icon: "mountain"},
	KindFactory: {Kind: KindFactory, BaseCost: 130000, BaseCps: 260, Name: "Cookie Factory", Description: "Produces large quantities of cookies", Icon: "industry"},
	KindBank:    {Kind: KindBank, BaseCost: 1400000, BaseCps: 1400, Name: "Bank", Description: "Generates cookies from interest", Icon: "building-columns"},
	KindTemple:  {Kind: KindTemple, BaseCost: 20000000, BaseCps: 7800, Name: "Temple", Description: "Worship the great cookie god", Icon: "place-of-worship"},
	KindWizard:  {Kind: KindWizard, BaseCost: 330000000, BaseCps: 44000, Name: "Wizard Tower", Description: "Summons cookies with magic", Icon: "hat-wizard"},
}

// Valid reports whether k is one of the fixed kinds.
func (k Kind) Valid() bool {
	_, ok := catalog[k]
	return ok
}

// Lookup returns the catalog entry for k.
func Lookup(k Kind) (Upgrade, bool) {
	u, ok := catalog[k]
	return u, ok
}

// ParseKind converts a wire string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", &InvalidKindError{Kind: s}
	}
	return k, nil
}
