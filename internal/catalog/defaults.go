package catalog

import "github.com/Veraticus/spice-tagger/internal/model"

// FallbackTag is the catch-all tag used by the miscellaneous fallback policy.
const FallbackTag = "Miscellaneous"

var defaultTags = []model.Tag{
	{Name: "Food & Drinks", Keywords: []string{"food", "restaurant", "cafe", "coffee", "mcdonald", "kfc", "burger", "bubble", "tea"}},
	{Name: "Groceries", Keywords: []string{"supermarket", "grocer", "tesco", "giant", "lotus", "jaya grocer"}},
	{Name: "Transport", Keywords: []string{"parking", "toll", "grab", "bus", "train", "uber", "taxi"}},
	{Name: "Fuel", Keywords: []string{"petrol", "shell", "ron95", "ron97", "diesel", "petronas"}},
	{Name: "Shopping", Keywords: []string{"mall", "store", "shop", "uniqlo", "mr diy", "shopee", "lazada"}},
	{Name: "Telco", Keywords: []string{"digi", "maxis", "umobile", "celcom", "hotlink"}},
	{Name: "Utilities", Keywords: []string{"bill", "electric", "water", "tenaga", "tm", "internet"}},
	{Name: "Entertainment", Keywords: []string{"cinema", "movie", "game", "karaoke", "amusement"}},
	{Name: "Pharmacy", Keywords: []string{"watsons", "guardian", "pharmacy", "medicine", "clinic"}},
	{Name: "Healthcare", Keywords: []string{"hospital", "clinic", "dental", "medical"}},
	{Name: "Bills", Keywords: []string{"invoice", "bill payment", "subscription"}},
	{Name: "E-Wallet", Keywords: []string{"tng", "boost", "grabpay", "ewallet", "topup", "reload"}},
	{Name: FallbackTag},
}

// defaultHints are broader family words that earn a tag the feature bonus.
var defaultHints = map[string][]string{
	"Food & Drinks": {"food", "restaurant", "cafe", "coffee", "meal", "dining", "eat", "bistro"},
	"Transport":     {"grab", "uber", "taxi", "bus", "train", "lrt", "mrt", "transport", "commute"},
	"Shopping":      {"shop", "store", "mall", "buy", "purchase", "retail", "market"},
	"Bills":         {"bill", "invoice", "payment", "subscription", "utility", "tenaga", "tm"},
	"Groceries":     {"grocery", "supermarket", "market", "fresh", "produce", "vegetable"},
	"Entertainment": {"movie", "cinema", "game", "fun", "entertain", "leisure"},
	"Healthcare":    {"hospital", "clinic", "medical", "health", "doctor", "pharmacy"},
	"Fuel":          {"petrol", "gas", "fuel", "shell", "petronas", "caltex"},
}

// defaultBrands maps a known brand, seen as the first word of a payee, to its tag.
var defaultBrands = map[string]string{
	"starbucks": "Food & Drinks",
	"mcdonald":  "Food & Drinks",
	"kfc":       "Food & Drinks",
	"grab":      "Transport",
	"uber":      "Transport",
	"lazada":    "Shopping",
	"shopee":    "Shopping",
	"tesco":     "Groceries",
	"giant":     "Groceries",
	"guardian":  "Pharmacy",
	"watsons":   "Pharmacy",
	"shell":     "Fuel",
	"petronas":  "Fuel",
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(Definition{
		Tags:     defaultTags,
		Hints:    defaultHints,
		Brands:   defaultBrands,
		Fallback: FallbackTag,
	})
	if err != nil {
		panic("catalog: invalid built-in catalog: " + err.Error())
	}
	return c
}
