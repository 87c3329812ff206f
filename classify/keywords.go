package classify

import (
	"fmt"
	"strings"
)

// Keyword maps a lowercase substring to a section.
type Keyword struct {
	Key       string `json:"key" yaml:"key"`
	SectionID string `json:"section" yaml:"section"`
}

// defaultKeywords is scanned in order and the first contained key wins, so
// compound names come before the words they contain.
var defaultKeywords = []Keyword{
	// Compounds that would otherwise hit a broader entry.
	{"pan rallado", "sec_pantry"},
	{"tomate frito", "sec_pantry"},
	{"pasta de dientes", "sec_hygiene"},
	{"leche de coco", "sec_pantry"},
	{"papel higiénico", "sec_hygiene"},
	{"papel de cocina", "sec_cleaning"},
	{"pizza", "sec_frozen"},
	{"helado", "sec_frozen"},
	{"congelad", "sec_frozen"},
	{"atún en lata", "sec_pantry"},
	{"comida para", "sec_pets"},
	{"pienso", "sec_pets"},
	{"arena gato", "sec_pets"},

	// Dairy and eggs.
	{"leche", "sec_dairy"},
	{"yogur", "sec_dairy"},
	{"mantequilla", "sec_dairy"},
	{"nata", "sec_dairy"},
	{"kéfir", "sec_dairy"},
	{"huevo", "sec_dairy"},

	// Deli and cheese.
	{"queso", "sec_deli"},
	{"jamón", "sec_deli"},
	{"jamon", "sec_deli"},
	{"chorizo", "sec_deli"},
	{"salchichón", "sec_deli"},
	{"fuet", "sec_deli"},
	{"pavo", "sec_deli"},

	// Fruit and vegetables.
	{"manzana", "sec_fruit"},
	{"plátano", "sec_fruit"},
	{"platano", "sec_fruit"},
	{"naranja", "sec_fruit"},
	{"limón", "sec_fruit"},
	{"pera", "sec_fruit"},
	{"uva", "sec_fruit"},
	{"fresa", "sec_fruit"},
	{"aguacate", "sec_fruit"},
	{"tomate", "sec_fruit"},
	{"lechuga", "sec_fruit"},
	{"cebolla", "sec_fruit"},
	{"ajo", "sec_fruit"},
	{"patata", "sec_fruit"},
	{"zanahoria", "sec_fruit"},
	{"pimiento", "sec_fruit"},
	{"calabacín", "sec_fruit"},
	{"pepino", "sec_fruit"},
	{"espinaca", "sec_fruit"},
	{"fruta", "sec_fruit"},
	{"verdura", "sec_fruit"},

	// Bakery.
	{"barra", "sec_bakery"},
	{"baguette", "sec_bakery"},
	{"pan", "sec_bakery"},
	{"croissant", "sec_bakery"},
	{"magdalena", "sec_bakery"},

	// Meat.
	{"pollo", "sec_meat"},
	{"ternera", "sec_meat"},
	{"cerdo", "sec_meat"},
	{"lomo", "sec_meat"},
	{"carne", "sec_meat"},
	{"hamburguesa", "sec_meat"},
	{"salchicha", "sec_meat"},
	{"costilla", "sec_meat"},

	// Fish.
	{"salmón", "sec_fish"},
	{"merluza", "sec_fish"},
	{"bacalao", "sec_fish"},
	{"gamba", "sec_fish"},
	{"langostino", "sec_fish"},
	{"mejillón", "sec_fish"},
	{"pescado", "sec_fish"},
	{"atún", "sec_fish"},

	// Pantry.
	{"arroz", "sec_pantry"},
	{"pasta", "sec_pantry"},
	{"macarrón", "sec_pantry"},
	{"espagueti", "sec_pantry"},
	{"lenteja", "sec_pantry"},
	{"garbanzo", "sec_pantry"},
	{"aceite", "sec_pantry"},
	{"vinagre", "sec_pantry"},
	{"azúcar", "sec_pantry"},
	{"harina", "sec_pantry"},
	{"conserva", "sec_pantry"},
	{"especia", "sec_pantry"},

	// Breakfast and sweets.
	{"café", "sec_breakfast"},
	{"cafe", "sec_breakfast"},
	{"cacao", "sec_breakfast"},
	{"cereal", "sec_breakfast"},
	{"galleta", "sec_breakfast"},
	{"mermelada", "sec_breakfast"},
	{"chocolate", "sec_breakfast"},
	{"infusión", "sec_breakfast"},

	// Drinks.
	{"agua", "sec_drinks"},
	{"zumo", "sec_drinks"},
	{"refresco", "sec_drinks"},
	{"cerveza", "sec_drinks"},
	{"vino", "sec_drinks"},
	{"coca", "sec_drinks"},

	// Cleaning and home.
	{"detergente", "sec_cleaning"},
	{"suavizante", "sec_cleaning"},
	{"lejía", "sec_cleaning"},
	{"friegasuelos", "sec_cleaning"},
	{"lavavajillas", "sec_cleaning"},
	{"bolsas de basura", "sec_cleaning"},
	{"estropajo", "sec_cleaning"},

	// Hygiene.
	{"champú", "sec_hygiene"},
	{"gel", "sec_hygiene"},
	{"jabón", "sec_hygiene"},
	{"desodorante", "sec_hygiene"},
	{"dentífrico", "sec_hygiene"},
	{"compresa", "sec_hygiene"},
	{"pañal", "sec_hygiene"},

	// Pets.
	{"perro", "sec_pets"},
	{"gato", "sec_pets"},
}

// DefaultKeywords returns a copy of the built-in keyword table.
func DefaultKeywords() []Keyword {
	return append([]Keyword(nil), defaultKeywords...)
}

// validateKeywords lowercases keys and checks every section exists.
func validateKeywords(keywords []Keyword, catalog *Catalog) ([]Keyword, error) {
	out := make([]Keyword, 0, len(keywords))
	for i, k := range keywords {
		key := strings.ToLower(k.Key)
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: keyword %d is empty", ErrInvalidCatalog, i)
		}
		if !catalog.Has(k.SectionID) {
			return nil, fmt.Errorf("%w: keyword %q maps to unknown section %q", ErrInvalidCatalog, k.Key, k.SectionID)
		}
		out = append(out, Keyword{Key: key, SectionID: k.SectionID})
	}
	return out, nil
}
