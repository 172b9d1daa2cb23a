// Package catalog holds the static reference data shoppers draw from:
// product ids, ad categories and customer profiles.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/yashrajoria/E-Commerce-loadgen/models"
)

//go:embed people.json
var defaultPeople []byte

// Products are the storefront's product ids.
var Products = []string{
	"0PUK6V6EV0",
	"1YMWWN1N4O",
	"2ZYFJ3GM2N",
	"66VCHSJNUP",
	"6E92ZMYYFZ",
	"9SIQT8TOJO",
	"L9ECAV7KIM",
	"LS4PSXUNUM",
	"OLJCESPC7Z",
	"HQTGWGPNH4",
}

// NoCategory asks the ad service for untargeted ads.
const NoCategory = ""

// Categories are the ad context keys; NoCategory is one of them.
var Categories = []string{
	"binoculars",
	"telescopes",
	"accessories",
	"assembly",
	"travel",
	"books",
	NoCategory,
}

// Quantities are the cart quantities a shopper picks from.
var Quantities = []int{1, 2, 3, 4, 5, 10}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	Products   []string
	Categories []string
	People     []models.Person
}

// Load builds a catalog with customer profiles read from peopleFile, or the
// embedded profiles when peopleFile is empty.
func Load(peopleFile string) (*Catalog, error) {
	data := defaultPeople
	if peopleFile != "" {
		b, err := os.ReadFile(peopleFile)
		if err != nil {
			return nil, fmt.Errorf("catalog: read people file: %w", err)
		}
		data = b
	}

	people, err := ParsePeople(data)
	if err != nil {
		return nil, err
	}
	return &Catalog{
		Products:   Products,
		Categories: Categories,
		People:     people,
	}, nil
}

// ParsePeople decodes a JSON array of customer profiles.
func ParsePeople(data []byte) ([]models.Person, error) {
	var people []models.Person
	if err := json.Unmarshal(data, &people); err != nil {
		return nil, fmt.Errorf("catalog: decode people: %w", err)
	}
	if len(people) == 0 {
		return nil, fmt.Errorf("catalog: no customer profiles")
	}
	return people, nil
}

func (c *Catalog) RandomProduct(r *rand.Rand) string {
	return c.Products[r.IntN(len(c.Products))]
}

// RandomCategory may return NoCategory.
func (c *Catalog) RandomCategory(r *rand.Rand) string {
	return c.Categories[r.IntN(len(c.Categories))]
}

// RandomPerson returns a copy; callers may set its UserID freely.
func (c *Catalog) RandomPerson(r *rand.Rand) models.Person {
	return c.People[r.IntN(len(c.People))]
}

func RandomQuantity(r *rand.Rand) int {
	return Quantities[r.IntN(len(Quantities))]
}
