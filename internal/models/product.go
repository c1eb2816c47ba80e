package models

import "strings"

// Category groups products in the catalog.
type Category struct {
	GUID string `json:"guid" yaml:"guid"`
	Name string `json:"name" yaml:"name"`
	Slug string `json:"slug,omitempty" yaml:"slug,omitempty"`
}

// Key is the filter key used by the catalog menu: slug when present, else lower-cased name.
func (c Category) Key() string {
	if c.Slug != "" {
		return c.Slug
	}
	return strings.ToLower(c.Name)
}

// Product is a catalog entry purchasable with bonus points.
type Product struct {
	GUID        string    `json:"guid" yaml:"guid"`
	Name        string    `json:"name" yaml:"name"`
	Stock       string    `json:"stock,omitempty" yaml:"stock,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	Price       float64   `json:"price" yaml:"price"`
	IsAvailable bool      `json:"is_available" yaml:"is_available"`
	Category    *Category `json:"category,omitempty" yaml:"category,omitempty"`
}

// CategoryKey returns the key of the product's category or "".
func (p Product) CategoryKey() string {
	if p.Category == nil {
		return ""
	}
	return p.Category.Key()
}

// CartItem is a product line in the cart.
type CartItem struct {
	GUID     string    `json:"guid"`
	Name     string    `json:"name"`
	Price    float64   `json:"price"`
	ImageURL string    `json:"image_url,omitempty"`
	Category *Category `json:"category,omitempty"`
	Quantity int       `json:"quantity"`
}

// Subtotal is price times quantity.
func (i CartItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}
