package models

// DefaultProductTitle replaces a blank title on create.
const DefaultProductTitle = "Untitled"

type Product struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       string  `json:"price"`
	Stock       int     `json:"stock"`
	Image       *string `json:"image"`
	Owner       *string `json:"owner"`
}

// ProductUpdate carries the fields of a partial update. Nil means keep the
// stored value.
type ProductUpdate struct {
	Title       *string
	Description *string
	Price       *string
	Stock       *int
	Image       *string
}

// Apply returns a copy of p with the non-nil fields of u replacing its own.
func (u ProductUpdate) Apply(p Product) Product {
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.Image != nil {
		img := *u.Image
		p.Image = &img
	}
	return p
}
