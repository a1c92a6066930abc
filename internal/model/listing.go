package model

// AttributeValue is a single attribute value.
type AttributeValue struct {
	Value string `json:"value"`
}

// Attribute is a marketplace listing attribute.
type Attribute struct {
	Values    []AttributeValue `json:"values"`
	ID        int64            `json:"id"`
	ComplexID int64            `json:"complex_id"`
}

// ListingPayload is one item of a bulk import request. Build it with the
// payload package; it is never modified afterwards.
type ListingPayload struct {
	Attributes            []Attribute `json:"attributes"`
	Images                []string    `json:"images"`
	CurrencyCode          string      `json:"currency_code"`
	Name                  string      `json:"name"`
	OfferID               string      `json:"offer_id"`
	Price                 string      `json:"price"`
	WeightUnit            string      `json:"weight_unit"`
	DimensionUnit         string      `json:"dimension_unit"`
	Barcode               string      `json:"barcode"`
	DescriptionCategoryID int64       `json:"description_category_id"`
	TypeID                int64       `json:"type_id"`
	Weight                int64       `json:"weight"`
	Height                int         `json:"height"`
	Width                 int         `json:"width"`
	Length                int         `json:"length"`
	Depth                 int         `json:"depth"`
}
