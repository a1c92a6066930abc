// Package payload turns resolved offers into marketplace listing payloads.
package payload

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Veraticus/catalog-mapper/internal/model"
)

// Payload errors. Any of them rejects the whole offer.
var (
	ErrMissingField      = errors.New("offer is missing required fields")
	ErrInvalidDimensions = errors.New("invalid dimensions")
	ErrInvalidWeight     = errors.New("invalid weight")
	ErrInvalidCategory   = errors.New("invalid category ids")
)

// Config holds the marketplace attribute ids and units.
type Config struct {
	Currency              string
	WeightUnit            string
	DimensionUnit         string
	ArticleMarker         string
	NameAttributeID       int64
	BrandAttributeID      int64
	VendorCodeAttributeID int64
	QuantityAttributeID   int64
	MaxNameLength         int
}

// DefaultConfig returns the settings the marketplace expects for
// general-merchandise listings.
func DefaultConfig() Config {
	return Config{
		NameAttributeID:       9048,
		BrandAttributeID:      85,
		VendorCodeAttributeID: 7236,
		QuantityAttributeID:   7202,
		Currency:              "RUB",
		WeightUnit:            "g",
		DimensionUnit:         "cm",
		ArticleMarker:         "арт.",
		MaxNameLength:         80,
	}
}

// Measurements are the parsed physical properties of an offer.
type Measurements struct {
	Length      int
	Width       int
	Height      int
	Depth       int
	WeightGrams int64
}

// Builder assembles listing payloads.
type Builder struct {
	cfg Config
}

// NewBuilder creates a builder. Zero-valued fields fall back to DefaultConfig.
func NewBuilder(cfg Config) *Builder {
	def := DefaultConfig()
	if cfg.NameAttributeID == 0 {
		cfg.NameAttributeID = def.NameAttributeID
	}
	if cfg.BrandAttributeID == 0 {
		cfg.BrandAttributeID = def.BrandAttributeID
	}
	if cfg.VendorCodeAttributeID == 0 {
		cfg.VendorCodeAttributeID = def.VendorCodeAttributeID
	}
	if cfg.QuantityAttributeID == 0 {
		cfg.QuantityAttributeID = def.QuantityAttributeID
	}
	if cfg.Currency == "" {
		cfg.Currency = def.Currency
	}
	if cfg.WeightUnit == "" {
		cfg.WeightUnit = def.WeightUnit
	}
	if cfg.DimensionUnit == "" {
		cfg.DimensionUnit = def.DimensionUnit
	}
	if cfg.ArticleMarker == "" {
		cfg.ArticleMarker = def.ArticleMarker
	}
	if cfg.MaxNameLength <= 0 {
		cfg.MaxNameLength = def.MaxNameLength
	}
	return &Builder{cfg: cfg}
}

// Validate checks that every required offer field is present.
func Validate(offer model.Offer) error {
	if missing := offer.MissingFields(); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}

// ParseMeasurements parses the "L/W/H" dimensions string and the weight in
// kilograms. Depth is the height.
func ParseMeasurements(offer model.Offer) (Measurements, error) {
	parts := strings.Split(offer.Dimensions, "/")
	if len(parts) != 3 {
		return Measurements{}, fmt.Errorf("%w: %q has %d parts, want 3", ErrInvalidDimensions, offer.Dimensions, len(parts))
	}

	dims := make([]int, 3)
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v < 0 {
			return Measurements{}, fmt.Errorf("%w: %q is not a non-negative integer", ErrInvalidDimensions, part)
		}
		dims[i] = v
	}

	kg, err := strconv.ParseFloat(strings.TrimSpace(offer.Weight), 64)
	if err != nil || kg < 0 || math.IsInf(kg, 0) || math.IsNaN(kg) {
		return Measurements{}, fmt.Errorf("%w: %q", ErrInvalidWeight, offer.Weight)
	}

	return Measurements{
		Length:      dims[0],
		Width:       dims[1],
		Height:      dims[2],
		Depth:       dims[2],
		WeightGrams: int64(math.Round(kg * 1000)),
	}, nil
}

// Build produces the listing payload for an offer resolved to typeID and
// descriptionCategoryID.
func (b *Builder) Build(offer model.Offer, typeID, descriptionCategoryID int64) (model.ListingPayload, error) {
	if typeID <= 0 || descriptionCategoryID <= 0 {
		return model.ListingPayload{}, fmt.Errorf("%w: type_id=%d description_category_id=%d",
			ErrInvalidCategory, typeID, descriptionCategoryID)
	}
	if err := Validate(offer); err != nil {
		return model.ListingPayload{}, err
	}

	m, err := ParseMeasurements(offer)
	if err != nil {
		return model.ListingPayload{}, err
	}

	name := b.NormalizeName(offer.Name)

	images := []string{}
	if offer.Picture != "" {
		images = append(images, offer.Picture)
	}

	return model.ListingPayload{
		Attributes: []model.Attribute{
			attribute(b.cfg.NameAttributeID, name),
			attribute(b.cfg.BrandAttributeID, offer.Vendor),
			attribute(b.cfg.VendorCodeAttributeID, offer.VendorCode),
			attribute(b.cfg.QuantityAttributeID, offer.Count),
		},
		DescriptionCategoryID: descriptionCategoryID,
		TypeID:                typeID,
		CurrencyCode:          b.cfg.Currency,
		Name:                  name,
		OfferID:               offer.Vendor + "_" + offer.VendorCode,
		Price:                 offer.Price,
		Weight:                m.WeightGrams,
		WeightUnit:            b.cfg.WeightUnit,
		DimensionUnit:         b.cfg.DimensionUnit,
		Height:                m.Height,
		Width:                 m.Width,
		Length:                m.Length,
		Depth:                 m.Depth,
		Images:                images,
		Barcode:               offer.VendorCode,
	}, nil
}

// NormalizeName shortens a product name for the listing title: drop
// everything from the article marker on, then prefer cutting at the last
// "/" before the limit, then hard-truncate. Lengths are counted in runes.
func (b *Builder) NormalizeName(name string) string {
	if i := strings.Index(name, b.cfg.ArticleMarker); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}

	limit := b.cfg.MaxNameLength
	runes := []rune(name)
	if len(runes) <= limit {
		return name
	}

	if cut := lastSlashBefore(runes, limit); cut >= 0 {
		runes = []rune(strings.TrimSpace(string(runes[:cut])))
	}
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return string(runes)
}

func lastSlashBefore(runes []rune, limit int) int {
	for i := min(limit, len(runes)) - 1; i >= 0; i-- {
		if runes[i] == '/' {
			return i
		}
	}
	return -1
}

func attribute(id int64, value string) model.Attribute {
	return model.Attribute{
		ID:        id,
		ComplexID: 0,
		Values:    []model.AttributeValue{{Value: value}},
	}
}
