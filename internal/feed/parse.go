// Package feed reads YML product catalogs.
package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/Veraticus/catalog-mapper/internal/model"
)

// ErrNoShop is returned when the document has no <shop> element.
var ErrNoShop = errors.New("feed has no shop element")

// Catalog is a parsed feed. Categories map the feed's own category ids to
// names; they are informational only.
type Catalog struct {
	Categories map[string]string
	Date       string
	ShopName   string
	Offers     []model.Offer
}

type xmlOffer struct {
	ID          string `xml:"id,attr"`
	Name        string `xml:"name"`
	Price       string `xml:"price"`
	CategoryID  string `xml:"categoryId"`
	Picture     string `xml:"picture"`
	Vendor      string `xml:"vendor"`
	VendorCode  string `xml:"vendorCode"`
	Description string `xml:"description"`
	Count       string `xml:"count"`
	Dimensions  string `xml:"dimensions"`
	Weight      string `xml:"weight"`
}

func (o xmlOffer) toModel() model.Offer {
	return model.Offer{
		ID:          strings.TrimSpace(o.ID),
		Name:        strings.TrimSpace(o.Name),
		Price:       strings.TrimSpace(o.Price),
		CategoryID:  strings.TrimSpace(o.CategoryID),
		Picture:     strings.TrimSpace(o.Picture),
		Vendor:      strings.TrimSpace(o.Vendor),
		VendorCode:  strings.TrimSpace(o.VendorCode),
		Description: strings.TrimSpace(o.Description),
		Count:       strings.TrimSpace(o.Count),
		Dimensions:  strings.TrimSpace(o.Dimensions),
		Weight:      strings.TrimSpace(o.Weight),
	}
}

type xmlCategory struct {
	ID   string `xml:"id,attr"`
	Name string `xml:",chardata"`
}

// ParseFile parses the feed stored at path.
func ParseFile(path string) (*Catalog, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open feed: %w", err)
	}
	defer func() { _ = f.Close() }()

	catalog, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", path, err)
	}
	return catalog, nil
}

// Parse streams a YML document. Offers are decoded one element at a time so
// large feeds are never held as a token tree.
func Parse(r io.Reader) (*Catalog, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader
	dec.Entity = xml.HTMLEntity

	catalog := &Catalog{Categories: make(map[string]string)}
	var (
		path      []string
		sawShop   bool
		sawOffers bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed feed: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			parent := ""
			if len(path) > 0 {
				parent = path[len(path)-1]
			}

			switch {
			case t.Name.Local == "yml_catalog" && parent == "":
				catalog.Date = attr(t, "date")
			case t.Name.Local == "shop":
				sawShop = true
			case t.Name.Local == "offers" && parent == "shop":
				sawOffers = true
			case t.Name.Local == "name" && parent == "shop":
				var name string
				if err := dec.DecodeElement(&name, &t); err != nil {
					return nil, fmt.Errorf("malformed shop name: %w", err)
				}
				catalog.ShopName = strings.TrimSpace(name)
				continue
			case t.Name.Local == "category" && parent == "categories":
				var c xmlCategory
				if err := dec.DecodeElement(&c, &t); err != nil {
					return nil, fmt.Errorf("malformed category: %w", err)
				}
				if c.ID != "" && strings.TrimSpace(c.Name) != "" {
					catalog.Categories[c.ID] = strings.TrimSpace(c.Name)
				}
				continue
			case t.Name.Local == "offer" && parent == "offers":
				var o xmlOffer
				if err := dec.DecodeElement(&o, &t); err != nil {
					return nil, fmt.Errorf("malformed offer after %d offers: %w", len(catalog.Offers), err)
				}
				catalog.Offers = append(catalog.Offers, o.toModel())
				continue
			}
			path = append(path, t.Name.Local)

		case xml.EndElement:
			if len(path) > 0 {
				path = path[:len(path)-1]
			}
		}
	}

	if !sawShop {
		return nil, ErrNoShop
	}
	if !sawOffers {
		slog.Warn("Feed has no offers element")
	}

	slog.Debug("Parsed feed",
		"shop", catalog.ShopName,
		"offers", len(catalog.Offers),
		"categories", len(catalog.Categories))
	return catalog, nil
}

func attr(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// charsetReader decodes the legacy encodings YML feeds are often served in,
// windows-1251 in particular.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported feed encoding %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported feed encoding %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}
