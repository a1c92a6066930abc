package model

// Offer is one catalog entry as read from the feed. Values are kept as raw
// strings; the payload builder owns parsing.
type Offer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Vendor      string `json:"vendor"`
	VendorCode  string `json:"vendor_code"`
	Price       string `json:"price"`
	Count       string `json:"count"`
	Picture     string `json:"picture,omitempty"`
	Description string `json:"description,omitempty"`
	Dimensions  string `json:"dimensions"`
	Weight      string `json:"weight"`
	CategoryID  string `json:"category_id"`
}

// MissingFields lists the required fields that are empty, in a stable order.
func (o Offer) MissingFields() []string {
	required := []struct {
		name  string
		value string
	}{
		{"id", o.ID},
		{"price", o.Price},
		{"categoryId", o.CategoryID},
		{"name", o.Name},
		{"vendor", o.Vendor},
		{"vendorCode", o.VendorCode},
		{"count", o.Count},
		{"dimensions", o.Dimensions},
		{"weight", o.Weight},
	}

	var missing []string
	for _, field := range required {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}
