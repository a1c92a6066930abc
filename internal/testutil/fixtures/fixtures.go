package fixtures

import "github.com/Veraticus/catalog-mapper/internal/model"

// Fasteners is the smallest useful tree: root → category (10) → "Гайка" (1).
func Fasteners() model.CategoryNode {
	return NewTree().
		Category("Крепёж", 10).
		Leaf("Гайка", 1).
		End().
		Build()
}

// AutoParts is a small multi-level tree resembling the marketplace layout.
func AutoParts() model.CategoryNode {
	return NewTree().
		Category("Автотовары", 100).
		Category("Тормозная система", 110).
		Leaf("Диск тормозной", 1001).
		Leaf("Колодки тормозные", 1002).
		End().
		Category("Подвеска", 120).
		Leaf("Пыльник шруса", 1101).
		Leaf("Сайлентблок", 1102).
		LeafWithCategory("Защита картера", 1103, 130).
		End().
		Group("Крепёж").
		Leaf("Гайка колесная", 1201).
		Leaf("Болт колесный", 1202).
		End().
		End().
		Build()
}

// Offer returns a complete, valid offer with the given id and name.
func Offer(id, name string) model.Offer {
	return model.Offer{
		ID:         id,
		Name:       name,
		Vendor:     "Sangsin",
		VendorCode: "SD" + id,
		Price:      "3741",
		Count:      "4",
		Picture:    "https://example.com/" + id + ".jpg",
		Dimensions: "40/30/10",
		Weight:     "1.25",
		CategoryID: "55",
	}
}
