package domain

import "time"

// Product is a catalog row. Text columns are nullable in the store.
type Product struct {
	ID              int64      `json:"id"`
	Brand           *string    `json:"brand"`
	Name            *string    `json:"name"`
	ProductURL      *string    `json:"product_url"`
	FragranticaURL  *string    `json:"fragrantica_url"`
	Description     *string    `json:"description"`
	ImagePath       *string    `json:"image_path"`
	StyledImagePath *string    `json:"styled_image_path"`
	VideoPath       *string    `json:"video_path"`
	ParsedAt        *time.Time `json:"parsed_at"`
}

// Settings keys for user-editable prompt templates.
const (
	SettingPromptStylize = "prompt_stylize"
	SettingPromptCaption = "prompt_caption"
)

// DescriptionPlaceholder is substituted with the product description.
const DescriptionPlaceholder = "{DESCRIPTION}"

// PromptTemplates holds the stored templates; empty means "use the default".
type PromptTemplates struct {
	Stylize string `json:"stylize"`
	Caption string `json:"caption"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// BrandName returns the brand or an empty string.
func (p Product) BrandName() string { return deref(p.Brand) }

// ProductName returns the name or an empty string.
func (p Product) ProductName() string { return deref(p.Name) }

// DescriptionText returns the description or an empty string.
func (p Product) DescriptionText() string { return deref(p.Description) }

// MainImage returns the stored main image file name or an empty string.
func (p Product) MainImage() string { return deref(p.ImagePath) }
