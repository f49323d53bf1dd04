// pkg/core/category.go
package core

// Category is one node of the pack's category menu in its owned, nested form.
// The tree keeps categories by ID; this shape is used to load and save packs.
type Category struct {
	ID            CategoryID `json:"id"`
	Name          string     `json:"name"`
	DisplayName   string     `json:"displayName"`
	IsSeparator   bool       `json:"isSeparator,omitempty"`
	DefaultToggle bool       `json:"defaultToggle"`
	Attributes    Attributes `json:"attributes,omitzero"`
	Children      []Category `json:"children,omitempty"`
}
