package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Catalog errors.
var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
)

// CascadeError reports a category deletion aborted part-way through the
// product cascade. The category itself is left intact; Remaining lists
// the ids of products still present.
type CascadeError struct {
	Category  string
	Remaining []string
	Err       error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("cascade delete of category %q aborted, %d products remain (%s): %v",
		e.Category, len(e.Remaining), strings.Join(e.Remaining, ", "), e.Err)
}

func (e *CascadeError) Unwrap() error {
	return e.Err
}
