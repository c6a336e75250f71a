package common

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField        = fmt.Errorf("missing required field")
	ErrUnsupportedType     = fmt.Errorf("unsupported file type")
	ErrFileTooLarge        = fmt.Errorf("file too large")
	ErrInvalidFilename     = fmt.Errorf("invalid filename")
	ErrUnsupportedFormat   = fmt.Errorf("unsupported thumbnail format")
	ErrConversion          = fmt.Errorf("document conversion failed")
	ErrCatalogUnreadable   = fmt.Errorf("catalog unreadable")
	ErrCatalogWrite        = fmt.Errorf("catalog write error")
	ErrSemesterNotFound    = fmt.Errorf("semester not found")
	ErrBranchNotFound      = fmt.Errorf("branch not found")
	ErrSubjectNotFound     = fmt.Errorf("subject not found")
	ErrMaterialNotFound    = fmt.Errorf("material not found")
	ErrPathViolation       = fmt.Errorf("path safety violation")
	ErrEmptyPath           = fmt.Errorf("path is required")
	ErrTraversal           = fmt.Errorf("path traversal attempt")
	ErrContainment         = fmt.Errorf("path outside of storage root")
	ErrDisallowedExtension = fmt.Errorf("file extension is not allowed")
	ErrNotFound            = fmt.Errorf("file not found")
	ErrStorage             = fmt.Errorf("storage error")
	ErrSourceNotFound      = fmt.Errorf("source document not found")
	ErrRenderError         = fmt.Errorf("cannot render document")

	ErrMaintenanceAlreadyRunning = fmt.Errorf("maintenance process has already started")
)

type Category int

const (
	CategoryUnknown Category = iota
	CategoryValidation
	CategoryLookup
	CategorySecurity
	CategoryStorage
	CategoryRender
)

func (c Category) String() string {
	return [...]string{"unknown", "validation", "lookup", "security", "storage", "render"}[c]
}

var categories = []struct {
	category Category
	errs     []error
}{
	{CategoryValidation, []error{ErrMissingField, ErrUnsupportedType, ErrFileTooLarge, ErrInvalidFilename, ErrUnsupportedFormat, ErrEmptyPath, ErrConversion}},
	{CategoryLookup, []error{ErrSemesterNotFound, ErrBranchNotFound, ErrSubjectNotFound, ErrMaterialNotFound, ErrNotFound, ErrSourceNotFound}},
	{CategorySecurity, []error{ErrPathViolation, ErrTraversal, ErrContainment, ErrDisallowedExtension}},
	{CategoryStorage, []error{ErrCatalogUnreadable, ErrCatalogWrite, ErrStorage}},
	{CategoryRender, []error{ErrRenderError}},
}

// CategoryOf reports which class of failure err belongs to.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	for _, c := range categories {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.category
			}
		}
	}

	return CategoryUnknown
}
