package donation

import (
	"github.com/erazemk/podari/internal/apperr"
	"github.com/erazemk/podari/internal/model"
)

// Field messages, checked in this order.
const (
	msgNameRequired        = "name is required"
	msgDescriptionRequired = "description is required"
	msgStateRequired       = "state is required"
	msgPurchasedAtRequired = "purchase date is required"
	msgImagesRequired      = "at least one image is required"
	msgImagesMissing       = "images are required"
	msgInvalidID           = "invalid product id"
	msgInvalidPage         = "page and limit must be positive"
)

// validateCreate reports the first missing field of a new product.
func validateCreate(in model.ProductInput) error {
	if err := validateFields(in); err != nil {
		return err
	}
	if len(in.Images) == 0 {
		return apperr.New(apperr.CodeUnprocessable, msgImagesRequired)
	}
	return nil
}

// validateReplace reports the first missing field of a full-replace update.
// The image list must be present but may be empty.
func validateReplace(in model.ProductInput) error {
	if err := validateFields(in); err != nil {
		return err
	}
	if in.Images == nil {
		return apperr.New(apperr.CodeUnprocessable, msgImagesMissing)
	}
	return nil
}

func validateFields(in model.ProductInput) error {
	switch {
	case in.Name == "":
		return apperr.New(apperr.CodeUnprocessable, msgNameRequired)
	case in.Description == "":
		return apperr.New(apperr.CodeUnprocessable, msgDescriptionRequired)
	case in.State == "":
		return apperr.New(apperr.CodeUnprocessable, msgStateRequired)
	case in.PurchasedAt.IsZero():
		return apperr.New(apperr.CodeUnprocessable, msgPurchasedAtRequired)
	}
	return nil
}

// parseID validates a product ID before any storage access.
func parseID(id string) (string, error) {
	canonical, ok := model.ParseID(id)
	if !ok {
		return "", apperr.New(apperr.CodeInvalidInput, msgInvalidID)
	}
	return canonical, nil
}
