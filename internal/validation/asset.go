package validation

import (
	"fmt"
	"strings"

	"github.com/ndewijer/investment-ledger/internal/api/request"
	"github.com/ndewijer/investment-ledger/internal/model"
)

func ValidateCreateAsset(req request.CreateAssetRequest) error {
	errors := make(map[string]string)

	if strings.TrimSpace(req.Class) == "" {
		errors["class"] = "class is required"
	} else if !model.AssetClasses[req.Class] {
		errors["class"] = fmt.Sprintf("invalid class: %s", req.Class)
	}

	if strings.TrimSpace(req.Code) == "" {
		errors["code"] = "code is required"
	} else if len(req.Code) > 32 {
		errors["code"] = "code must be 32 characters or less"
	}

	if strings.TrimSpace(req.Name) == "" {
		errors["name"] = "name is required"
	} else if len(req.Name) > 100 {
		errors["name"] = "name must be 100 characters or less"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
