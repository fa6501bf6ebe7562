package billing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/markit/markit-server/pkg/db/models"
	pkgerrors "github.com/markit/markit-server/pkg/errors"
)

type settledLine struct {
	line models.TrynbuyCartItem
	kept bool
}

// matchPartition pairs every payload line with a distinct cart line and
// requires the two partitions to cover the order exactly once.
func matchPartition(lines []models.TrynbuyCartItem, kept, returned []LineInput) ([]settledLine, error) {
	claimed := make([]bool, len(lines))
	out := make([]settledLine, 0, len(lines))

	claim := func(in LineInput, isKept bool) error {
		known := false
		for i, line := range lines {
			if line.ItemID != in.ItemID || (in.VariantID != uuid.Nil && line.VariantID != in.VariantID) {
				continue
			}
			known = true
			if claimed[i] {
				continue
			}
			if in.Quantity != nil && *in.Quantity != line.Quantity {
				return partitionError(fmt.Sprintf("quantity for item %s does not match the reserved quantity %d", in.ItemID, line.Quantity), in)
			}
			claimed[i] = true
			out = append(out, settledLine{line: line, kept: isKept})
			return nil
		}
		if known {
			return partitionError(fmt.Sprintf("item %s is listed more than once", in.ItemID), in)
		}
		return partitionError(fmt.Sprintf("item %s is not part of this order", in.ItemID), in)
	}

	for _, in := range kept {
		if err := claim(in, true); err != nil {
			return nil, err
		}
	}
	for _, in := range returned {
		if err := claim(in, false); err != nil {
			return nil, err
		}
	}
	for i, line := range lines {
		if !claimed[i] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "every cart item must be either kept or returned").
				WithDetails(map[string]any{"itemId": line.ItemID.String(), "variantId": line.VariantID.String()})
		}
	}
	return out, nil
}

func partitionError(msg string, in LineInput) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).
		WithDetails(map[string]any{"itemId": in.ItemID.String(), "variantId": in.VariantID.String()})
}
