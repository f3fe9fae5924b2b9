package enums

import "fmt"

// StockMovementType classifies an inventory mutation.
type StockMovementType string

const (
	StockMovementIn         StockMovementType = "IN"
	StockMovementOut        StockMovementType = "OUT"
	StockMovementAdjustment StockMovementType = "ADJUSTMENT"
)

var validStockMovementTypes = []StockMovementType{
	StockMovementIn,
	StockMovementOut,
	StockMovementAdjustment,
}

// String implements fmt.Stringer.
func (t StockMovementType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known StockMovementType.
func (t StockMovementType) IsValid() bool {
	for _, candidate := range validStockMovementTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseStockMovementType converts raw input into a StockMovementType.
func ParseStockMovementType(value string) (StockMovementType, error) {
	for _, candidate := range validStockMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock movement type %q", value)
}

// StockReferenceType names the business event behind a movement.
type StockReferenceType string

const (
	StockReferenceSale       StockReferenceType = "SALE"
	StockReferenceReturn     StockReferenceType = "RETURN"
	StockReferenceAdjustment StockReferenceType = "ADJUSTMENT"
)

// IsValid reports whether the value is a known StockReferenceType.
func (r StockReferenceType) IsValid() bool {
	switch r {
	case StockReferenceSale, StockReferenceReturn, StockReferenceAdjustment:
		return true
	}
	return false
}

// StockDirection is the sign of a movement; quantities are always stored positive.
type StockDirection string

const (
	StockDirectionIncrease StockDirection = "INCREASE"
	StockDirectionDecrease StockDirection = "DECREASE"
)

// Sign returns +1 or -1.
func (d StockDirection) Sign() int {
	if d == StockDirectionDecrease {
		return -1
	}
	return 1
}
