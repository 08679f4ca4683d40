package suppliers

import (
	"fmt"
	"strings"
)

// rucPrefixes are the SUNAT taxpayer type prefixes accepted for suppliers:
// 10 natural person, 15/17 legacy natural person series, 20 legal entity.
var rucPrefixes = map[string]bool{"10": true, "15": true, "17": true, "20": true}

// ValidateRUC checks the Peruvian tax ID shape: exactly 11 digits with a
// known taxpayer type prefix.
func ValidateRUC(ruc string) error {
	if len(ruc) != 11 {
		return fmt.Errorf("%w: RUC must be 11 digits", ErrInvalidInput)
	}
	for _, r := range ruc {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: RUC must be numeric", ErrInvalidInput)
		}
	}
	if !rucPrefixes[ruc[:2]] {
		return fmt.Errorf("%w: RUC prefix %q not recognised", ErrInvalidInput, ruc[:2])
	}
	return nil
}

func (s *Service) validate(sup Supplier) error {
	if strings.TrimSpace(sup.Name) == "" {
		return fmt.Errorf("%w: supplier name is required", ErrInvalidInput)
	}
	return ValidateRUC(sup.TaxID)
}
