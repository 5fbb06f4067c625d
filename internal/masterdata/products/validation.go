package products

import (
	"errors"
	"strings"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.Code) == "" {
		return errors.New("product code is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("product name is required")
	}
	if !p.Kind.Valid() {
		return errors.New("product kind is invalid")
	}
	if p.MinStock.IsNegative() || p.MaxStock.IsNegative() || p.SafetyStock.IsNegative() {
		return errors.New("stock thresholds must not be negative")
	}
	if p.LeadTimeDays < 0 {
		return errors.New("lead time must not be negative")
	}
	return nil
}
