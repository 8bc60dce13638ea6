package core

import (
	"context"
	"fmt"
)

// StockLevelRule blocks negative stock quantities and thresholds, and logs a
// warning when a product drops out of stock.
func StockLevelRule() Rule {
	return stockLevelRule{}
}

type stockLevelRule struct{}

func (stockLevelRule) Name() string { return "stock_level" }

func (stockLevelRule) Evaluate(_ context.Context, _ RuleView, changes []Change) (Result, error) {
	res := Result{}
	for _, change := range changes {
		if change.Entity != EntityProduct || change.Action == ActionDelete {
			continue
		}
		after, ok := decodeChange[Product](change.After)
		if !ok {
			continue
		}
		if after.StockQuantity < 0 {
			res.Violations = append(res.Violations, Violation{
				Rule:     "stock_level",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("product %s stock quantity cannot be negative", after.ID),
				Entity:   EntityProduct,
				EntityID: after.ID,
			})
			continue
		}
		if after.LowStockThreshold < 0 {
			res.Violations = append(res.Violations, Violation{
				Rule:     "stock_level",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("product %s low stock threshold cannot be negative", after.ID),
				Entity:   EntityProduct,
				EntityID: after.ID,
			})
			continue
		}
		before, hadBefore := decodeChange[Product](change.Before)
		if after.StockStatus == StockOutOfStock && (!hadBefore || before.StockStatus != StockOutOfStock) {
			res.Violations = append(res.Violations, Violation{
				Rule:     "stock_level",
				Severity: SeverityWarn,
				Message:  fmt.Sprintf("product %s is out of stock", after.ID),
				Entity:   EntityProduct,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}
