package alert

import (
	"fmt"

	"github.com/example/shop-fulfillment/internal/model"
)

// DefaultLowStockThreshold is used when no threshold is configured.
const DefaultLowStockThreshold = 5

// Thresholds holds the alerting boundaries.
type Thresholds struct {
	// Low is the stock level at or below which a low-stock alert fires.
	Low int
}

// Evaluate turns a stock level into an alert record, or nil when no
// threshold was crossed. Pure: persistence is the service's job and the
// returned alert carries no id or timestamp yet.
func Evaluate(productID, productName string, newStock int, thresholds Thresholds) *model.StockAlert {
	low := thresholds.Low
	if low <= 0 {
		low = DefaultLowStockThreshold
	}

	switch {
	case newStock == 0:
		return &model.StockAlert{
			Type:         model.AlertOutOfStock,
			ProductID:    productID,
			ProductName:  productName,
			CurrentStock: 0,
			Priority:     model.PriorityHigh,
			Message:      fmt.Sprintf("%s is out of stock", productName),
		}
	case newStock <= low:
		return &model.StockAlert{
			Type:         model.AlertLowStock,
			ProductID:    productID,
			ProductName:  productName,
			CurrentStock: newStock,
			Threshold:    low,
			Priority:     model.PriorityMedium,
			Message:      fmt.Sprintf("%s is running low: %d left (threshold %d)", productName, newStock, low),
		}
	default:
		return nil
	}
}
