package models

import (
	"slices"
	"time"

	"purchasegate/pkg/domain"
)

const (
	ActivityPurchased = "purchased"
	ActivityRefunded  = "refunded"
)

// LibraryStats summarizes what a child's library holds.
type LibraryStats struct {
	TotalItems int
	Active     int
	Refunded   int
	FamilyWide int
	Recent     []Activity
}

// Activity is one purchase or refund in a library, newest first in Recent.
type Activity struct {
	PackID     domain.PackID
	PurchaseID domain.PurchaseID
	Kind       string
	At         time.Time
}

// Summarize counts recs and keeps the latest recent purchases and refunds.
// FamilyWide counts active family-wide records only.
func Summarize(recs []*Record, recent int) LibraryStats {
	var stats LibraryStats
	activity := make([]Activity, 0, len(recs))
	for _, rec := range recs {
		stats.TotalItems++
		if rec.IsActive() {
			stats.Active++
			if rec.IsFamilyWide() {
				stats.FamilyWide++
			}
		} else {
			stats.Refunded++
		}
		activity = append(activity, Activity{PackID: rec.PackID, PurchaseID: rec.PurchaseID, Kind: ActivityPurchased, At: rec.PurchasedAt})
		if rec.RefundedAt != nil {
			activity = append(activity, Activity{PackID: rec.PackID, PurchaseID: rec.PurchaseID, Kind: ActivityRefunded, At: *rec.RefundedAt})
		}
	}
	slices.SortStableFunc(activity, func(a, b Activity) int {
		return b.At.Compare(a.At)
	})
	if recent >= 0 && len(activity) > recent {
		activity = activity[:recent]
	}
	stats.Recent = activity
	return stats
}
