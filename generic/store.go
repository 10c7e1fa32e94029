/*
store.go - Persistence ports for the payout engine

PURPOSE:
  Defines the interface between the application services and the database.
  The calculators never see these ports; services load records through them,
  run pure calculations, and write results back.

KEY INTERFACES:
  ConfigStore:    Raw tier configuration document and team structure
  SaleStore:      Sales keyed by month/seller/id
  LinkStore:      Marketplace links with write-if-absent dedup
  ClosureStore:   One closure record per month, overwritten on republish
  InstagramStore: Daily post/story counters
  UserStore:      User profiles (role, display name, monthly target)
  AdminStore:     Bulk resets of a user's day or month
  Store:          All of the above

WRITE-IF-ABSENT:
  AddMarketplaceLink must be atomic with respect to concurrent writers of
  the same (week, uid, key). Exactly one writer wins; the others receive
  ErrDuplicateLink. Implementations use a UNIQUE index (SQLite), an ETag
  conditional write (remote document store) or a mutex (memory).

MISSING RECORDS:
  FetchClosure and GetUser return (nil, nil) when the record does not exist.
  FetchTierConfig returns ErrConfigNotFound.

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: Local SQLite file
  - store/rtdb/store.go: Firebase Realtime Database over REST

SEE ALSO:
  - model.go: Record shapes
  - closure/service.go: Main consumer
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// PORTS
// =============================================================================

type ConfigStore interface {
	// FetchTierConfig returns the raw configuration document. Parsing and
	// validation belong to factory.ParseTierConfig.
	FetchTierConfig(ctx context.Context) ([]byte, error)

	SaveTierConfig(ctx context.Context, raw []byte) error

	// FetchTeamStructure returns the team node of the configuration.
	FetchTeamStructure(ctx context.Context) (Team, error)
}

type SaleStore interface {
	// FetchSalesForMonth returns every seller's sales for month. Sellers with
	// no sales are absent from the map.
	FetchSalesForMonth(ctx context.Context, month Month) (SalesByUser, error)

	FetchSales(ctx context.Context, month Month, uid UserID) ([]Sale, error)

	// AddSale stores a sale under its date's month. The caller assigns ID.
	AddSale(ctx context.Context, sale Sale) error

	// UpdateSale replaces an existing sale. ErrSaleNotFound if absent.
	UpdateSale(ctx context.Context, sale Sale) error

	DeleteSale(ctx context.Context, month Month, uid UserID, id SaleID) error

	// MoveSale removes the sale from month from and stores it under its
	// date's month as one atomic step. ErrSaleNotFound if it is not in from.
	MoveSale(ctx context.Context, from Month, sale Sale) error
}

type LinkStore interface {
	// AddMarketplaceLink writes the link if (Week, UID, Key) is new.
	// Returns an error wrapping ErrDuplicateLink otherwise.
	AddMarketplaceLink(ctx context.Context, link MarketplaceLink) error

	FetchMarketplaceLinks(ctx context.Context, uid UserID, week WeekKey) ([]MarketplaceLink, error)

	FetchMarketplaceLinkCount(ctx context.Context, uid UserID, week WeekKey) (int, error)
}

type ClosureStore interface {
	FetchClosure(ctx context.Context, month Month) (*ClosureRecord, error)

	// PublishClosure overwrites the month's record wholesale.
	PublishClosure(ctx context.Context, record ClosureRecord) error
}

type InstagramStore interface {
	// IncrementInstagram bumps one counter for uid on date and returns the
	// resulting day. at is an optional "15:04" stamp.
	IncrementInstagram(ctx context.Context, uid UserID, date Date, kind InstagramKind, at string) (InstagramDay, error)

	FetchInstagramDay(ctx context.Context, uid UserID, date Date) (InstagramDay, error)
}

type UserStore interface {
	GetUser(ctx context.Context, uid UserID) (*User, error)
	SaveUser(ctx context.Context, user User) error
}

// AdminStore removes a user's activity. loc decides which calendar day a
// link's timestamp falls on.
type AdminStore interface {
	// ResetUserDay removes the user's sales dated date, the Instagram day and
	// the marketplace links created that day.
	ResetUserDay(ctx context.Context, uid UserID, date Date, loc *time.Location) error

	// ResetUserMonth removes the user's sales for month, every Instagram day
	// in it, and every marketplace week touching it.
	ResetUserMonth(ctx context.Context, uid UserID, month Month, loc *time.Location) error
}

// Store is the full persistence surface.
type Store interface {
	ConfigStore
	SaleStore
	LinkStore
	ClosureStore
	InstagramStore
	UserStore
	AdminStore
}

// =============================================================================
// HELPERS SHARED BY IMPLEMENTATIONS
// =============================================================================

// DaysOf lists every date in month.
func DaysOf(month Month) []Date {
	start := month.Start(time.UTC)
	if start.IsZero() {
		return nil
	}
	var out []Date
	for d := start; d.Month() == start.Month(); d = d.AddDate(0, 0, 1) {
		out = append(out, DateOf(d))
	}
	return out
}

// WeeksOf lists the distinct week keys touching month, in order.
func WeeksOf(month Month, loc *time.Location) []WeekKey {
	seen := make(map[WeekKey]bool)
	var out []WeekKey
	for _, d := range DaysOf(month) {
		w := WeekKeyOf(d.Time(loc), loc)
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

// LinkCreatedOn reports whether a link timestamp falls on date in loc.
// Links without a timestamp never match.
func LinkCreatedOn(link MarketplaceLink, date Date, loc *time.Location) bool {
	if link.TS <= 0 {
		return false
	}
	return DateOf(time.UnixMilli(link.TS).In(loc)) == date
}
