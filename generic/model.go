/*
model.go - Records persisted by the stores and read by the calculators

PURPOSE:
  Plain data shared across packages: sales, team structure, closures,
  marketplace links, Instagram counters and user profiles. JSON tags follow
  the document store layout so the same nodes are readable by other clients.

RULES LIVE ELSEWHERE:
  Validation of sales belongs to commission; aggregation of closures to
  closure. This file only describes shape.
*/
package generic

import (
	"encoding/json"
	"time"
)

// =============================================================================
// TEAM STRUCTURE
// =============================================================================

// Team is one coordinator plus a list of sellers.
type Team struct {
	CoordinatorID UserID   `json:"coordinatorId"`
	Sellers       []UserID `json:"sellers"`
}

// RoleOf returns the team role of uid. The coordinator check runs first, so a
// misconfigured team listing the coordinator as a seller still resolves to
// RoleCoordinator.
func (t Team) RoleOf(uid UserID) Role {
	if uid == "" {
		return RoleNone
	}
	if uid == t.CoordinatorID {
		return RoleCoordinator
	}
	for _, s := range t.Sellers {
		if s == uid {
			return RoleSeller
		}
	}
	return RoleNone
}

// Members returns the coordinator followed by the sellers, without blanks or
// repeats.
func (t Team) Members() []UserID {
	seen := make(map[UserID]bool, len(t.Sellers)+1)
	out := make([]UserID, 0, len(t.Sellers)+1)
	add := func(uid UserID) {
		if uid == "" || seen[uid] {
			return
		}
		seen[uid] = true
		out = append(out, uid)
	}
	add(t.CoordinatorID)
	for _, s := range t.Sellers {
		add(s)
	}
	return out
}

func (t Team) Size() int { return len(t.Members()) }

// TeamFromConfigJSON extracts the "team" node of a raw tier config document.
func TeamFromConfigJSON(raw []byte) (Team, error) {
	var doc struct {
		Team Team `json:"team"`
	}
	if len(raw) == 0 {
		return Team{}, ErrConfigNotFound
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Team{}, err
	}
	return doc.Team, nil
}

// =============================================================================
// SALES
// =============================================================================

type SaleStatus string

const (
	StatusEntrada   SaleStatus = "entrada"
	StatusFrete     SaleStatus = "frete"
	StatusPendente  SaleStatus = "pendente"
	StatusConcluida SaleStatus = "concluida"
)

func (s SaleStatus) Valid() bool {
	switch s {
	case StatusEntrada, StatusFrete, StatusPendente, StatusConcluida:
		return true
	}
	return false
}

// Services are add-on amounts sold with (or without) a product.
type Services struct {
	Capa              Amount `json:"capa"`
	Impermeabilizacao Amount `json:"impermeabilizacao"`
}

func (s Services) Total() Amount { return s.Capa.Add(s.Impermeabilizacao) }

type Sale struct {
	ID          SaleID     `json:"id"`
	Date        Date       `json:"date"`
	Client      string     `json:"client"`
	Net         Amount     `json:"net"`
	Gross       Amount     `json:"gross"`
	Services    Services   `json:"services"`
	SellerUID   UserID     `json:"sellerUid"`
	OrderID     string     `json:"orderId,omitempty"`
	ServiceOnly bool       `json:"serviceOnly,omitempty"`
	Status      SaleStatus `json:"status,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Month is the month bucket the sale is filed under.
func (s Sale) Month() Month { return s.Date.Month() }

// Base returns net when recorded, otherwise gross.
func (s Sale) Base() Amount {
	if s.Net.IsPositive() {
		return s.Net
	}
	return s.Gross
}

// SalesByUser groups a month of sales by seller.
type SalesByUser map[UserID][]Sale

// =============================================================================
// CLOSURE
// =============================================================================

// AdhesionRates are the service rates frozen in a closure. Zero means "use the
// configured base rate".
type AdhesionRates struct {
	Capa              Rate `json:"capa"`
	Impermeabilizacao Rate `json:"impermeabilizacao"`
}

// ClosureRecord is the published monthly override set. A month has at most
// one record; republishing replaces it.
type ClosureRecord struct {
	Month            Month             `json:"month"`
	Adesao           AdhesionRates     `json:"adesao"`
	FaturamentoSofas Amount            `json:"faturamento_sofas"`
	Pontualidade     map[UserID]Amount `json:"pontualidade"`
	MLWeeks          map[UserID]Amount `json:"mlWeeks"`
	Bonus            map[UserID]Amount `json:"bonus,omitempty"`
	PublishedAt      int64             `json:"publishedAt"` // unix millis
}

// Finalized reports whether the closure carries a computed bonus for uid.
func (c *ClosureRecord) Finalized(uid UserID) bool {
	if c == nil || c.Bonus == nil {
		return false
	}
	_, ok := c.Bonus[uid]
	return ok
}

// =============================================================================
// MARKETPLACE LINKS
// =============================================================================

type MarketplaceLink struct {
	Key  string  `json:"-"`
	URL  string  `json:"url"`
	Week WeekKey `json:"-"`
	UID  UserID  `json:"-"`
	TS   int64   `json:"ts"` // unix millis
}

// =============================================================================
// INSTAGRAM
// =============================================================================

type InstagramKind string

const (
	InstagramPosts   InstagramKind = "posts"
	InstagramStories InstagramKind = "stories"
)

func (k InstagramKind) Valid() bool { return k == InstagramPosts || k == InstagramStories }

// InstagramCap is the per-day ceiling for each counter.
const InstagramCap = 999

type InstagramDay struct {
	Posts   int      `json:"posts"`
	Stories int      `json:"stories"`
	Times   []string `json:"times,omitempty"`
}

// Increment bumps the counter for kind, honouring InstagramCap. The time
// stamp is recorded only when the counter moved.
func (d InstagramDay) Increment(kind InstagramKind, at string) InstagramDay {
	counter := &d.Posts
	if kind == InstagramStories {
		counter = &d.Stories
	}
	if *counter >= InstagramCap {
		return d
	}
	*counter++
	if at != "" {
		d.Times = append(append([]string(nil), d.Times...), at)
	}
	return d
}

// =============================================================================
// USERS
// =============================================================================

type User struct {
	UID           UserID `json:"uid"`
	Name          string `json:"name"`
	Role          Role   `json:"role"`
	Email         string `json:"email,omitempty"`
	MonthlyTarget Amount `json:"monthlyTarget,omitempty"`
}
