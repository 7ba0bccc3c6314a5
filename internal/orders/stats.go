package orders

import (
	"context"
	"fmt"
	"sort"

	"github.com/alextreichler/qrmenu/internal/models"
	"github.com/shopspring/decimal"
)

const popularLimit = 5

type Stats struct {
	TotalOrders       int            `json:"totalOrders"`
	TotalRevenue      float64        `json:"totalRevenue"`
	AverageOrderValue float64        `json:"averageOrderValue"`
	OrdersByStatus    map[string]int `json:"ordersByStatus"`
	PopularItems      []PopularItem  `json:"popularItems"`
}

type PopularItem struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Stats summarises every order. Cancelled orders count towards totals per
// status but not towards revenue, the average or popular items.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	orders, err := s.Repo.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return summarize(orders), nil
}

func summarize(orders []models.Order) *Stats {
	st := &Stats{
		TotalOrders:    len(orders),
		OrdersByStatus: make(map[string]int, len(models.Statuses)),
		PopularItems:   []PopularItem{},
	}
	for _, status := range models.Statuses {
		st.OrdersByStatus[string(status)] = 0
	}

	revenue := decimal.Zero
	billed := 0
	counts := make(map[string]*PopularItem)
	for _, o := range orders {
		st.OrdersByStatus[string(o.Status)]++
		if o.Status == models.StatusCancelled {
			continue
		}
		billed++
		revenue = revenue.Add(decimal.NewFromFloat(o.Total))
		for _, it := range o.Items {
			p, ok := counts[it.ID]
			if !ok {
				p = &PopularItem{ID: it.ID, Name: it.Name}
				counts[it.ID] = p
			}
			p.Quantity += it.Quantity
		}
	}

	st.TotalRevenue = revenue.Round(2).InexactFloat64()
	if billed > 0 {
		st.AverageOrderValue = revenue.Div(decimal.NewFromInt(int64(billed))).Round(2).InexactFloat64()
	}

	for _, p := range counts {
		st.PopularItems = append(st.PopularItems, *p)
	}
	sort.Slice(st.PopularItems, func(i, j int) bool {
		a, b := st.PopularItems[i], st.PopularItems[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return a.Name < b.Name
	})
	if len(st.PopularItems) > popularLimit {
		st.PopularItems = st.PopularItems[:popularLimit]
	}
	return st
}
