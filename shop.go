package chronoquest

import (
	"context"
	"fmt"
	"slices"

	"github.com/chronoquest/chronoquest/internal/backend"
	"golang.org/x/sync/errgroup"
)

const shopItemColumns = "id,code,name,description,price_coins,effect_type,effect_value,active"

// ShopListing is the shop catalogue with the user's held quantities.
type ShopListing struct {
	Items    []ShopItem     `json:"items"`
	Quantity map[string]int `json:"quantity"`
}

type heldItemRow struct {
	ItemID   string    `json:"item_id"`
	Quantity int       `json:"quantity"`
	Item     *ShopItem `json:"shop_items,omitempty"`
}

// Shop loads the active items, cheapest first, and how many of each the
// user holds.
func (s *Session) Shop(ctx context.Context) (*ShopListing, error) {
	api, err := s.api()
	if err != nil {
		return nil, err
	}

	var (
		items []ShopItem
		held  []heldItemRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q := backend.Q().Select(shopItemColumns).Eq("active", true).Order("price_coins", true)
		return remoteError("select shop_items", api.Select(gctx, "shop_items", q, &items))
	})
	g.Go(func() error {
		q := backend.Q().Select("item_id,quantity").Eq("user_id", s.userID)
		return remoteError("select user_shop_items", api.Select(gctx, "user_shop_items", q, &held))
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	listing := &ShopListing{Items: items, Quantity: make(map[string]int, len(held))}
	for _, h := range held {
		listing.Quantity[h.ItemID] = h.Quantity
	}
	return listing, nil
}

// PurchaseItem buys one of a shop item with coins.
func (s *Session) PurchaseItem(ctx context.Context, itemID string) (*Purchase, error) {
	api, err := s.api()
	if err != nil {
		return nil, err
	}
	var p Purchase
	args := map[string]any{"p_user_id": s.userID, "p_item_id": itemID}
	if err := api.RPC(ctx, "purchase_shop_item", args, &p); err != nil {
		return nil, remoteError("purchase_shop_item", err)
	}
	s.c.logger.Info("item purchased", "user_id", s.userID, "item_id", itemID, "remaining_coins", p.RemainingCoins)
	s.invalidateInventory()
	return &p, nil
}

// Inventory loads the items the user holds at least one of.
func (s *Session) Inventory(ctx context.Context) ([]InventoryItem, error) {
	api, err := s.api()
	if err != nil {
		return nil, err
	}
	var rows []heldItemRow
	q := backend.Q().Select("item_id,quantity,shop_items(*)").Eq("user_id", s.userID).Gte("quantity", 1)
	if err := api.Select(ctx, "user_shop_items", q, &rows); err != nil {
		return nil, remoteError("select user_shop_items", err)
	}

	inv := make([]InventoryItem, 0, len(rows))
	for _, r := range rows {
		if r.Quantity <= 0 || r.Item == nil {
			continue
		}
		inv = append(inv, InventoryItem{ShopItem: *r.Item, Quantity: r.Quantity})
	}
	s.mu.Lock()
	s.inventory = inv
	s.mu.Unlock()
	return slices.Clone(inv), nil
}

// ConsumeItem uses qty of a held item; qty <= 0 means one.
func (s *Session) ConsumeItem(ctx context.Context, itemID string, qty int) error {
	if qty <= 0 {
		qty = 1
	}
	api, err := s.api()
	if err != nil {
		return err
	}
	args := map[string]any{"p_user_id": s.userID, "p_item_id": itemID, "p_quantity": qty}
	if err := api.RPC(ctx, "consume_shop_item", args, nil); err != nil {
		return remoteError("consume_shop_item", err)
	}
	s.c.logger.Debug("item consumed", "user_id", s.userID, "item_id", itemID, "quantity", qty)
	s.invalidateInventory()
	return nil
}

func (s *Session) invalidateInventory() {
	s.mu.Lock()
	s.inventory = nil
	s.mu.Unlock()
}

// HeldItem finds a held item by id or code in the last loaded inventory.
func (s *Session) HeldItem(idOrCode string) (InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.inventory {
		if it.ID == idOrCode || it.Code == idOrCode {
			return it, nil
		}
	}
	return InventoryItem{}, fmt.Errorf("item %q not held", idOrCode)
}
