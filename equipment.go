package chronoquest

import (
	"context"
	"fmt"

	"github.com/chronoquest/chronoquest/internal/backend"
	"github.com/chronoquest/chronoquest/internal/game"
	"golang.org/x/sync/errgroup"
)

const equipmentColumns = "id,code,name,description,slot,price_coins,effect_type,effect_value,active"

type ownedEquipmentRow struct {
	EquipmentID string `json:"equipment_id"`
}

type slotRow struct {
	Slot        Slot       `json:"slot"`
	EquipmentID *string    `json:"equipment_id"`
	Equipment   *Equipment `json:"equipments"`
}

// Equipment loads the catalogue, the owned equipment and what is worn in
// each slot.
func (s *Session) Equipment(ctx context.Context) (*EquipmentState, error) {
	api, err := s.api()
	if err != nil {
		return nil, err
	}

	var (
		catalogue []Equipment
		owned     []ownedEquipmentRow
		slots     []slotRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q := backend.Q().Select(equipmentColumns).Eq("active", true).Order("price_coins", true)
		return remoteError("select equipments", api.Select(gctx, "equipments", q, &catalogue))
	})
	g.Go(func() error {
		q := backend.Q().Select("equipment_id").Eq("user_id", s.userID)
		return remoteError("select user_equipments", api.Select(gctx, "user_equipments", q, &owned))
	})
	g.Go(func() error {
		q := backend.Q().Select("slot,equipment_id,equipments(*)").Eq("user_id", s.userID)
		return remoteError("select user_equipment_slots", api.Select(gctx, "user_equipment_slots", q, &slots))
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	st := &EquipmentState{
		Catalogue: catalogue,
		Owned:     make(map[string]bool, len(owned)),
		Equipped:  make(map[Slot]*Equipment, len(Slots)),
	}
	for _, o := range owned {
		st.Owned[o.EquipmentID] = true
	}
	for _, slot := range Slots {
		st.Equipped[slot] = nil
	}
	for _, r := range slots {
		if !r.Slot.IsValid() || r.EquipmentID == nil || r.Equipment == nil {
			continue
		}
		st.Equipped[r.Slot] = r.Equipment
	}

	s.mu.Lock()
	s.equipment = st
	s.mu.Unlock()
	return st, nil
}

// PurchaseEquipment buys a piece of equipment with coins.
func (s *Session) PurchaseEquipment(ctx context.Context, equipmentID string) error {
	args := map[string]any{"p_user_id": s.userID, "p_equipment_id": equipmentID}
	return s.equipmentRPC(ctx, "purchase_equipment", args)
}

// Equip wears an owned piece of equipment in slot.
func (s *Session) Equip(ctx context.Context, slot Slot, equipmentID string) error {
	if !slot.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	args := map[string]any{"p_user_id": s.userID, "p_slot": slot, "p_equipment_id": equipmentID}
	return s.equipmentRPC(ctx, "equip_equipment", args)
}

// Unequip empties slot.
func (s *Session) Unequip(ctx context.Context, slot Slot) error {
	if !slot.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	args := map[string]any{"p_user_id": s.userID, "p_slot": slot}
	return s.equipmentRPC(ctx, "unequip_equipment", args)
}

func (s *Session) equipmentRPC(ctx context.Context, fn string, args map[string]any) error {
	api, err := s.api()
	if err != nil {
		return err
	}
	if err := api.RPC(ctx, fn, args, nil); err != nil {
		return remoteError(fn, err)
	}
	s.c.logger.Info("equipment changed", "user_id", s.userID, "rpc", fn)

	s.mu.Lock()
	s.equipment = nil
	s.mu.Unlock()
	return nil
}

// EquipmentBonuses combines the effects of the equipped items.
func EquipmentBonuses(equipped map[Slot]*Equipment) game.EquipmentBonus {
	effects := make([]game.Effect, 0, len(equipped))
	for _, slot := range Slots {
		if e := equipped[slot]; e != nil {
			effects = append(effects, game.Effect{Type: e.EffectType, Value: e.EffectValue})
		}
	}
	return game.SumEquipment(effects)
}
