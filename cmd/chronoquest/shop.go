package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/chronoquest/chronoquest"
	"github.com/spf13/cobra"
)

var shopCmd = &cobra.Command{
	Use:   "shop",
	Short: "Browse and buy consumable items",
}

var shopListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List items for sale and how many you hold",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			listing, err := sess.Shop(ctx)
			if err != nil {
				return err
			}
			if outputJSON {
				return outputAsJSON(cmd, listing)
			}
			w := cmd.OutOrStdout()
			if p := sess.Profile(); p != nil {
				printField(w, "Coins", "%d", p.Coins)
			}
			for _, it := range listing.Items {
				fmt.Fprintf(w, "%-24s %4d coins  held %d\n", it.Name, it.PriceCoins, listing.Quantity[it.ID])
				if it.Description != "" {
					printMuted(w, "    %s", it.Description)
				}
				printMuted(w, "    code %s", it.Code)
			}
			return nil
		})
	},
}

var shopBuyCmd = &cobra.Command{
	Use:   "buy <item>",
	Short: "Buy one of an item by id or code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			listing, err := sess.Shop(ctx)
			if err != nil {
				return err
			}
			item, ok := findShopItem(listing.Items, args[0])
			if !ok {
				return fmt.Errorf("no item %q in the shop", args[0])
			}
			p, err := sess.PurchaseItem(ctx, item.ID)
			if err != nil {
				return err
			}
			if outputJSON {
				return outputAsJSON(cmd, p)
			}
			printSuccess(cmd.OutOrStdout(), "Bought %s (now holding %d, %d coins left)", item.Name, p.Quantity, p.RemainingCoins)
			return nil
		})
	},
}

var shopUseCmd = &cobra.Command{
	Use:   "use <item> [quantity]",
	Short: "Use held items outside a completion",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty := 1
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("quantity must be a positive number: %q", args[1])
			}
			qty = n
		}
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			if _, err := sess.Inventory(ctx); err != nil {
				return err
			}
			item, err := sess.HeldItem(args[0])
			if err != nil {
				return err
			}
			if item.Quantity < qty {
				return fmt.Errorf("only %d %s held", item.Quantity, item.Name)
			}
			if err := sess.ConsumeItem(ctx, item.ID, qty); err != nil {
				return err
			}
			if outputJSON {
				return outputAsJSON(cmd, map[string]any{"item_id": item.ID, "used": qty})
			}
			printSuccess(cmd.OutOrStdout(), "Used %d %s", qty, item.Name)
			return nil
		})
	},
}

func findShopItem(items []chronoquest.ShopItem, idOrCode string) (chronoquest.ShopItem, bool) {
	for _, it := range items {
		if it.ID == idOrCode || it.Code == idOrCode {
			return it, true
		}
	}
	return chronoquest.ShopItem{}, false
}

var equipCmd = &cobra.Command{
	Use:   "equip",
	Short: "Buy and wear permanent equipment",
}

var equipListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Show the equipment catalogue and what you wear",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			st, err := sess.Equipment(ctx)
			if err != nil {
				return err
			}
			bonus := chronoquest.EquipmentBonuses(st.Equipped)
			if outputJSON {
				return outputAsJSON(cmd, map[string]any{"equipment": st, "bonus": bonus})
			}
			w := cmd.OutOrStdout()
			for _, slot := range chronoquest.Slots {
				worn := "empty"
				if e := st.Equipped[slot]; e != nil {
					worn = e.Name
				}
				printField(w, string(slot), "%s", worn)
			}
			if bonus.FatigueSteps > 0 || bonus.XPPercent > 0 {
				printInfo(w, "Bonus: %d fatigue step(s), +%.0f%% XP", bonus.FatigueSteps, bonus.XPPercent)
			}
			fmt.Fprintln(w)
			for _, e := range st.Catalogue {
				state := fmt.Sprintf("%d coins", e.PriceCoins)
				if st.Owned[e.ID] {
					state = "owned"
				}
				fmt.Fprintf(w, "%-24s %-8s %s\n", e.Name, e.Slot, state)
				printMuted(w, "    code %s", e.Code)
			}
			return nil
		})
	},
}

var equipBuyCmd = &cobra.Command{
	Use:   "buy <equipment>",
	Short: "Buy equipment by id or code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			e, err := findEquipment(ctx, sess, args[0])
			if err != nil {
				return err
			}
			if err := sess.PurchaseEquipment(ctx, e.ID); err != nil {
				return err
			}
			if outputJSON {
				return outputAsJSON(cmd, e)
			}
			printSuccess(cmd.OutOrStdout(), "Bought %s", e.Name)
			return nil
		})
	},
}

var equipSetCmd = &cobra.Command{
	Use:   "set <equipment>",
	Short: "Wear owned equipment in its slot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			e, err := findEquipment(ctx, sess, args[0])
			if err != nil {
				return err
			}
			if err := sess.Equip(ctx, e.Slot, e.ID); err != nil {
				return err
			}
			if outputJSON {
				return outputAsJSON(cmd, e)
			}
			printSuccess(cmd.OutOrStdout(), "Wearing %s as %s", e.Name, e.Slot)
			return nil
		})
	},
}

var equipClearCmd = &cobra.Command{
	Use:   "clear <slot>",
	Short: "Empty an equipment slot (amulet, armor or trinket)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slot := chronoquest.Slot(args[0])
		return withSession(cmd, func(ctx context.Context, sess *chronoquest.Session) error {
			if err := sess.Unequip(ctx, slot); err != nil {
				return err
			}
			if !outputJSON {
				printSuccess(cmd.OutOrStdout(), "Cleared %s", slot)
			}
			return nil
		})
	},
}

func findEquipment(ctx context.Context, sess *chronoquest.Session, idOrCode string) (chronoquest.Equipment, error) {
	st, err := sess.Equipment(ctx)
	if err != nil {
		return chronoquest.Equipment{}, err
	}
	for _, e := range st.Catalogue {
		if e.ID == idOrCode || e.Code == idOrCode {
			return e, nil
		}
	}
	return chronoquest.Equipment{}, fmt.Errorf("no equipment %q", idOrCode)
}

func init() {
	shopCmd.AddCommand(shopListCmd, shopBuyCmd, shopUseCmd)
	equipCmd.AddCommand(equipListCmd, equipBuyCmd, equipSetCmd, equipClearCmd)
	rootCmd.AddCommand(shopCmd, equipCmd)
}
