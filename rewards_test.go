package chronoquest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chronoquest/chronoquest"
	"github.com/chronoquest/chronoquest/internal/game"
)

func TestCanClaimDailyReward(t *testing.T) {
	now := time.Date(2026, 3, 4, 23, 30, 0, 0, time.UTC)
	tests := []struct {
		name  string
		state *chronoquest.DailyRewardState
		want  bool
	}{
		{"never claimed", nil, true},
		{"empty state", &chronoquest.DailyRewardState{}, true},
		{"claimed today", &chronoquest.DailyRewardState{LastClaimedAt: "2026-03-04T01:00:00Z"}, false},
		{"claimed yesterday", &chronoquest.DailyRewardState{LastClaimedAt: "2026-03-03T23:59:00Z"}, true},
	}
	for _, tt := range tests {
		if got := chronoquest.CanClaimDailyReward(tt.state, now); got != tt.want {
			t.Errorf("%s: CanClaimDailyReward() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestClaimDailyReward(t *testing.T) {
	fb := newFakeBackend(t)
	fb.rpc("claim_daily_reward", func(row) (any, int) {
		fb.tables["user_daily_rewards"] = []row{{
			"user_id": testUser, "last_claimed_at": "2026-03-04T12:00:00Z", "coins_awarded": 10, "streak_awarded": 1,
		}}
		return row{"coins": 10, "streak_award": 1}, 200
	})
	_, sess := newOnlineSession(t, fb)

	claim, state, err := sess.ClaimDailyReward(context.Background())
	if err != nil {
		t.Fatalf("ClaimDailyReward() returned error: %v", err)
	}
	if claim.Coins != 10 || claim.StreakAward != 1 {
		t.Errorf("claim = %+v, want 10 coins, streak award 1", claim)
	}
	if state == nil || chronoquest.CanClaimDailyReward(state, testNow) {
		t.Errorf("state = %+v, want a claim dated today", state)
	}
}

func TestClaimDailyReward_Rejected(t *testing.T) {
	fb := newFakeBackend(t)
	fb.rpc("claim_daily_reward", func(row) (any, int) {
		return "already claimed today", 400
	})
	_, sess := newOnlineSession(t, fb)

	_, _, err := sess.ClaimDailyReward(context.Background())
	var re *chronoquest.RemoteError
	if !errors.As(err, &re) || re.Message != "already claimed today" {
		t.Errorf("ClaimDailyReward() error = %v, want RemoteError carrying the backend message", err)
	}
}

func TestStreak_ZeroWithoutRow(t *testing.T) {
	fb := newFakeBackend(t)
	_, sess := newOnlineSession(t, fb)

	st, err := sess.Streak(context.Background())
	if err != nil {
		t.Fatalf("Streak() returned error: %v", err)
	}
	if st.Current != 0 || st.Longest != 0 {
		t.Errorf("Streak() = %+v, want zeros", st)
	}
}

// ============================================================================
// Achievements
// ============================================================================

func TestNewlyUnlocked(t *testing.T) {
	mk := func(id string, unlocked bool) chronoquest.AchievementState {
		return chronoquest.AchievementState{Achievement: chronoquest.Achievement{ID: id, Name: id}, Unlocked: unlocked}
	}
	before := []chronoquest.AchievementState{mk("a", true), mk("b", false), mk("c", false)}
	after := []chronoquest.AchievementState{mk("a", true), mk("b", true), mk("c", false), mk("d", true)}

	got := chronoquest.NewlyUnlocked(before, after)
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "d" {
		t.Errorf("NewlyUnlocked() = %+v, want b and d", got)
	}
	if got := chronoquest.NewlyUnlocked(after, after); len(got) != 0 {
		t.Errorf("NewlyUnlocked(same) = %+v, want none", got)
	}
}

func TestAchievements_MarksUnlocks(t *testing.T) {
	fb := newFakeBackend(t)
	fb.seed("achievements",
		row{"id": "ach-1", "code": "first", "name": "First Steps", "type": "total_completions", "active": true},
		row{"id": "ach-2", "code": "week", "name": "Week Warrior", "type": "streak", "active": true},
		row{"id": "ach-3", "code": "gone", "name": "Retired", "type": "streak", "active": false},
	)
	fb.seed("user_achievements", row{"user_id": testUser, "achievement_id": "ach-2", "unlocked_at": "2026-03-01T08:00:00Z"})
	_, sess := newOnlineSession(t, fb)

	got, err := sess.Achievements(context.Background())
	if err != nil {
		t.Fatalf("Achievements() returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Achievements() = %d, want 2 active", len(got))
	}
	for _, a := range got {
		if want := a.ID == "ach-2"; a.Unlocked != want {
			t.Errorf("%s Unlocked = %v, want %v", a.ID, a.Unlocked, want)
		}
	}
}

// ============================================================================
// Shop and equipment
// ============================================================================

func TestCompleteTask_ConsumesXPItem(t *testing.T) {
	fb := newFakeBackend(t)
	fb.seed("tasks", taskRow(stretchID, "Stretch", nil))
	fb.seed("user_shop_items", row{
		"user_id": testUser, "item_id": "item-1", "quantity": 2,
		"shop_items": row{"id": "item-1", "code": "tonic", "name": "Focus Tonic", "price_coins": 20, "effect_type": "xp_boost", "effect_value": 5, "active": true},
	})
	fb.rpc("consume_shop_item", func(args row) (any, int) {
		fb.tables["consumed"] = append(fb.tables["consumed"], args)
		return row{}, 200
	})
	_, sess := newOnlineSession(t, fb)

	res, err := sess.CompleteTask(context.Background(), stretchID, chronoquest.CompleteOptions{XPItemID: "item-1"})
	if err != nil {
		t.Fatalf("CompleteTask() returned error: %v", err)
	}
	if res.Reward.FinalXP != 15 || res.Reward.BonusXP != 5 {
		t.Errorf("Reward = %+v, want final 15 with bonus 5", res.Reward)
	}
	if !hasEvent(res.Events, chronoquest.EventItemConsumed) {
		t.Errorf("Events = %+v, want item_consumed", res.Events)
	}
	consumed := fb.rows("consumed")
	if len(consumed) != 1 || consumed[0]["p_item_id"] != "item-1" || num(consumed[0]["p_quantity"]) != "1" {
		t.Errorf("consume_shop_item calls = %v, want one for item-1", consumed)
	}
}

func TestCompleteTask_WrongEffectItemIgnored(t *testing.T) {
	fb := newFakeBackend(t)
	fb.seed("tasks", taskRow(stretchID, "Stretch", nil))
	fb.seed("user_shop_items", row{
		"user_id": testUser, "item_id": "item-2", "quantity": 1,
		"shop_items": row{"id": "item-2", "code": "tea", "name": "Calming Tea", "effect_type": "fatigue_reduce", "effect_value": 1, "active": true},
	})
	_, sess := newOnlineSession(t, fb)

	res, err := sess.CompleteTask(context.Background(), stretchID, chronoquest.CompleteOptions{XPItemID: "item-2"})
	if err != nil {
		t.Fatalf("CompleteTask() returned error: %v", err)
	}
	if hasEvent(res.Events, chronoquest.EventItemConsumed) {
		t.Error("a fatigue item passed as the XP item was consumed")
	}
	if n := fb.count("POST rpc/consume_shop_item"); n != 0 {
		t.Errorf("consume calls = %d, want 0", n)
	}
}

func TestShop_ListsQuantities(t *testing.T) {
	fb := newFakeBackend(t)
	fb.seed("shop_items",
		row{"id": "item-1", "code": "tonic", "name": "Focus Tonic", "price_coins": 20, "effect_type": "xp_boost", "effect_value": 5, "active": true},
	)
	fb.seed("user_shop_items", row{"user_id": testUser, "item_id": "item-1", "quantity": 3})
	_, sess := newOnlineSession(t, fb)

	listing, err := sess.Shop(context.Background())
	if err != nil {
		t.Fatalf("Shop() returned error: %v", err)
	}
	if len(listing.Items) != 1 || listing.Quantity["item-1"] != 3 {
		t.Errorf("Shop() = %+v", listing)
	}
}

func TestPurchaseItem(t *testing.T) {
	fb := newFakeBackend(t)
	fb.rpc("purchase_shop_item", func(args row) (any, int) {
		return row{"item_id": args["p_item_id"], "remaining_coins": 30, "quantity": 1}, 200
	})
	_, sess := newOnlineSession(t, fb)

	p, err := sess.PurchaseItem(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("PurchaseItem() returned error: %v", err)
	}
	if p.ItemID != "item-1" || p.RemainingCoins != 30 {
		t.Errorf("PurchaseItem() = %+v", p)
	}
}

func TestEquip_InvalidSlot(t *testing.T) {
	fb := newFakeBackend(t)
	_, sess := newOnlineSession(t, fb)

	if err := sess.Equip(context.Background(), "boots", "eq-1"); !errors.Is(err, chronoquest.ErrInvalidSlot) {
		t.Errorf("Equip(boots) error = %v, want ErrInvalidSlot", err)
	}
	if err := sess.Unequip(context.Background(), "hat"); !errors.Is(err, chronoquest.ErrInvalidSlot) {
		t.Errorf("Unequip(hat) error = %v, want ErrInvalidSlot", err)
	}
}

func TestEquipmentBonuses(t *testing.T) {
	equipped := map[chronoquest.Slot]*chronoquest.Equipment{
		chronoquest.SlotAmulet:  {EffectType: game.EffectXPPercent, EffectValue: 5},
		chronoquest.SlotArmor:   {EffectType: game.EffectFatigueStep, EffectValue: 1},
		chronoquest.SlotTrinket: nil,
	}
	got := chronoquest.EquipmentBonuses(equipped)
	if got.XPPercent != 5 || got.FatigueSteps != 1 {
		t.Errorf("EquipmentBonuses() = %+v, want 5%% and 1 step", got)
	}
}

// ============================================================================
// Story
// ============================================================================

func seedStory(fb *fakeBackend) {
	fb.seed("story_chapters",
		row{"id": "ch-1", "code": "prologue", "order_index": 0, "title": "Prologue"},
		row{"id": "ch-2", "code": "dawn", "order_index": 1, "title": "Dawn", "required_streak": 3},
	)
	fb.seed("user_story_progress", row{"user_id": testUser, "chapter_id": "ch-1", "unlocked_at": "2026-02-01T00:00:00Z"})
	fb.rpc("unlock_story_chapter", func(args row) (any, int) {
		fb.tables["user_story_progress"] = append(fb.tables["user_story_progress"],
			row{"user_id": args["p_user_id"], "chapter_id": args["p_chapter_id"], "unlocked_at": "2026-03-04T12:00:00Z"})
		return row{}, 200
	})
}

func TestUnlockChapter_RequirementsGate(t *testing.T) {
	fb := newFakeBackend(t)
	seedStory(fb)
	_, sess := newOnlineSession(t, fb)
	ctx := context.Background()

	st, err := sess.Story(ctx)
	if err != nil {
		t.Fatalf("Story() returned error: %v", err)
	}
	if c := st.CurrentChapter(); c == nil || c.ID != "ch-1" {
		t.Errorf("CurrentChapter() = %+v, want ch-1", c)
	}
	if n := st.NextChapter(); n == nil || n.ID != "ch-2" {
		t.Errorf("NextChapter() = %+v, want ch-2", n)
	}

	if _, err := sess.UnlockChapter(ctx, "dawn"); !errors.Is(err, chronoquest.ErrRequirementsNotMet) {
		t.Fatalf("UnlockChapter() error = %v, want ErrRequirementsNotMet", err)
	}
	if n := fb.count("POST rpc/unlock_story_chapter"); n != 0 {
		t.Errorf("unlock calls = %d, want 0", n)
	}

	fb.seed("user_streaks", row{"user_id": testUser, "current_streak": 3, "longest_streak": 5})
	if _, err := sess.Streak(ctx); err != nil {
		t.Fatal(err)
	}
	st, err = sess.UnlockChapter(ctx, "dawn")
	if err != nil {
		t.Fatalf("UnlockChapter() returned error: %v", err)
	}
	if !st.Unlocked["ch-2"] || st.NextChapter() != nil {
		t.Errorf("after unlock: Unlocked = %v, NextChapter = %+v", st.Unlocked, st.NextChapter())
	}
}

func TestUnlockChapter_Unknown(t *testing.T) {
	fb := newFakeBackend(t)
	seedStory(fb)
	_, sess := newOnlineSession(t, fb)

	if _, err := sess.UnlockChapter(context.Background(), "epilogue"); !errors.Is(err, chronoquest.ErrChapterNotFound) {
		t.Errorf("UnlockChapter(epilogue) error = %v, want ErrChapterNotFound", err)
	}
}

func TestRequirements_KeyQuest(t *testing.T) {
	ch := chronoquest.Chapter{ID: "ch-3", RequiredQuestCode: "q-lantern", RequiredStatKey: chronoquest.StatInt, RequiredStatValue: 2}
	quests := []chronoquest.StoryQuest{{Code: "q-lantern", Title: "Light the lantern"}}

	reqs := chronoquest.Requirements(ch, quests, chronoquest.Stats{Int: 2}, 0, map[string]game.QuestState{
		"q-lantern": {HasTask: true},
	})
	if len(reqs) != 2 {
		t.Fatalf("Requirements() = %d, want 2", len(reqs))
	}
	if !reqs[0].Satisfied {
		t.Errorf("stat requirement = %+v, want satisfied", reqs[0])
	}
	if reqs[1].Satisfied || reqs[1].Info != "in progress" || reqs[1].Label != `key quest "Light the lantern"` {
		t.Errorf("quest requirement = %+v, want unsatisfied, in progress", reqs[1])
	}
}

func TestAddStoryQuest_CreatesTaggedTask(t *testing.T) {
	fb := newFakeBackend(t)
	seedStory(fb)
	fb.seed("story_quests", row{
		"id": "sq-1", "code": "q-lantern", "chapter_id": "ch-1", "order_index": 0, "title": "Light the lantern",
		"task_category": "study", "effort_level": "hard", "reward_coins": 5,
	})
	_, sess := newOnlineSession(t, fb)

	task, err := sess.AddStoryQuest(context.Background(), "q-lantern")
	if err != nil {
		t.Fatalf("AddStoryQuest() returned error: %v", err)
	}
	if task.StoryQuestCode != "q-lantern" || task.BaseXP != 18 || task.Category != chronoquest.CategoryStudy {
		t.Errorf("AddStoryQuest() = %+v", task)
	}
	if st := sess.QuestStates()["q-lantern"]; !st.HasTask || st.Completed {
		t.Errorf("QuestStates() = %+v, want has task, not completed", st)
	}
}

// ============================================================================
// Suggestions
// ============================================================================

func TestSuggestions_GeneratesAndStoresWhenEmpty(t *testing.T) {
	fb := newFakeBackend(t)
	_, sess := newOnlineSession(t, fb)
	ctx := context.Background()

	ch := &chronoquest.Chapter{ID: "ch-1", Code: "prologue"}
	got, err := sess.Suggestions(ctx, ch)
	if err != nil {
		t.Fatalf("Suggestions() returned error: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("Suggestions() returned none")
	}
	for _, sg := range got {
		if sg.Source != chronoquest.SourceLocal || sg.ChapterID != "ch-1" {
			t.Errorf("suggestion = %+v, want local for ch-1", sg)
		}
	}
	if n := len(fb.rows("ai_quest_suggestions")); n != len(got) {
		t.Errorf("stored suggestions = %d, want %d", n, len(got))
	}

	again, err := sess.Suggestions(ctx, ch)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != len(got) || fb.count("POST ai_quest_suggestions") != 1 {
		t.Errorf("second Suggestions() regenerated instead of reading stored ones")
	}
}

func TestAcceptSuggestion(t *testing.T) {
	fb := newFakeBackend(t)
	_, sess := newOnlineSession(t, fb)
	ctx := context.Background()

	got, err := sess.Suggestions(ctx, nil)
	if err != nil || len(got) == 0 {
		t.Fatalf("Suggestions() = %v, %v", got, err)
	}
	task, err := sess.AcceptSuggestion(ctx, got[0])
	if err != nil {
		t.Fatalf("AcceptSuggestion() returned error: %v", err)
	}
	if task.Title != got[0].Title {
		t.Errorf("task title = %q, want %q", task.Title, got[0].Title)
	}

	open, err := sess.Suggestions(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, sg := range open {
		if sg.ID == got[0].ID {
			t.Error("accepted suggestion is still open")
		}
	}
}
