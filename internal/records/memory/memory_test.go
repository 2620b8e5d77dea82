package memory

import (
	"context"
	"errors"
	"testing"

	"budgetwatch/internal/core"
	"budgetwatch/internal/records"

	"github.com/shopspring/decimal"
)

func mustCategory(t *testing.T, s *Store, user, name string, typ core.CategoryType) core.Category {
	t.Helper()
	c, err := s.CreateCategory(context.Background(), core.Category{UserID: user, Name: name, Type: typ})
	if err != nil {
		t.Fatalf("create category %s: %v", name, err)
	}
	return c
}

func mustTx(t *testing.T, s *Store, user string, c core.Category, amount string, d core.Date) core.Transaction {
	t.Helper()
	tx, err := s.CreateTransaction(context.Background(), core.Transaction{
		UserID:      user,
		Category:    c,
		Amount:      decimal.RequireFromString(amount),
		Description: "t",
		Date:        d,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return tx
}

func TestCategoryUniqueness(t *testing.T) {
	s := New()
	mustCategory(t, s, "u1", "Food", core.Expense)

	_, err := s.CreateCategory(context.Background(), core.Category{UserID: "u1", Name: "Food", Type: core.Expense})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	// Same name with another type or another user is fine.
	mustCategory(t, s, "u1", "Food", core.Income)
	mustCategory(t, s, "u2", "Food", core.Expense)
}

func TestSumTransactionsFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	food := mustCategory(t, s, "u1", "Food", core.Expense)
	other := mustCategory(t, s, "u1", "Other", core.Expense)

	mustTx(t, s, "u1", food, "-10.50", core.NewDate(2025, 3, 1))
	mustTx(t, s, "u1", food, "4", core.NewDate(2025, 3, 10))
	mustTx(t, s, "u1", food, "-2", core.NewDate(2025, 2, 28))
	mustTx(t, s, "u1", food, "-7", core.NewDate(2025, 4, 2))
	mustTx(t, s, "u1", other, "-100", core.NewDate(2025, 3, 5))

	tests := []struct {
		name string
		q    records.SumQuery
		want string
	}{
		{"open ended", records.SumQuery{UserID: "u1", CategoryID: food.ID, From: core.NewDate(2025, 3, 1)}, "-13.5"},
		{"bounded", records.SumQuery{UserID: "u1", CategoryID: food.ID, From: core.NewDate(2025, 3, 1), To: core.NewDate(2025, 3, 31)}, "-6.5"},
		{"positive", records.SumQuery{UserID: "u1", CategoryID: food.ID, From: core.NewDate(2025, 1, 1), Sign: records.Positive}, "4"},
		{"negative", records.SumQuery{UserID: "u1", CategoryID: food.ID, From: core.NewDate(2025, 1, 1), Sign: records.Negative}, "-19.5"},
		{"other user", records.SumQuery{UserID: "u2", CategoryID: food.ID, From: core.NewDate(2025, 1, 1)}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SumTransactions(ctx, tt.q)
			if err != nil {
				t.Fatalf("sum: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("sum = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFindBudgetsMatchModes(t *testing.T) {
	ctx := context.Background()
	s := New()
	food := mustCategory(t, s, "u1", "Food", core.Expense)
	rent := mustCategory(t, s, "u1", "Rent", core.Expense)

	for _, b := range []core.Budget{
		{UserID: "u1", Category: food, Month: core.NewDate(2025, 4, 1), Amount: decimal.NewFromInt(60)},
		{UserID: "u1", Category: food, Month: core.NewDate(2025, 3, 1), Amount: decimal.NewFromInt(50)},
		{UserID: "u1", Category: food, Month: core.NewDate(2025, 2, 1), Amount: decimal.NewFromInt(40)},
		{UserID: "u1", Category: rent, Month: core.NewDate(2025, 3, 1), Amount: decimal.NewFromInt(900)},
	} {
		if _, err := s.CreateBudget(ctx, b); err != nil {
			t.Fatalf("create budget: %v", err)
		}
	}

	exact, _ := s.FindBudgets(ctx, records.BudgetQuery{UserID: "u1", CategoryID: food.ID, Month: core.NewDate(2025, 3, 1)})
	if len(exact) != 1 || !exact[0].Amount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("exact match: %+v", exact)
	}
	if exact[0].Category.Name != "Food" {
		t.Fatalf("category not populated: %+v", exact[0].Category)
	}

	floor, _ := s.FindBudgets(ctx, records.BudgetQuery{UserID: "u1", CategoryID: food.ID, Month: core.NewDate(2025, 3, 1), Match: records.MonthFloor})
	if len(floor) != 2 || !floor[0].Month.Equal(core.NewDate(2025, 3, 1).Time) {
		t.Fatalf("floor match: %+v", floor)
	}

	all, _ := s.FindBudgets(ctx, records.BudgetQuery{UserID: "u1", Month: core.NewDate(2025, 3, 1), Match: records.MonthFloor})
	if len(all) != 3 {
		t.Fatalf("expected 3 budgets across categories, got %d", len(all))
	}

	_, err := s.CreateBudget(ctx, core.Budget{UserID: "u1", Category: food, Month: core.NewDate(2025, 3, 1), Amount: decimal.NewFromInt(1)})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDeleteCategoryCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	food := mustCategory(t, s, "u1", "Food", core.Expense)
	keep := mustCategory(t, s, "u1", "Salary", core.Income)

	mustTx(t, s, "u1", food, "-5", core.NewDate(2025, 3, 1))
	kept := mustTx(t, s, "u1", keep, "100", core.NewDate(2025, 3, 1))
	if _, err := s.CreateBudget(ctx, core.Budget{UserID: "u1", Category: food, Month: core.NewDate(2025, 3, 1), Amount: decimal.NewFromInt(5)}); err != nil {
		t.Fatal(err)
	}
	g, err := s.CreateGoal(ctx, core.Goal{
		UserID: "u1", Name: "Eat less", Amount: decimal.NewFromInt(10),
		GoalType: core.Spend, TargetDate: core.NewDate(2025, 3, 31), CategoryID: food.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteCategory(ctx, "u1", food.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	txs, _ := s.FindTransactions(ctx, "u1", core.NewDate(2025, 1, 1))
	if len(txs) != 1 || txs[0].ID != kept.ID {
		t.Fatalf("transactions not cascaded: %+v", txs)
	}
	budgets, _ := s.FindBudgets(ctx, records.BudgetQuery{UserID: "u1", Month: core.NewDate(2025, 1, 1), Match: records.MonthFloor})
	if len(budgets) != 0 {
		t.Fatalf("budgets not cascaded: %+v", budgets)
	}
	goals, _ := s.ListGoals(ctx, "u1")
	if len(goals) != 1 || goals[0].ID != g.ID || goals[0].HasCategory() {
		t.Fatalf("goal not unbound: %+v", goals)
	}
	if err := s.DeleteCategory(ctx, "u1", food.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGoalsLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	food := mustCategory(t, s, "u1", "Food", core.Expense)

	g, err := s.CreateGoal(ctx, core.Goal{
		UserID: "u1", Name: "Cap", Amount: decimal.NewFromInt(10),
		GoalType: core.Spend, TargetDate: core.NewDate(2025, 3, 31), CategoryID: food.ID,
	})
	if err != nil || !g.IsActive {
		t.Fatalf("create goal: %+v %v", g, err)
	}
	if _, err := s.CreateGoal(ctx, core.Goal{
		UserID: "u1", Name: "Loose", Amount: decimal.NewFromInt(10),
		GoalType: core.Save, TargetDate: core.NewDate(2025, 3, 31),
	}); err != nil {
		t.Fatal(err)
	}

	active, _ := s.FindActiveGoals(ctx, "u1", food.ID)
	if len(active) != 1 || active[0].ID != g.ID {
		t.Fatalf("active goals: %+v", active)
	}

	g.IsActive = false
	if err := s.SaveGoal(ctx, g); err != nil {
		t.Fatal(err)
	}
	active, _ = s.FindActiveGoals(ctx, "u1", food.ID)
	if len(active) != 0 {
		t.Fatalf("goal still active: %+v", active)
	}

	if err := s.SaveGoal(ctx, core.Goal{ID: "missing", UserID: "u1"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateTransactionBumpsVersion(t *testing.T) {
	ctx := context.Background()
	s := New()
	food := mustCategory(t, s, "u1", "Food", core.Expense)
	tx := mustTx(t, s, "u1", food, "-5", core.NewDate(2025, 3, 1))
	if tx.Version != 1 {
		t.Fatalf("version = %d", tx.Version)
	}

	tx.Amount = decimal.RequireFromString("-6.25")
	updated, err := s.UpdateTransaction(ctx, tx)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Version != 2 || !updated.Amount.Equal(decimal.RequireFromString("-6.25")) {
		t.Fatalf("unexpected update: %+v", updated)
	}

	tx.UserID = "u2"
	if _, err := s.UpdateTransaction(ctx, tx); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}
}

func TestNotifications(t *testing.T) {
	ctx := context.Background()
	s := New()
	first, _ := s.CreateNotification(ctx, "u1", "one")
	if _, err := s.CreateNotification(ctx, "u1", "two"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateNotification(ctx, "u2", "other"); err != nil {
		t.Fatal(err)
	}

	list, _ := s.ListNotifications(ctx, "u1")
	if len(list) != 2 || list[0].Message != "two" || list[1].IsRead {
		t.Fatalf("unexpected list: %+v", list)
	}
	if err := s.MarkNotificationRead(ctx, "u1", first.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkNotificationRead(ctx, "u2", first.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	list, _ = s.ListNotifications(ctx, "u1")
	if !list[1].IsRead {
		t.Fatalf("notification not marked read: %+v", list[1])
	}
}
