package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"cratecore/pkg/domain"
)

func seedCrate(t *testing.T, store *Store, id, owner string) Crate {
	t.Helper()
	var created Crate
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		created, err = tx.CreateCrate(Crate{CrateID: id, OwnerID: owner, Status: domain.StatusAvailable})
		return err
	})
	if err != nil {
		t.Fatalf("seed crate %s: %v", id, err)
	}
	return created
}

func TestCreateCrateStampsTimestamps(t *testing.T) {
	store := NewStore(nil)
	fixed := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })

	created := seedCrate(t, store, "CRT-1", "owner-1")
	if !created.CreatedAt.Equal(fixed) || !created.LastUpdate.Equal(fixed) {
		t.Fatalf("expected stamped timestamps, got %v / %v", created.CreatedAt, created.LastUpdate)
	}
}

func TestCreateCrateRejectsDuplicates(t *testing.T) {
	store := NewStore(nil)
	seedCrate(t, store, "CRT-1", "owner-1")

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateCrate(Crate{CrateID: "CRT-1", OwnerID: "owner-2"})
		return err
	})
	if !domain.IsDuplicateID(err) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
	if got := len(store.ListCrates()); got != 1 {
		t.Fatalf("duplicate create must not add state, got %d crates", got)
	}
}

func TestCreateCrateRequiresID(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateCrate(Crate{OwnerID: "owner-1"})
		return err
	})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateCrateRecordsBeforeAndAfter(t *testing.T) {
	store := NewStore(nil)
	seedCrate(t, store, "CRT-1", "owner-1")

	var captured []Change
	engine := domain.NewRulesEngine()
	engine.Register(captureRule{changes: &captured})
	store.engine = engine

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateCrate("CRT-1", func(c *Crate) error {
			c.Status = domain.StatusDelivered
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(captured) != 1 {
		t.Fatalf("expected one change, got %d", len(captured))
	}
	before, ok := domain.DecodeChangePayload[Crate](captured[0].Before)
	if !ok || before.Status != domain.StatusAvailable {
		t.Fatalf("unexpected before payload: %+v", before)
	}
	after, ok := domain.DecodeChangePayload[Crate](captured[0].After)
	if !ok || after.Status != domain.StatusDelivered {
		t.Fatalf("unexpected after payload: %+v", after)
	}
}

type captureRule struct {
	changes *[]Change
}

func (captureRule) Name() string { return "capture" }

func (r captureRule) Evaluate(_ context.Context, _ TransactionView, changes []Change) (Result, error) {
	*r.changes = append(*r.changes, changes...)
	return Result{}, nil
}

func TestUpdateCrateStampsLastUpdate(t *testing.T) {
	store := NewStore(nil)
	seedCrate(t, store, "CRT-1", "owner-1")

	later := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return later })

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateCrate("CRT-1", func(c *Crate) error {
			c.Temperature = "4.5"
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	crate, _ := store.GetCrate("CRT-1")
	if !crate.LastUpdate.Equal(later) {
		t.Fatalf("expected stamped last update, got %v", crate.LastUpdate)
	}
}

func TestUpdateCrateMissing(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateCrate("CRT-404", func(c *Crate) error { return nil })
		return err
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMutatorErrorAbortsTransaction(t *testing.T) {
	store := NewStore(nil)
	seedCrate(t, store, "CRT-1", "owner-1")

	boom := fmt.Errorf("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateCrate("CRT-1", func(c *Crate) error {
			c.Status = domain.StatusDelivered
			return boom
		})
		return err
	})
	if err == nil {
		t.Fatalf("expected mutator error to surface")
	}
	crate, _ := store.GetCrate("CRT-1")
	if crate.Status != domain.StatusAvailable {
		t.Fatalf("aborted transaction must not mutate state, got %s", crate.Status)
	}
}

func TestDeleteCrate(t *testing.T) {
	store := NewStore(nil)
	seedCrate(t, store, "CRT-1", "owner-1")

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		return tx.DeleteCrate("CRT-1")
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.GetCrate("CRT-1"); ok {
		t.Fatalf("crate must be gone")
	}

	_, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		return tx.DeleteCrate("CRT-1")
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestCloneIsolation(t *testing.T) {
	store := NewStore(nil)
	prev := domain.StatusAvailable
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateCrate(Crate{
			CrateID:        "CRT-1",
			OwnerID:        "owner-1",
			Status:         domain.StatusFlagged,
			PreviousStatus: &prev,
			FlagDetails:    &domain.FlagDetails{Reason: "damage"},
		})
		return err
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	crate, _ := store.GetCrate("CRT-1")
	*crate.PreviousStatus = domain.StatusDelivered
	crate.FlagDetails.Reason = "mutated"

	fresh, _ := store.GetCrate("CRT-1")
	if *fresh.PreviousStatus != domain.StatusAvailable || fresh.FlagDetails.Reason != "damage" {
		t.Fatalf("stored state mutated through returned pointers: %+v", fresh)
	}
}

func TestListCratesSorted(t *testing.T) {
	store := NewStore(nil)
	seedCrate(t, store, "CRT-2", "owner-1")
	seedCrate(t, store, "CRT-1", "owner-1")
	seedCrate(t, store, "CRT-3", "owner-1")

	crates := store.ListCrates()
	if len(crates) != 3 {
		t.Fatalf("expected 3 crates, got %d", len(crates))
	}
	for i, want := range []string{"CRT-1", "CRT-2", "CRT-3"} {
		if crates[i].CrateID != want {
			t.Fatalf("expected %s at index %d, got %s", want, i, crates[i].CrateID)
		}
	}
}

func TestActivitiesNewestFirstWithLimit(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := store.AppendActivity(ctx, Activity{Message: fmt.Sprintf("event %d", i)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := store.ListActivities(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 5 || all[0].Message != "event 4" || all[4].Message != "event 0" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	limited, _ := store.ListActivities(ctx, 2)
	if len(limited) != 2 || limited[0].Message != "event 4" {
		t.Fatalf("expected limited window, got %+v", limited)
	}
}

func TestAppendActivityAssignsIDAndTime(t *testing.T) {
	store := NewStore(nil)
	stored, err := store.AppendActivity(context.Background(), Activity{Message: "x"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if stored.ID == "" || stored.Time.IsZero() {
		t.Fatalf("expected assigned id and time, got %+v", stored)
	}
}

func TestNotificationsLifecycle(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	created, err := store.CreateNotification(ctx, Notification{Message: "hello", Read: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Read {
		t.Fatalf("notifications start unread regardless of input")
	}

	marked, err := store.MarkNotificationRead(ctx, created.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !marked.Read {
		t.Fatalf("expected read marker")
	}

	if _, err := store.MarkNotificationRead(ctx, "missing"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	store := NewStore(nil)
	seedCrate(t, store, "CRT-1", "owner-1")
	if _, err := store.AppendActivity(context.Background(), Activity{Message: "one"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.CreateNotification(context.Background(), Notification{Message: "two"}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	snapshot := store.ExportState()
	restored := NewStore(nil)
	restored.ImportState(snapshot)

	if _, ok := restored.GetCrate("CRT-1"); !ok {
		t.Fatalf("crate missing after import")
	}
	activities, _ := restored.ListActivities(context.Background(), 0)
	notifications, _ := restored.ListNotifications(context.Background(), 0)
	if len(activities) != 1 || len(notifications) != 1 {
		t.Fatalf("side collections missing after import: %d / %d", len(activities), len(notifications))
	}
}

func TestViewSeesSnapshot(t *testing.T) {
	store := NewStore(nil)
	seedCrate(t, store, "CRT-1", "owner-1")

	err := store.View(context.Background(), func(view TransactionView) error {
		if _, ok := view.FindCrate("CRT-1"); !ok {
			t.Fatalf("expected crate in view")
		}
		if got := len(view.ListCrates()); got != 1 {
			t.Fatalf("expected 1 crate in view, got %d", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
