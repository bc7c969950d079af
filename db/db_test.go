package db

import (
	"testing"

	"github.com/notekeep/notekeep-backend/models"
)

func testDatabase() *MemDatabase {
	cfg, _ := LoadEnvironmentVariables()
	return InitMemDatabase(cfg)
}

func subscription(owner int64, endpoint string) models.Subscription {
	return models.Subscription{
		OwnerID:   owner,
		Endpoint:  endpoint,
		P256dhKey: "BPublicKey",
		AuthKey:   "AuthSecret",
	}
}

func TestPutSubscriptionValidates(t *testing.T) {
	database := testDatabase()
	_, err := database.PutSubscription(models.Subscription{OwnerID: 1})
	if _, ok := err.(models.ValidationError); !ok {
		t.Errorf("Expected ValidationError for empty endpoint, got %v", err)
	}
	_, err = database.PutSubscription(models.Subscription{
		OwnerID: 1, Endpoint: "https://push.example.com/a",
	})
	if _, ok := err.(models.ValidationError); !ok {
		t.Errorf("Expected ValidationError for missing keys, got %v", err)
	}
}

// Repeated upserts for the same endpoint must never create a second row;
// they rotate the keys and reset the active flag.
func TestPutSubscriptionIsIdempotent(t *testing.T) {
	database := testDatabase()
	first, err := database.PutSubscription(subscription(1, "https://push.example.com/a"))
	if err != nil {
		t.Fatal(err)
	}

	rotated := subscription(1, "https://push.example.com/a")
	rotated.P256dhKey = "BRotatedKey"
	second, err := database.PutSubscription(rotated)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Errorf("Re-subscribe created a new row: id %d vs %d", second.ID, first.ID)
	}

	subs, err := database.ActiveSubscriptions(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 {
		t.Fatalf("Expected 1 subscription after re-subscribe, got %d", len(subs))
	}
	if subs[0].P256dhKey != "BRotatedKey" {
		t.Errorf("Re-subscribe should rotate keys, got %s", subs[0].P256dhKey)
	}
}

func TestResubscribeReactivates(t *testing.T) {
	database := testDatabase()
	sub, _ := database.PutSubscription(subscription(1, "https://push.example.com/a"))
	if _, err := database.QuarantineSubscriptions([]int64{sub.ID}); err != nil {
		t.Fatal(err)
	}
	if _, err := database.PutSubscription(subscription(1, "https://push.example.com/a")); err != nil {
		t.Fatal(err)
	}
	subs, _ := database.ActiveSubscriptions(1)
	if len(subs) != 1 {
		t.Errorf("Re-subscribe should reactivate a quarantined endpoint, got %d active", len(subs))
	}
}

func TestQuarantineExcludesFromActive(t *testing.T) {
	database := testDatabase()
	kept, _ := database.PutSubscription(subscription(1, "https://push.example.com/a"))
	gone, _ := database.PutSubscription(subscription(1, "https://push.example.com/b"))

	count, err := database.QuarantineSubscriptions([]int64{gone.ID})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 row quarantined, got %d", count)
	}

	subs, _ := database.ActiveSubscriptions(0)
	if len(subs) != 1 || subs[0].ID != kept.ID {
		t.Errorf("Active subscriptions should only contain %d, got %v", kept.ID, subs)
	}

	// Quarantining again, or quarantining unknown ids, is a no-op.
	count, err = database.QuarantineSubscriptions([]int64{gone.ID, 9999})
	if err != nil {
		t.Errorf("Repeated quarantine should succeed, got %v", err)
	}
	if count != 0 {
		t.Errorf("Repeated quarantine should update 0 rows, got %d", count)
	}
}

func TestActiveSubscriptionsFiltersByOwner(t *testing.T) {
	database := testDatabase()
	database.PutSubscription(subscription(1, "https://push.example.com/a"))
	database.PutSubscription(subscription(2, "https://push.example.com/b"))

	all, _ := database.ActiveSubscriptions(0)
	if len(all) != 2 {
		t.Errorf("Expected 2 subscriptions across all owners, got %d", len(all))
	}
	owned, _ := database.ActiveSubscriptions(2)
	if len(owned) != 1 || owned[0].OwnerID != 2 {
		t.Errorf("Expected only owner 2's subscription, got %v", owned)
	}
}

func TestAnnounceableContentSkipsEmptySummaries(t *testing.T) {
	database := testDatabase()
	database.PutContent(models.ContentItem{ID: 1, Summary: "first"})
	database.PutContent(models.ContentItem{ID: 2})
	database.PutContent(models.ContentItem{ID: 3, Summary: "third"})

	items, err := database.AnnounceableContent()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("Expected 2 announceable items, got %d", len(items))
	}
}
