package db

import (
	"sort"
	"sync"
	"time"

	"github.com/notekeep/notekeep-backend/models"
)

// Straw-man in-memory database (for testing!). Guarded by a mutex since
// concurrent batches may quarantine overlapping subscription sets.
type MemDatabase struct {
	mu            sync.Mutex
	cfg           Config
	nextID        int64
	subscriptions map[string]models.Subscription // keyed by endpoint
	content       []models.ContentItem
}

func InitMemDatabase(cfg Config) *MemDatabase {
	return &MemDatabase{
		cfg:           cfg,
		nextID:        1,
		subscriptions: make(map[string]models.Subscription),
	}
}

func (db *MemDatabase) PutSubscription(sub models.Subscription) (models.Subscription, error) {
	if err := sub.Validate(); err != nil {
		return models.Subscription{}, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if existing, ok := db.subscriptions[sub.Endpoint]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.ID = db.nextID
		db.nextID++
		sub.CreatedAt = time.Now()
	}
	sub.Active = true
	db.subscriptions[sub.Endpoint] = sub
	return sub, nil
}

func (db *MemDatabase) ActiveSubscriptions(ownerID int64) ([]models.Subscription, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	subs := []models.Subscription{}
	for _, sub := range db.subscriptions {
		if !sub.Active {
			continue
		}
		if ownerID != 0 && sub.OwnerID != ownerID {
			continue
		}
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (db *MemDatabase) QuarantineSubscriptions(ids []int64) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	quarantined := map[int64]bool{}
	for _, id := range ids {
		quarantined[id] = true
	}
	var count int64
	for endpoint, sub := range db.subscriptions {
		if quarantined[sub.ID] && sub.Active {
			sub.Active = false
			db.subscriptions[endpoint] = sub
			count++
		}
	}
	return count, nil
}

// PutContent registers a content item for the scheduler to announce.
func (db *MemDatabase) PutContent(item models.ContentItem) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.content = append(db.content, item)
}

func (db *MemDatabase) AnnounceableContent() ([]models.ContentItem, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	items := []models.ContentItem{}
	for _, item := range db.content {
		if len(item.Summary) > 0 {
			items = append(items, item)
		}
	}
	return items, nil
}

func (db *MemDatabase) ClearTables() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.subscriptions = make(map[string]models.Subscription)
	db.content = nil
	db.nextID = 1
	return nil
}
