package db

import (
	"database/sql"
	"fmt"
	"log"
	"net/url"

	"github.com/lib/pq"
	"gopkg.in/gorp.v2"

	"github.com/notekeep/notekeep-backend/models"
)

// SQLDatabase is a Database interface backed by postgresql.
type SQLDatabase struct {
	cfg  Config // Configuration to define the DB connection.
	conn *gorp.DbMap
}

func getConnectionString(cfg Config) string {
	connectionString := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		url.PathEscape(cfg.DbUsername),
		url.PathEscape(cfg.DbPass),
		url.PathEscape(cfg.DbHost),
		url.PathEscape(cfg.DbName))
	return connectionString
}

// InitSQLDatabase creates a DB connection based on information in a Config, and
// returns a pointer to the resulting SQLDatabase object. If connection fails,
// returns an error.
func InitSQLDatabase(cfg Config) (*SQLDatabase, error) {
	connectionString := getConnectionString(cfg)
	log.Printf("Connecting to Postgres DB ... \n")
	conn, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, err
	}
	dbmap := &gorp.DbMap{Db: conn, Dialect: gorp.PostgresDialect{}}
	dbmap.AddTableWithName(models.Subscription{}, "push_subscriptions").SetKeys(true, "ID")
	return &SQLDatabase{cfg: cfg, conn: dbmap}, nil
}

// SUBSCRIPTION DB FUNCTIONS

const upsertSubscriptionQuery = `
INSERT INTO push_subscriptions(owner_id, endpoint, p256dh_key, auth_key, active)
    VALUES($1, $2, $3, $4, TRUE)
    ON CONFLICT (endpoint) DO UPDATE
        SET owner_id=EXCLUDED.owner_id, p256dh_key=EXCLUDED.p256dh_key,
            auth_key=EXCLUDED.auth_key, active=TRUE
    RETURNING id, created_at
`

// PutSubscription upserts a browser push registration, keyed by the
// endpoint's unique constraint. A repeated subscribe for the same
// endpoint updates the keys in place and reactivates the row rather
// than creating a duplicate.
func (db *SQLDatabase) PutSubscription(sub models.Subscription) (models.Subscription, error) {
	if err := sub.Validate(); err != nil {
		return models.Subscription{}, err
	}
	err := db.conn.Db.QueryRow(upsertSubscriptionQuery,
		sub.OwnerID, sub.Endpoint, sub.P256dhKey, sub.AuthKey).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return models.Subscription{}, err
	}
	sub.Active = true
	return sub, nil
}

// ActiveSubscriptions retrieves every subscription with active = TRUE,
// ordered by id so one call sees a stable sequence. ownerID 0 means
// all owners.
func (db SQLDatabase) ActiveSubscriptions(ownerID int64) ([]models.Subscription, error) {
	subPtrs := []*models.Subscription{}
	var err error
	if ownerID == 0 {
		_, err = db.conn.Select(&subPtrs,
			"SELECT * FROM push_subscriptions WHERE active=TRUE ORDER BY id")
	} else {
		_, err = db.conn.Select(&subPtrs,
			"SELECT * FROM push_subscriptions WHERE active=TRUE AND owner_id=$1 ORDER BY id", ownerID)
	}
	subs := []models.Subscription{}
	for _, sub := range subPtrs {
		subs = append(subs, *sub)
	}
	return subs, err
}

// QuarantineSubscriptions flips active to FALSE for the given ids in a
// single set-based update, so two overlapping batches can both apply
// their quarantine without corrupting the flags. Unknown ids are
// skipped.
func (db *SQLDatabase) QuarantineSubscriptions(ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := db.conn.Exec(
		"UPDATE push_subscriptions SET active=FALSE WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CONTENT DB FUNCTIONS

// AnnounceableContent retrieves the id and summary of every note that
// has a summary to announce. The notes table is owned by the wider
// application; this is a read-only view into it.
func (db SQLDatabase) AnnounceableContent() ([]models.ContentItem, error) {
	itemPtrs := []*models.ContentItem{}
	_, err := db.conn.Select(&itemPtrs,
		"SELECT id, ai_summary AS summary FROM notes WHERE ai_summary IS NOT NULL AND ai_summary <> '' ORDER BY id")
	items := []models.ContentItem{}
	for _, item := range itemPtrs {
		items = append(items, *item)
	}
	return items, err
}

func tryExec(database SQLDatabase, commands []string) error {
	for _, command := range commands {
		if _, err := database.conn.Exec(command); err != nil {
			return fmt.Errorf("command failed: %s\nwith error: %v",
				command, err.Error())
		}
	}
	return nil
}

// ClearTables nukes the subscription table. ** Should only be used during testing **
func (db SQLDatabase) ClearTables() error {
	return tryExec(db, []string{
		"DELETE FROM push_subscriptions",
		"ALTER SEQUENCE push_subscriptions_id_seq RESTART WITH 1",
	})
}
