package api

import (
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/joho/godotenv"

	"github.com/notekeep/notekeep-backend/db"
	"github.com/notekeep/notekeep-backend/models"
)

var api *API
var server *httptest.Server

// Mock dispatcher
type mockDispatcher struct {
	lastOwner int64
	lastMsg   models.Message
	sent      int
	failed    int
	err       error
}

func (d *mockDispatcher) SendToOwner(ctx context.Context, ownerID int64, msg models.Message) (int, int, error) {
	d.lastOwner = ownerID
	d.lastMsg = msg
	return d.sent, d.failed, d.err
}

var dispatcher *mockDispatcher

// Load env. vars, initialize DB hook, and test the API
func TestMain(m *testing.M) {
	godotenv.Overload(".env.test")
	cfg, _ := db.LoadEnvironmentVariables()
	dispatcher = &mockDispatcher{}
	api = &API{
		Database:       db.InitMemDatabase(cfg),
		Dispatcher:     dispatcher,
		VAPIDPublicKey: "BFakePublicKey",
	}
	mux := http.NewServeMux()
	server = httptest.NewServer(api.RegisterHandlers(mux))
	defer server.Close()
	code := m.Run()
	os.Exit(code)
}

func teardown() {
	api.Database.ClearTables()
	*dispatcher = mockDispatcher{}
}

func validSubscribeData() url.Values {
	data := url.Values{}
	data.Set("owner_id", "1")
	data.Set("endpoint", "https://push.example.com/send/abc")
	data.Set("p256dh", "BPublicKey")
	data.Set("auth", "AuthSecret")
	return data
}

func decodeResponse(t *testing.T, resp *http.Response) response {
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var decoded response
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("Could not decode response %s: %v", body, err)
	}
	return decoded
}

func TestSubscribeStoresSubscription(t *testing.T) {
	defer teardown()

	resp, err := http.PostForm(server.URL+"/api/push/subscribe", validSubscribeData())
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("POST to /api/push/subscribe failed with %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "application/json; charset=utf-8" {
		t.Errorf("Expecting JSON content-type!")
	}

	subs, err := api.Database.ActiveSubscriptions(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].Endpoint != "https://push.example.com/send/abc" {
		t.Errorf("Subscription was not stored: %v", subs)
	}
}

func TestSubscribeMissingKeysRejected(t *testing.T) {
	defer teardown()

	data := validSubscribeData()
	data.Del("p256dh")
	resp, err := http.PostForm(server.URL+"/api/push/subscribe", data)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing p256dh, got %d", resp.StatusCode)
	}

	subs, _ := api.Database.ActiveSubscriptions(1)
	if len(subs) != 0 {
		t.Errorf("Invalid subscription should not be stored")
	}
}

func TestSubscribeRequiresOwner(t *testing.T) {
	defer teardown()

	data := validSubscribeData()
	data.Del("owner_id")
	resp, _ := http.PostForm(server.URL+"/api/push/subscribe", data)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing owner_id, got %d", resp.StatusCode)
	}
}

func TestSubscribeRejectsGet(t *testing.T) {
	resp, _ := http.Get(server.URL + "/api/push/subscribe?" + validSubscribeData().Encode())
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 on GET, got %d", resp.StatusCode)
	}
}

func TestTestSendReportsCounts(t *testing.T) {
	defer teardown()

	dispatcher.sent = 2
	dispatcher.failed = 1
	data := url.Values{}
	data.Set("owner_id", "7")
	data.Set("title", "Hello")
	data.Set("body", "From a test")
	resp, err := http.PostForm(server.URL+"/api/push/test", data)
	if err != nil {
		t.Fatal(err)
	}
	decoded := decodeResponse(t, resp)
	if decoded.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d (%s)", decoded.StatusCode, decoded.Message)
	}
	if dispatcher.lastOwner != 7 {
		t.Errorf("Expected dispatch to owner 7, got %d", dispatcher.lastOwner)
	}
	if dispatcher.lastMsg.Title != "Hello" || dispatcher.lastMsg.Body != "From a test" {
		t.Errorf("Message not forwarded: %+v", dispatcher.lastMsg)
	}
	counts, _ := json.Marshal(decoded.Response)
	if !strings.Contains(string(counts), "\"sent\":2") || !strings.Contains(string(counts), "\"failed\":1") {
		t.Errorf("Response should carry the counts, got %s", counts)
	}
}

func TestTestSendSurfacesDispatchError(t *testing.T) {
	defer teardown()

	dispatcher.err = errors.New("dispatch: could not load subscriptions: connection refused")
	data := url.Values{}
	data.Set("owner_id", "7")
	resp, _ := http.PostForm(server.URL+"/api/push/test", data)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected 500 when the registry is unreachable, got %d", resp.StatusCode)
	}
}

func TestVAPIDPublicKey(t *testing.T) {
	resp, err := http.Get(server.URL + "/api/push/vapid-public-key")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := ioutil.ReadAll(resp.Body)
	if !strings.Contains(string(body), "BFakePublicKey") {
		t.Errorf("Expected the public key in the response, got %s", body)
	}
}

func TestPing(t *testing.T) {
	resp, err := http.Get(server.URL + "/api/ping")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from /api/ping, got %d", resp.StatusCode)
	}
}
