package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	raven "github.com/getsentry/raven-go"

	"github.com/notekeep/notekeep-backend/db"
	"github.com/notekeep/notekeep-backend/models"
)

////////////////////////////////
//  *****   REST API   *****  //
////////////////////////////////

// Dispatcher interface wraps the batch dispatcher used by the ad-hoc
// test-send endpoint.
type Dispatcher interface {
	SendToOwner(ctx context.Context, ownerID int64, msg models.Message) (int, int, error)
}

// API is the HTTP surface of the push subsystem.
// All requests respond with a response JSON, with fields:
// {
//     status_code // HTTP status code of request
//     message // Any error message accompanying the status_code. If 200, empty.
//     response // Response data (as JSON) from this request.
// }
// Any POST request accepts either URL query parameters or data value parameters,
// and prefers the latter if both are present.
type API struct {
	Database       db.Database
	Dispatcher     Dispatcher
	VAPIDPublicKey string
}

type response struct {
	StatusCode int         `json:"status_code"`
	Message    string      `json:"message"`
	Response   interface{} `json:"response"`
}

type apiHandler func(r *http.Request) response

func (api *API) wrapper(handler apiHandler) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		response := handler(r)
		if response.StatusCode == http.StatusInternalServerError {
			packet := raven.NewPacket(response.Message, raven.NewHttp(r))
			raven.Capture(packet, nil)
		}
		writeJSON(w, response)
	}
}

func pingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
}

// RegisterHandlers binds API functions to the given http server,
// and returns the resulting handler.
func (api *API) RegisterHandlers(mux *http.ServeMux) http.Handler {
	mux.Handle("/api/push/subscribe",
		throttleHandler(time.Hour, 20, http.HandlerFunc(api.wrapper(api.Subscribe))))
	mux.HandleFunc("/api/push/test", api.wrapper(api.TestSend))
	mux.HandleFunc("/api/push/vapid-public-key", api.wrapper(api.PublicKey))
	mux.HandleFunc("/api/ping", pingHandler)
	return middleware(mux)
}

// Subscribe is the handler for /api/push/subscribe
//   POST /api/push/subscribe?owner_id=<id>&endpoint=<url>&p256dh=<key>&auth=<secret>
// Registers (or re-registers) a browser push subscription. Re-submitting
// an endpoint rotates its keys and reactivates it.
func (api API) Subscribe(r *http.Request) response {
	if r.Method != http.MethodPost {
		return response{StatusCode: http.StatusMethodNotAllowed,
			Message: "/api/push/subscribe only accepts POST requests"}
	}
	ownerID, err := getOwnerID(r)
	if err != nil {
		return response{StatusCode: http.StatusBadRequest, Message: err.Error()}
	}
	sub, err := api.Database.PutSubscription(models.Subscription{
		OwnerID:   ownerID,
		Endpoint:  r.FormValue("endpoint"),
		P256dhKey: r.FormValue("p256dh"),
		AuthKey:   r.FormValue("auth"),
	})
	if err != nil {
		if _, ok := err.(models.ValidationError); ok {
			return response{StatusCode: http.StatusBadRequest, Message: err.Error()}
		}
		return response{StatusCode: http.StatusInternalServerError,
			Message: "Could not store subscription"}
	}
	return response{StatusCode: http.StatusOK, Response: sub}
}

// TestSend is the handler for /api/push/test
//   POST /api/push/test?owner_id=<id>&title=<title>&body=<body>
// Sends an ad-hoc notification to every active subscription of one
// owner, so users can check that push works on their device.
func (api API) TestSend(r *http.Request) response {
	if r.Method != http.MethodPost {
		return response{StatusCode: http.StatusMethodNotAllowed,
			Message: "/api/push/test only accepts POST requests"}
	}
	ownerID, err := getOwnerID(r)
	if err != nil {
		return response{StatusCode: http.StatusBadRequest, Message: err.Error()}
	}
	msg := models.Message{
		Title: r.FormValue("title"),
		Body:  r.FormValue("body"),
		Data:  map[string]interface{}{"action": "test"},
	}
	if len(msg.Title) == 0 {
		msg.Title = "🔔 Test Notification"
	}
	if len(msg.Body) == 0 {
		msg.Body = "Push notifications are working!"
	}
	sent, failed, err := api.Dispatcher.SendToOwner(r.Context(), ownerID, msg)
	if err != nil {
		return response{StatusCode: http.StatusInternalServerError, Message: err.Error()}
	}
	return response{StatusCode: http.StatusOK,
		Response: map[string]int{"sent": sent, "failed": failed}}
}

// PublicKey is the handler for /api/push/vapid-public-key
//   GET /api/push/vapid-public-key
// Returns the VAPID public key browsers need to create a subscription.
func (api API) PublicKey(r *http.Request) response {
	return response{StatusCode: http.StatusOK,
		Response: map[string]string{"public_key": api.VAPIDPublicKey}}
}

func getOwnerID(r *http.Request) (int64, error) {
	param := r.FormValue("owner_id")
	if len(param) == 0 {
		return 0, fmt.Errorf("query parameter owner_id not specified")
	}
	ownerID, err := strconv.ParseInt(param, 10, 64)
	if err != nil || ownerID <= 0 {
		return 0, fmt.Errorf("query parameter owner_id must be a positive integer")
	}
	return ownerID, nil
}

func writeJSON(w http.ResponseWriter, v response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		msg := fmt.Sprintf("Internal error: could not format JSON. (%s)\n", err)
		http.Error(w, msg, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(v.StatusCode)
	fmt.Fprintf(w, "%s\n", b)
}
