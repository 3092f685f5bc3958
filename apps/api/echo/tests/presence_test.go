package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/core/presence"
	testutil "github.com/darasahq/darasa/tests"
)

func Test_presenceApi_snapshotAndHeartbeat(t *testing.T) {
	env := setup(t)
	alice := testutil.CreateUser(t, env.usrRepo, "Alice", "alicek", "alice@test.cd", "s3cr3t", nil, true)
	token := getToken(t, env.conf, alice)

	// empty snapshot to begin with
	req, rec := newAuthRequest(http.MethodGet, "/v1/presence", token)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	// heartbeat marks the caller online
	req, rec = newAuthRequest(http.MethodPost, "/v1/presence/heartbeat", token)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/v1/presence", token)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var records []presence.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, alice.ID, records[0].UserID)
	assert.True(t, records[0].Online)
	assert.WithinDuration(t, time.Now(), records[0].LastSeen, time.Minute)

	// single record fetch
	req, rec = newAuthRequest(http.MethodGet, "/v1/presence/"+alice.ID, token)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var rec1 presence.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rec1))
	assert.Equal(t, alice.ID, rec1.UserID)

	// unknown user
	req, rec = newAuthRequest(http.MethodGet, "/v1/presence/nope", token)
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// auth required throughout
	req, rec = newRequest(http.MethodGet, "/v1/presence")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_presenceApi_feedDelivery(t *testing.T) {
	env := setup(t)
	alice := testutil.CreateUser(t, env.usrRepo, "Alice", "alicek", "alice@test.cd", "s3cr3t", nil, true)

	// the REST write reaches feed subscribers; the websocket endpoint streams
	// from the same subscription
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed, ok := env.presRepo.(presence.Feed)
	require.True(t, ok, "dummy presence repository should expose its feed")
	updates, err := feed.Subscribe(ctx)
	require.NoError(t, err)

	req, rec := newAuthRequest(http.MethodPost, "/v1/presence/heartbeat", getToken(t, env.conf, alice))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	select {
	case update := <-updates:
		assert.Equal(t, alice.ID, update.UserID)
		assert.True(t, update.Online)
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat never reached the feed")
	}
}
