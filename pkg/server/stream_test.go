package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/solarflow/solarflow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleStream(t *testing.T) {
	s, _, f := newTestServer(t)
	ts := httptest.NewServer(s.setupHandler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/buildings/b1/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool { return f.SubscriberCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	p, err := f.Tick(context.Background(), "b1", testStart)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got types.EnergyDataPoint
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "b1", got.BuildingID)

	// closing the client releases the subscription
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return f.SubscriberCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHandleStreamRejectsOrigin(t *testing.T) {
	s, _, f := newTestServer(t)
	ts := httptest.NewServer(s.setupHandler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/buildings/b1/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, f.SubscriberCount())
}
