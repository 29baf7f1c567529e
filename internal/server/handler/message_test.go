package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sniperlabs/snipercore/internal/bus"
	"github.com/sniperlabs/snipercore/internal/domain"
	"github.com/sniperlabs/snipercore/internal/registry"
)

type messageFixture struct {
	reg *registry.Registry
	bus *bus.Bus
	mux *http.ServeMux
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()
	reg := registry.New(testLogger())
	b := bus.New(reg, 0, testLogger())
	h := NewMessageHandler(b, reg, testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /a2a/messages", h.Send)
	mux.HandleFunc("GET /a2a/messages/{agent_id}", h.Drain)
	return &messageFixture{reg: reg, bus: b, mux: mux}
}

func (f *messageFixture) register(t *testing.T, id, name string) {
	t.Helper()
	_, err := f.reg.Register(domain.AgentInfo{ID: id, Name: name, Role: domain.AgentRoleExternal})
	require.NoError(t, err)
}

func (f *messageFixture) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/a2a/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func TestSendMessage(t *testing.T) {
	f := newMessageFixture(t)
	f.register(t, "receiver", "receiver")

	rec := f.post(t, `{"from_agent":"sender","to_agent":"receiver","message_type":"system_status","payload":{"ping":1}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "queued", body["status"])
	assert.NotEmpty(t, body["message_id"])
	assert.Equal(t, 1, f.bus.Depth("receiver"))
}

func TestSendMessageValidation(t *testing.T) {
	f := newMessageFixture(t)
	f.register(t, "receiver", "receiver")

	for name, payload := range map[string]string{
		"malformed json": `{`,
		"missing from":   `{"to_agent":"receiver","message_type":"system_status"}`,
		"missing to":     `{"from_agent":"sender","message_type":"system_status"}`,
		"missing type":   `{"from_agent":"sender","to_agent":"receiver"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := f.post(t, payload)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSendMessageUnknownRecipient(t *testing.T) {
	f := newMessageFixture(t)

	rec := f.post(t, `{"from_agent":"sender","to_agent":"ghost","message_type":"system_status"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendMessageUnknownCorrelation(t *testing.T) {
	f := newMessageFixture(t)
	f.register(t, "receiver", "receiver")

	rec := f.post(t, `{"from_agent":"sender","to_agent":"receiver","message_type":"system_status","correlation_id":"never-seen"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendHeartbeatRefreshesLiveness(t *testing.T) {
	f := newMessageFixture(t)
	f.register(t, "agent-1", "agent-1")
	require.NoError(t, f.reg.SetStatus("agent-1", domain.AgentStatusOffline))
	f.register(t, "coordinator", "coordinator")

	rec := f.post(t, `{"from_agent":"agent-1","to_agent":"coordinator","message_type":"heartbeat"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	info, ok := f.reg.Get("agent-1")
	require.True(t, ok)
	assert.Equal(t, domain.AgentStatusOnline, info.Status)
	assert.WithinDuration(t, time.Now().UTC(), info.LastHeartbeat, 5*time.Second)
}

func drainResponse(t *testing.T, f *messageFixture, path string) []domain.A2AMessage {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Messages []domain.A2AMessage `json:"messages"`
		Count    int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, len(body.Messages), body.Count)
	return body.Messages
}

func TestDrainMessages(t *testing.T) {
	f := newMessageFixture(t)
	f.register(t, "receiver", "receiver")

	for i := 0; i < 3; i++ {
		rec := f.post(t, fmt.Sprintf(
			`{"from_agent":"sender","to_agent":"receiver","message_type":"system_status","payload":{"n":%d}}`, i))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	msgs := drainResponse(t, f, "/a2a/messages/receiver")
	assert.Len(t, msgs, 3)

	// Delivery is at most once.
	assert.Empty(t, drainResponse(t, f, "/a2a/messages/receiver"))
}

func TestDrainLimitRequeuesRemainder(t *testing.T) {
	f := newMessageFixture(t)
	f.register(t, "receiver", "receiver")

	for i := 0; i < 3; i++ {
		f.post(t, `{"from_agent":"sender","to_agent":"receiver","message_type":"system_status"}`)
	}

	first := drainResponse(t, f, "/a2a/messages/receiver?limit=2")
	assert.Len(t, first, 2)
	assert.Equal(t, 1, f.bus.Depth("receiver"))

	second := drainResponse(t, f, "/a2a/messages/receiver")
	assert.Len(t, second, 1)
}

func TestDrainKindFilterRequeuesOthers(t *testing.T) {
	f := newMessageFixture(t)
	f.register(t, "receiver", "receiver")

	f.post(t, `{"from_agent":"sender","to_agent":"receiver","message_type":"system_status"}`)
	f.post(t, `{"from_agent":"sender","to_agent":"receiver","message_type":"risk_alert"}`)
	f.post(t, `{"from_agent":"sender","to_agent":"receiver","message_type":"system_status"}`)

	alerts := drainResponse(t, f, "/a2a/messages/receiver?message_type=risk_alert")
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.MessageKindRiskAlert, alerts[0].Kind)

	rest := drainResponse(t, f, "/a2a/messages/receiver")
	assert.Len(t, rest, 2)
}
