package apns_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chargewatch/chargewatch/internal/push"
	"github.com/chargewatch/chargewatch/internal/push/apns"
)

func testSigningKey(t *testing.T) []byte {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
}

func testClient(t *testing.T, host string) *apns.Client {
	t.Helper()

	token, err := apns.NewProviderToken(testSigningKey(t), "KEY123", "TEAM456")
	require.NoError(t, err)

	return apns.NewClient(apns.ClientConfig{
		AppID:      "com.example.chargewatch",
		Token:      token,
		Host:       host,
		HTTPClient: http.DefaultClient,
	})
}

func TestProviderToken_BearerIsCached(t *testing.T) {
	token, err := apns.NewProviderToken(testSigningKey(t), "KEY123", "TEAM456")
	require.NoError(t, err)

	first, err := token.Bearer()
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := token.Bearer()
	require.NoError(t, err)
	assert.Equal(t, first, second, "token should be reused while fresh")
}

func TestProviderToken_RejectsInvalidKey(t *testing.T) {
	_, err := apns.NewProviderToken([]byte("not a pem key"), "KEY123", "TEAM456")
	assert.Error(t, err)
}

func TestClient_SendLiveActivityUpdate(t *testing.T) {
	dismissal := time.Now().Add(5 * time.Minute)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/3/device/device-token-1", r.URL.Path)
		assert.Equal(t, "com.example.chargewatch.push-type.liveactivity", r.Header.Get("apns-topic"))
		assert.Equal(t, "liveactivity", r.Header.Get("apns-push-type"))
		assert.Equal(t, "5", r.Header.Get("apns-priority"))
		assert.Equal(t, "0", r.Header.Get("apns-expiration"))
		assert.Contains(t, r.Header.Get("authorization"), "bearer ")

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var payload map[string]map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &payload))
		aps := payload["aps"]
		assert.Equal(t, "update", aps["event"])
		assert.EqualValues(t, dismissal.Unix(), aps["dismissal-date"])
		assert.Equal(t, map[string]interface{}{"level": 25.0}, aps["content-state"])

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	err := client.SendLiveActivityUpdate(
		context.Background(),
		map[string]interface{}{"level": 25.0},
		push.EventUpdate,
		"device-token-1",
		time.Time{},
		dismissal,
	)
	require.NoError(t, err)
}

func TestClient_GoneTokenIsDeviceGone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
		json.NewEncoder(w).Encode(map[string]string{"reason": "Unregistered"})
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	err := client.SendLiveActivityUpdate(
		context.Background(), nil, push.EventEnd, "dead-token", time.Time{}, time.Now())
	assert.ErrorIs(t, err, push.ErrDeviceGone)
}

func TestClient_RejectionIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"reason": "BadDeviceToken"})
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	err := client.SendLiveActivityUpdate(
		context.Background(), nil, push.EventUpdate, "bad", time.Time{}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BadDeviceToken")
}

func TestEnvironmentHost(t *testing.T) {
	assert.Equal(t, apns.ProductionHost, apns.EnvironmentProduction.Host())
	assert.Equal(t, apns.SandboxHost, apns.EnvironmentSandbox.Host())
	assert.Equal(t, apns.SandboxHost, apns.Environment("").Host())
}
