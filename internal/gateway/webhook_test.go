package gateway

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedHeaders() http.Header {
	h := http.Header{}
	h.Set(HeaderAuthAlgo, "SHA256withRSA")
	h.Set(HeaderCertURL, "https://api.sandbox.paypal.com/v1/notifications/certs/CERT-1")
	h.Set(HeaderTransmissionID, "tx-1")
	h.Set(HeaderTransmissionSig, "sig")
	h.Set(HeaderTransmissionTime, "2026-01-01T00:00:00Z")
	return h
}

const sampleEvent = `{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"C-1"}}`

func TestVerifyBypassWithoutWebhookID(t *testing.T) {
	f, srv := newFakePayPal(t)
	c := newTestClient(srv, "")

	ok, err := c.VerifyWebhookSignature(context.Background(), http.Header{}, []byte("not even json"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, f.tokenCalls.Load())
}

func TestVerifyMissingHeaderFailsClosed(t *testing.T) {
	headers := []string{HeaderAuthAlgo, HeaderCertURL, HeaderTransmissionID, HeaderTransmissionSig, HeaderTransmissionTime}
	for _, missing := range headers {
		f, srv := newFakePayPal(t)
		c := newTestClient(srv, "WH-ID")

		h := signedHeaders()
		h.Del(missing)
		ok, err := c.VerifyWebhookSignature(context.Background(), h, []byte(sampleEvent))
		require.NoError(t, err)
		assert.False(t, ok, "missing %s", missing)
		assert.Zero(t, f.tokenCalls.Load())
	}
}

func TestVerifyDelegatesToGateway(t *testing.T) {
	f, srv := newFakePayPal(t)
	c := newTestClient(srv, "WH-ID")

	ok, err := c.VerifyWebhookSignature(context.Background(), signedHeaders(), []byte(sampleEvent))
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "WH-ID", f.lastVerify["webhook_id"])
	assert.Equal(t, "tx-1", f.lastVerify["transmission_id"])
	assert.Equal(t, "SHA256withRSA", f.lastVerify["auth_algo"])
	event, isMap := f.lastVerify["webhook_event"].(map[string]any)
	require.True(t, isMap)
	assert.Equal(t, "WH-1", event["id"])
}

func TestVerifyRejectedByGateway(t *testing.T) {
	f, srv := newFakePayPal(t)
	f.verifyState = "FAILURE"
	c := newTestClient(srv, "WH-ID")

	ok, err := c.VerifyWebhookSignature(context.Background(), signedHeaders(), []byte(sampleEvent))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyInvalidBody(t *testing.T) {
	_, srv := newFakePayPal(t)
	c := newTestClient(srv, "WH-ID")

	ok, err := c.VerifyWebhookSignature(context.Background(), signedHeaders(), []byte("{broken"))
	require.NoError(t, err)
	assert.False(t, ok)
}
