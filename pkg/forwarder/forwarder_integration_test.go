//go:build integration

package forwarder_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-alertfeed/pkg/feedclient"
	"github.com/illmade-knight/go-alertfeed/pkg/forwarder"
	"github.com/illmade-knight/go-alertfeed/pkg/helpers/emulators"
	"github.com/illmade-knight/go-alertfeed/pkg/notifier"
	"github.com/illmade-knight/go-alertfeed/pkg/sink"
	"github.com/illmade-knight/go-alertfeed/pkg/watermark"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestForwarder_EndToEnd runs two complete pipeline runs against emulated
// GCS and Pub/Sub plus an httptest feed and webhook: the first run forwards
// everything, the second sees the persisted watermark and forwards nothing.
func TestForwarder_EndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	logger := zerolog.Nop()

	const projectID = "e2e-project"
	const topicID = "alerts"
	const subID = "alerts-sub"
	const bucket = "alertfeed-state"

	// Upstream feed stub.
	feedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"body": [
			{"SN": 105, "CRT_DT": "2025/07/01 10:05:00", "MSG_CN": "second alert", "RCPTN_RGN_NM": "Busan", "EMRG_STEP_NM": "Warning", "DST_SE_NM": "Typhoon"},
			{"SN": 103, "CRT_DT": "2025/07/01 10:03:00", "MSG_CN": "first alert", "RCPTN_RGN_NM": "Seoul", "EMRG_STEP_NM": "Alert", "DST_SE_NM": "Flood"}
		]}`))
	}))
	defer feedServer.Close()

	// Ops webhook stub.
	var mu sync.Mutex
	var notifications []string
	webhookServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		notifications = append(notifications, payload["text"])
		mu.Unlock()
	}))
	defer webhookServer.Close()

	// Emulated GCS for the watermark.
	gcsClient, gcsCleanup := emulators.SetupGCSEmulator(t, ctx, emulators.GetDefaultGCSConfig(projectID, bucket))
	defer gcsCleanup()
	store, err := watermark.NewGCSStore(
		watermark.NewGCSClientAdapter(gcsClient),
		watermark.GCSStoreConfig{BucketName: bucket, ObjectName: watermark.DefaultWatermarkObjectName},
		logger,
	)
	require.NoError(t, err)

	// Emulated Pub/Sub for the sink.
	opts, psCleanup := emulators.SetupPubsubEmulator(t, ctx, emulators.GetDefaultPubsubConfig(projectID, map[string]string{topicID: subID}))
	defer psCleanup()
	psClient, err := pubsub.NewClient(ctx, projectID, opts...)
	require.NoError(t, err)
	defer psClient.Close()

	streamSink, err := sink.NewPubsubSink(psClient, &sink.PubsubSinkConfig{ProjectID: projectID, TopicID: topicID, PublishTimeout: 15 * time.Second}, logger)
	require.NoError(t, err)
	defer streamSink.Stop()

	feed, err := feedclient.NewClient(&feedclient.Config{BaseURL: feedServer.URL, ServiceKey: "e2e-key"}, logger)
	require.NoError(t, err)

	nfy := notifier.NewWebhookNotifier(&notifier.WebhookConfig{URL: webhookServer.URL}, logger)

	fwd, err := forwarder.New(store, feed, streamSink, nfy, forwarder.Config{PipelineID: "e2e"}, logger)
	require.NoError(t, err)

	// First run: both records are new.
	report := fwd.Run(ctx)
	assert.False(t, report.Aborted)
	assert.Equal(t, 2, report.Forwarded)
	assert.Equal(t, int64(105), report.NewWatermark)

	// Both records arrive on the subscription.
	received := map[int64]bool{}
	recvCtx, recvCancel := context.WithTimeout(ctx, 30*time.Second)
	err = psClient.Subscription(subID).Receive(recvCtx, func(_ context.Context, msg *pubsub.Message) {
		var rec struct {
			SN int64 `json:"SN"`
		}
		require.NoError(t, json.Unmarshal(msg.Data, &rec))
		msg.Ack()
		mu.Lock()
		received[rec.SN] = true
		done := len(received) == 2
		mu.Unlock()
		if done {
			recvCancel()
		}
	})
	recvCancel()
	require.True(t, err == nil || recvCtx.Err() != nil)
	assert.True(t, received[105])
	assert.True(t, received[103])

	// One webhook per record.
	mu.Lock()
	firstRunNotifications := len(notifications)
	mu.Unlock()
	assert.Equal(t, 2, firstRunNotifications)

	// Second run: the watermark holds, nothing is forwarded.
	report = fwd.Run(ctx)
	assert.False(t, report.Aborted)
	assert.Zero(t, report.Forwarded)
	assert.Equal(t, int64(105), report.NewWatermark)

	mu.Lock()
	lastNotification := notifications[len(notifications)-1]
	mu.Unlock()
	assert.Contains(t, lastNotification, "no new alerts")
}
