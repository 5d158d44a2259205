package sink_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/illmade-knight/go-alertfeed/pkg/sink"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// =============================================================================
//  Test Helpers
// =============================================================================

func setupTestPubsub(t *testing.T, projectID, topicID string) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { srv.Close() })

	opts := []option.ClientOption{
		option.WithEndpoint(srv.Addr),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		option.WithoutAuthentication(),
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	_, err = client.CreateTopic(ctx, topicID)
	require.NoError(t, err)

	return client, srv
}

// =============================================================================
//  PubsubSink Test Cases
// =============================================================================

func TestPubsubSink_AppendPublishesEveryRecord(t *testing.T) {
	client, srv := setupTestPubsub(t, "test-project", "alerts")
	cfg := &sink.PubsubSinkConfig{ProjectID: "test-project", TopicID: "alerts", PublishTimeout: 5 * time.Second}

	s, err := sink.NewPubsubSink(client, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer s.Stop()

	batch := []json.RawMessage{
		json.RawMessage(`{"SN":105,"MSG_CN":"newest"}`),
		json.RawMessage(`{"SN":103,"MSG_CN":"older"}`),
	}
	require.NoError(t, s.Append(context.Background(), batch))

	msgs := srv.Messages()
	require.Len(t, msgs, 2)

	got := map[string]bool{}
	for _, m := range msgs {
		got[string(m.Data)] = true
	}
	assert.True(t, got[`{"SN":105,"MSG_CN":"newest"}`])
	assert.True(t, got[`{"SN":103,"MSG_CN":"older"}`])
}

func TestPubsubSink_AppendEmptyBatchIsANoOp(t *testing.T) {
	client, srv := setupTestPubsub(t, "test-project", "alerts")
	cfg := &sink.PubsubSinkConfig{ProjectID: "test-project", TopicID: "alerts"}

	s, err := sink.NewPubsubSink(client, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer s.Stop()

	require.NoError(t, s.Append(context.Background(), nil))
	assert.Empty(t, srv.Messages())
}

func TestNewPubsubSink_MissingTopicFails(t *testing.T) {
	client, _ := setupTestPubsub(t, "test-project", "alerts")
	cfg := &sink.PubsubSinkConfig{ProjectID: "test-project", TopicID: "no-such-topic"}

	_, err := sink.NewPubsubSink(client, cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewPubsubSink_NilClientFails(t *testing.T) {
	cfg := &sink.PubsubSinkConfig{ProjectID: "test-project", TopicID: "alerts"}
	_, err := sink.NewPubsubSink(nil, cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewPubsubSink_InvalidConfigFails(t *testing.T) {
	client, _ := setupTestPubsub(t, "test-project", "alerts")

	_, err := sink.NewPubsubSink(client, nil, zerolog.Nop())
	assert.Error(t, err)

	_, err = sink.NewPubsubSink(client, &sink.PubsubSinkConfig{ProjectID: "test-project"}, zerolog.Nop())
	assert.Error(t, err)
}
