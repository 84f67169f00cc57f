package output

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/spa-availability/internal/availability"
	"github.com/wolfman30/spa-availability/internal/datetime"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

var generatedAt = time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)

func sampleAggregate(t *testing.T, times ...string) *availability.Aggregate {
	t.Helper()
	agg := availability.NewAggregate()
	var slots []availability.Slot
	for _, tm := range times {
		clock, ok := datetime.ParseClock(tm)
		require.True(t, ok, tm)
		slots = append(slots, availability.Slot{
			Date: time.Date(2025, 11, 21, 0, 0, 0, 0, time.UTC),
			Time: clock,
		})
	}
	agg.Record("Anna", availability.ScanResult{
		BookingURL: "https://sensea.as.me/?appointmentType=1&calendarID=2",
		Slots:      slots,
	})
	agg.Finalize(generatedAt)
	return agg
}

func TestFileSinkWritesJSONAndChecksum(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "www")
	pub := NewPublisher(logging.Discard(), []Sink{NewFileSink(dir)})

	art, changed, err := pub.Publish(context.Background(), sampleAggregate(t, "9:00 AM"))
	require.NoError(t, err)
	assert.True(t, changed)

	data, err := os.ReadFile(filepath.Join(dir, JSONName))
	require.NoError(t, err)
	sum, err := os.ReadFile(filepath.Join(dir, MD5Name))
	require.NoError(t, err)

	assert.Equal(t, art.JSON, data)
	assert.Equal(t, Checksum(data), string(sum))
	assert.Len(t, string(sum), 32)
	assert.Contains(t, string(data), `"generated_at": "2025-11-20T10:00:00Z"`)
	assert.Contains(t, string(data), "appointmentType=1&calendarID=2")
	assert.Equal(t, generatedAt, art.GeneratedAt)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp files must not be left behind")

	back, err := ReadFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, art.MD5, back.MD5)
}

func TestFileSinkAsHashSource(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir)
	pub := NewPublisher(logging.Discard(), []Sink{sink}, WithHashSource(sink))

	sum, err := sink.LastHash(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sum)

	_, changed, err := pub.Publish(context.Background(), sampleAggregate(t, "9:00 AM"))
	require.NoError(t, err)
	assert.True(t, changed)

	_, changed, err = pub.Publish(context.Background(), sampleAggregate(t, "9:00 AM"))
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestStdoutSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewStdoutSink(&buf)
	require.NoError(t, sink.Publish(context.Background(), Artifact{JSON: []byte(`{}`)}))
	assert.Equal(t, "{}\n", buf.String())
}

type failingSink struct{}

func (failingSink) Name() string { return "broken" }
func (failingSink) Publish(context.Context, Artifact) error {
	return errors.New("disk full")
}

func TestPublisherAttemptsEverySink(t *testing.T) {
	var buf bytes.Buffer
	pub := NewPublisher(logging.Discard(), []Sink{failingSink{}, NewStdoutSink(&buf)})

	_, _, err := pub.Publish(context.Background(), sampleAggregate(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.NotEmpty(t, buf.String())
}

func newRedisSink(t *testing.T) *RedisSink {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSink(client)
}

func TestRedisSinkDetectsUnchangedContent(t *testing.T) {
	ctx := context.Background()
	rs := newRedisSink(t)
	pub := NewPublisher(logging.Discard(), []Sink{rs}, WithHashSource(rs))

	first, changed, err := pub.Publish(ctx, sampleAggregate(t, "9:00 AM"))
	require.NoError(t, err)
	assert.True(t, changed)

	_, changed, err = pub.Publish(ctx, sampleAggregate(t, "9:00 AM"))
	require.NoError(t, err)
	assert.False(t, changed)

	_, changed, err = pub.Publish(ctx, sampleAggregate(t, "9:00 AM", "1:20 PM"))
	require.NoError(t, err)
	assert.True(t, changed)

	last, err := rs.LastHash(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.MD5, last)
}

func TestRedisSinkLatest(t *testing.T) {
	ctx := context.Background()
	rs := newRedisSink(t)

	agg, err := rs.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, agg)
	hash, err := rs.LastHash(ctx)
	require.NoError(t, err)
	assert.Empty(t, hash)

	art, err := NewArtifact(sampleAggregate(t, "1:20 PM"))
	require.NoError(t, err)
	require.NoError(t, rs.Publish(ctx, art))

	agg, err = rs.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, agg)
	res, ok := agg.Get("Anna")
	require.True(t, ok)
	require.Len(t, res.Slots, 1)
	assert.Equal(t, "1:20 PM", res.Slots[0].Time.String())

	stored, ok, err := rs.LatestArtifact(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, art.MD5, stored.MD5)
}

type mockS3Client struct {
	objects map[string][]byte
	keys    []string
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = body
	m.keys = append(m.keys, *input.Key)
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3SinkUploadsArtifactHistoryAndManifest(t *testing.T) {
	mock := newMockS3()
	sink := NewS3Sink(mock, "spa-site", "public", logging.Discard())
	ctx := context.Background()

	art, err := NewArtifact(sampleAggregate(t, "9:00 AM"))
	require.NoError(t, err)
	require.NoError(t, sink.Publish(ctx, art))
	require.NoError(t, sink.Publish(ctx, art))

	assert.Equal(t, art.JSON, mock.objects["public/appointments.json"])
	assert.Equal(t, art.MD5, string(mock.objects["public/appointments.md5"]))
	assert.Contains(t, mock.objects, "public/history/2025/11/20/100000.json")

	manifest := string(mock.objects["public/history/manifests/2025-11.jsonl"])
	lines := strings.Split(strings.TrimSpace(manifest), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], art.MD5)
}

func TestS3SinkDisabledWithoutBucket(t *testing.T) {
	mock := newMockS3()
	sink := NewS3Sink(mock, "", "", nil)
	assert.False(t, sink.Enabled())
	require.NoError(t, sink.Publish(context.Background(), Artifact{JSON: []byte("{}")}))
	assert.Empty(t, mock.keys)
}
