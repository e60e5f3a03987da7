package broadcast

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakePublisher struct {
	channels []string
	payloads [][]byte
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, message.([]byte))
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func newTestBroadcaster() (*Broadcaster, *fakePublisher) {
	pub := &fakePublisher{}
	b := newBroadcaster(pub, nil)
	b.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return b, pub
}

func TestTopic(t *testing.T) {
	if got := Topic(42); got != "ad_generation_42" {
		t.Fatalf("Topic(42) = %q", got)
	}
}

func TestProgressPayloadShape(t *testing.T) {
	b, pub := newTestBroadcaster()
	b.Progress(context.Background(), 7, "Starting ad generation...", 0)

	if len(pub.payloads) != 1 {
		t.Fatalf("published %d events", len(pub.payloads))
	}
	if pub.channels[0] != "ad_generation_7" {
		t.Fatalf("channel = %q", pub.channels[0])
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(pub.payloads[0], &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "progress" {
		t.Errorf("type = %v", decoded["type"])
	}
	if decoded["message"] != "Starting ad generation..." {
		t.Errorf("message = %v", decoded["message"])
	}
	if decoded["percentage"] != float64(0) {
		t.Errorf("percentage = %v", decoded["percentage"])
	}
	if _, ok := decoded["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
}

func TestErrorPayloadShape(t *testing.T) {
	b, pub := newTestBroadcaster()
	b.Error(context.Background(), 3, "image generation failed")

	var decoded map[string]interface{}
	if err := json.Unmarshal(pub.payloads[0], &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "error" {
		t.Errorf("type = %v", decoded["type"])
	}
	if decoded["error"] != "image generation failed" {
		t.Errorf("error = %v", decoded["error"])
	}
}

func TestBackgroundCompletePayloadShape(t *testing.T) {
	b, pub := newTestBroadcaster()
	b.BackgroundComplete(context.Background(), 5, []BackgroundVariantInfo{
		{Aspect: "leaderboard", Size: "1792x1024", ImageURL: "https://example.invalid/a.png"},
	})

	var decoded struct {
		Type               string                  `json:"type"`
		BackgroundVariants []BackgroundVariantInfo `json:"background_variants"`
	}
	if err := json.Unmarshal(pub.payloads[0], &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != "background_complete" {
		t.Errorf("type = %q", decoded.Type)
	}
	if len(decoded.BackgroundVariants) != 1 || decoded.BackgroundVariants[0].Aspect != "leaderboard" {
		t.Errorf("background_variants = %#v", decoded.BackgroundVariants)
	}
}

func TestCompletionPayloadShape(t *testing.T) {
	b, pub := newTestBroadcaster()
	b.Completion(context.Background(), 9, []VariantInfo{
		{VariantID: "A", Headline: "H", AdSize: "300x250", Status: "completed"},
	})

	var decoded struct {
		Type     string        `json:"type"`
		Variants []VariantInfo `json:"variants"`
	}
	if err := json.Unmarshal(pub.payloads[0], &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != "completion" {
		t.Errorf("type = %q", decoded.Type)
	}
	if len(decoded.Variants) != 1 || decoded.Variants[0].VariantID != "A" {
		t.Errorf("variants = %#v", decoded.Variants)
	}
}

func TestStageAtMonotonic(t *testing.T) {
	total := 5
	previous := StageFanOut.Start
	for done := 0; done <= total; done++ {
		got := StageFanOut.At(done, total)
		if got < previous {
			t.Fatalf("At(%d,%d) = %d went backwards from %d", done, total, got, previous)
		}
		previous = got
	}
	if StageFanOut.At(total, total) != StageFanOut.End {
		t.Fatalf("final step should hit End, got %d", StageFanOut.At(total, total))
	}
	if StageFanOut.At(0, 0) != StageFanOut.Start {
		t.Fatalf("empty stage should report Start")
	}
}
