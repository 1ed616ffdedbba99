package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

// TestBuildSightingPayload は通知ペイロードの組み立てをテストする。
func TestBuildSightingPayload(t *testing.T) {
	p := BuildSightingPayload("ポチ", "中央公園")

	if p.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", p.Title, DefaultTitle)
	}
	if p.Body != "ポチの目撃が報告されました" {
		t.Errorf("Body = %q, want %q", p.Body, "ポチの目撃が報告されました")
	}
	if p.Location != "中央公園" {
		t.Errorf("Location = %q, want %q", p.Location, "中央公園")
	}
}

// TestBuildSightingPayload_Fallbacks は欠損項目が既定文言で補完されることをテストする。
func TestBuildSightingPayload_Fallbacks(t *testing.T) {
	p := BuildSightingPayload("", "")

	if p.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", p.Title, DefaultTitle)
	}
	if p.Body != DefaultBody {
		t.Errorf("Body = %q, want %q", p.Body, DefaultBody)
	}
	if p.Location != DefaultLocation {
		t.Errorf("Location = %q, want %q", p.Location, DefaultLocation)
	}
}

// TestPayloadJSONShape はペイロードのJSONフィールド名をテストする。
func TestPayloadJSONShape(t *testing.T) {
	data, err := json.Marshal(Payload{Title: "t", Body: "b", Location: "l"})
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	for _, field := range []string{"title", "body", "location"} {
		if _, ok := m[field]; !ok {
			t.Errorf("payload JSON missing field %q: %s", field, data)
		}
	}
}

// TestLogPushSender はログ出力実装が通知内容を記録することをテストする。
func TestLogPushSender(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sender := NewLogPushSender(logger)

	payload := BuildSightingPayload("ミケ", "駅前")
	if err := sender.Send(context.Background(), "owner-1", payload); err != nil {
		t.Fatalf("Send() returned error: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["user_id"] != "owner-1" {
		t.Errorf("user_id = %v, want owner-1", entry["user_id"])
	}
	if entry["location"] != "駅前" {
		t.Errorf("location = %v, want 駅前", entry["location"])
	}
}
