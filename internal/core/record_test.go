package core

import (
	"encoding/json"
	"testing"
)

func TestEventRecord_MarshalJSON_NormalizedTimestamp(t *testing.T) {
	rec := NewEventRecord(0, 0, map[string]interface{}{"host": "srv", "timestamp": "ignored"})
	rec.Timestamp = &Timestamp{Epoch: 1696946136, Raw: "10/Oct/2023:13:55:36 +0000", Normalized: true}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["timestamp"] != float64(1696946136) {
		t.Errorf("timestamp = %v, want epoch number", got["timestamp"])
	}
	if got["host"] != "srv" {
		t.Errorf("host = %v", got["host"])
	}
}

func TestEventRecord_MarshalJSON_RawTimestamp(t *testing.T) {
	rec := NewEventRecord(1, 0, map[string]interface{}{"timestamp": "sometime"})
	rec.Timestamp = &Timestamp{Raw: "sometime"}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"timestamp":"sometime"}` {
		t.Errorf("got %s", data)
	}
}

func TestNewEventRecord_Copies(t *testing.T) {
	values := map[string]interface{}{"pid": "1"}
	rec := NewEventRecord(0, 0, values)
	values["pid"] = "2"
	if rec.Values["pid"] != "1" {
		t.Error("record must not alias the input map")
	}
}
