package types

import (
	"testing"
	"time"
)

func TestDataPoint_Events_List(t *testing.T) {
	d := DataPoint{
		Name: "wifi.station",
		Tags: map[string]string{"mac": "alice"},
		Datapoints: [][2]float64{
			{1700000000000, 1},
			{1700000060000, 0},
		},
	}
	evs := d.Events()
	if len(evs) != 2 {
		t.Fatalf("Events: got %d, want 2", len(evs))
	}
	if evs[0].Metric != "wifi.station" || evs[0].Tags["mac"] != "alice" {
		t.Errorf("event[0]: got %+v", evs[0])
	}
	if want := time.UnixMilli(1700000060000).UTC(); !evs[1].Timestamp.Equal(want) {
		t.Errorf("event[1].Timestamp: got %v, want %v", evs[1].Timestamp, want)
	}
}

func TestDataPoint_Events_Single(t *testing.T) {
	d := DataPoint{Name: "m", Timestamp: 1700000000000, Value: 3}
	evs := d.Events()
	if len(evs) != 1 {
		t.Fatalf("Events: got %d, want 1", len(evs))
	}
	if evs[0].Value != 3 {
		t.Errorf("Value: got %v, want 3", evs[0].Value)
	}
}

func TestDataPoint_Validate(t *testing.T) {
	if err := (DataPoint{Timestamp: 1}).Validate(); err == nil {
		t.Error("expected error for missing name")
	}
	if err := (DataPoint{Name: "m"}).Validate(); err == nil {
		t.Error("expected error for missing samples")
	}
	if err := (DataPoint{Name: "m", Timestamp: 1}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFromEvents_GroupsBySeries(t *testing.T) {
	ts := time.UnixMilli(1700000000000)
	evs := []Event{
		{Metric: "m", Tags: map[string]string{"mac": "a"}, Value: 1, Timestamp: ts},
		{Metric: "m", Tags: map[string]string{"mac": "b"}, Value: 1, Timestamp: ts},
		{Metric: "m", Tags: map[string]string{"mac": "a"}, Value: 2, Timestamp: ts.Add(time.Second)},
	}
	dps := FromEvents(evs)
	if len(dps) != 2 {
		t.Fatalf("series: got %d, want 2", len(dps))
	}
	if len(dps[0].Datapoints) != 2 {
		t.Errorf("series[0] datapoints: got %d, want 2", len(dps[0].Datapoints))
	}
	if dps[1].Tags["mac"] != "b" {
		t.Errorf("series[1] mac: got %q, want b", dps[1].Tags["mac"])
	}
}
