package bus

import (
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPayloadOf(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
		want   []byte
	}{
		{
			name:   "payload present",
			values: map[string]interface{}{"data": `{"alarm_type":1}`},
			want:   []byte(`{"alarm_type":1}`),
		},
		{
			name:   "payload missing",
			values: map[string]interface{}{"other": "x"},
			want:   nil,
		},
		{
			name:   "payload not a string",
			values: map[string]interface{}{"data": 42},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := payloadOf(tt.values)
			if string(got) != string(tt.want) {
				t.Errorf("payloadOf() = %q, want %q", got, tt.want)
			}
			if (got == nil) != (tt.want == nil) {
				t.Errorf("payloadOf() nil = %v, want %v", got == nil, tt.want == nil)
			}
		})
	}
}

func TestNewConsumerInvalidURL(t *testing.T) {
	_, err := NewConsumer("://not-a-url", "group", "worker-1", []string{"alerts.network_attack"}, testLogger())
	if err == nil {
		t.Fatal("expected error for invalid redis URL")
	}
}

func TestNewProducerInvalidURL(t *testing.T) {
	_, err := NewProducer("://not-a-url", testLogger())
	if err == nil {
		t.Fatal("expected error for invalid redis URL")
	}
}
