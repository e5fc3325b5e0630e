package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/messaging"
)

func TestSessionEventMessageHandler(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []messaging.Event
	}{
		{
			name:  "qr",
			value: `{"type":"qr","payload":"2@abc"}`,
			want:  []messaging.Event{{Kind: messaging.EventPairingRequired, Payload: "2@abc"}},
		},
		{
			name:  "disconnected",
			value: `{"type":"disconnected","reason":"LOGOUT"}`,
			want:  []messaging.Event{{Kind: messaging.EventDisconnected, Reason: "LOGOUT"}},
		},
		{
			name:  "garbage is skipped",
			value: `not json`,
		},
		{
			name:  "unknown type is skipped",
			value: `{"type":"loading_screen"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []messaging.Event
			handler := SessionEventMessageHandler(func(evt messaging.Event) bool {
				got = append(got, evt)
				return true
			}, zap.NewNop())

			err := handler(context.Background(), kafka.Message{Topic: "whatsapp.session", Value: []byte(tt.value)})
			if err != nil {
				t.Fatalf("expected nil error so the offset is committed, got %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d events, got %d", len(tt.want), len(got))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("event %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}
