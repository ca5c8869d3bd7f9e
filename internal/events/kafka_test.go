package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaEmitter_Emit(t *testing.T) {
	w := &fakeWriter{}
	emitter := NewKafkaEmitterWithWriter(w)

	walletID, requestID := uuid.New(), uuid.New()
	event := Event{
		Type:       TypeRequestApproved,
		WalletID:   walletID,
		RequestID:  &requestID,
		Status:     "approved",
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	require.NoError(t, emitter.Emit(context.Background(), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, walletID.String(), string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, TypeRequestApproved, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.Type, decoded.Type)
	assert.Equal(t, requestID, *decoded.RequestID)
}

func TestKafkaEmitter_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	emitter := NewKafkaEmitterWithWriter(w)

	err := emitter.Emit(context.Background(), Event{Type: TypeWalletCreated, WalletID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestKafkaEmitter_Close(t *testing.T) {
	w := &fakeWriter{}
	emitter := NewKafkaEmitterWithWriter(w)

	require.NoError(t, emitter.Close())
	assert.True(t, w.closed)
	require.NoError(t, emitter.Close())

	err := emitter.Emit(context.Background(), Event{Type: TypeWalletCreated, WalletID: uuid.New()})
	assert.Error(t, err)
}

func TestLogEmitter(t *testing.T) {
	id := uuid.New()
	assert.NoError(t, LogEmitter{}.Emit(context.Background(), Event{Type: TypeBroadcast, WalletID: uuid.New(), RequestID: &id, TxHash: "0xabc"}))
	assert.NoError(t, LogEmitter{}.Close())
}
