package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/pump-monitor/internal/domain/pump"
)

var errTestBroker = errors.New("broker unavailable")

// fakeToken is an already completed paho.Token.
type fakeToken struct {
	// err is the completion error.
	err error
	// pending makes WaitTimeout report a timeout.
	pending bool
}

// Wait implements paho.Token.
func (f *fakeToken) Wait() bool { return true }

// WaitTimeout implements paho.Token.
func (f *fakeToken) WaitTimeout(time.Duration) bool { return !f.pending }

// Done implements paho.Token.
func (f *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)

	return ch
}

// Error implements paho.Token.
func (f *fakeToken) Error() error { return f.err }

// fakeClient records published payloads.
type fakeClient struct {
	// payloads holds every published payload.
	payloads [][]byte
	// topics holds the topic of every publish.
	topics []string
	// err is returned through the token.
	err error
	// disconnected is set by Disconnect.
	disconnected bool
	// pending makes Connect time out.
	pending bool
}

// Publish implements client.
func (f *fakeClient) Publish(topic string, _ byte, _ bool, payload any) paho.Token {
	data, _ := payload.([]byte)
	f.payloads = append(f.payloads, data)
	f.topics = append(f.topics, topic)

	return &fakeToken{err: f.err}
}

// Disconnect implements client.
func (f *fakeClient) Disconnect(uint) { f.disconnected = true }

// Connect implements connector.
func (f *fakeClient) Connect() paho.Token { return &fakeToken{err: f.err, pending: f.pending} }

// TestPublisher_PublishesJSON sends one document per snapshot.
func TestPublisher_PublishesJSON(t *testing.T) {
	t.Parallel()

	c := new(fakeClient)
	p := newPublisher(context.Background(), c, "pump/snapshot", time.Second)

	p.Publish(pump.Snapshot{Seq: 3, Status: "NORMAL", Alarm: pump.AlarmLowBattery})

	require.Len(t, c.payloads, 1)
	require.Equal(t, "pump/snapshot", c.topics[0])

	var doc map[string]any
	require.NoError(t, json.Unmarshal(c.payloads[0], &doc))
	require.Equal(t, "NORMAL", doc["status"])
	require.Equal(t, "low_battery", doc["alarm"])

	p.Close()
	require.True(t, c.disconnected)
}

// TestPublisher_ErrorIsReported surfaces broker errors from publish.
func TestPublisher_ErrorIsReported(t *testing.T) {
	t.Parallel()

	c := &fakeClient{err: errTestBroker}
	p := newPublisher(context.Background(), c, "pump/snapshot", time.Second)

	require.ErrorIs(t, p.publish(pump.Snapshot{}), errTestBroker)

	// Publish only logs.
	p.Publish(pump.Snapshot{})
	require.Len(t, c.payloads, 2)
}

// TestDial_ValidatesConfig rejects missing broker or topic before connecting.
func TestDial_ValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := Dial(context.Background(), Config{Topic: "t"})
	require.ErrorIs(t, err, errBrokerRequired)

	_, err = Dial(context.Background(), Config{Broker: "tcp://127.0.0.1:1"})
	require.ErrorIs(t, err, errTopicRequired)
}

// TestConnect_DisconnectsFailedClient releases a client whose attempt failed.
func TestConnect_DisconnectsFailedClient(t *testing.T) {
	t.Parallel()

	c := &fakeClient{pending: true}
	require.ErrorIs(t, connect(c, time.Second), errConnectTimeout)
	require.True(t, c.disconnected)

	c = &fakeClient{err: errTestBroker}
	require.ErrorIs(t, connect(c, time.Second), errTestBroker)
	require.True(t, c.disconnected)

	c = &fakeClient{}
	require.NoError(t, connect(c, time.Second))
	require.False(t, c.disconnected)
}
