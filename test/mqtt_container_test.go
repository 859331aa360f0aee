package test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldassign/app"
	"github.com/kilianp07/fieldassign/config"
	"github.com/kilianp07/fieldassign/infra/mqtt"
	"github.com/kilianp07/fieldassign/test/util"
)

type tableRecorder struct {
	mu   sync.Mutex
	last map[string]mqtt.TablePayload
}

func (r *tableRecorder) handle(_ paho.Client, m paho.Message) {
	var p mqtt.TablePayload
	if len(m.Payload()) == 0 || json.Unmarshal(m.Payload(), &p) != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[m.Topic()] = p
}

func (r *tableRecorder) get(topic string) (mqtt.TablePayload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.last[topic]
	return p, ok
}

func startService(ctx context.Context, t *testing.T, broker string) *app.Service {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Address = "127.0.0.1:0"
	cfg.Engine.Seed = 11
	cfg.MQTT.Enabled = true
	cfg.MQTT.Broker = broker
	cfg.MQTT.ClientID = "fieldassign-it"
	cfg.MQTT.SubscribeInstructions = true
	require.NoError(t, cfg.Validate())

	svc, err := app.New(cfg)
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- svc.Run(runCtx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("service did not stop")
		}
		assert.NoError(t, svc.Close())
	})
	return svc
}

func TestTableFeedWithMQTTContainer(t *testing.T) {
	util.RequireDocker(t)
	ctx := context.Background()
	broker := util.StartMosquitto(ctx, t)
	svc := startService(ctx, t, broker)

	rec := &tableRecorder{last: map[string]mqtt.TablePayload{}}
	viewer := util.Connect(t, broker, "map-viewer")
	tok := viewer.Subscribe("fieldassign/sessions/+/table", 1, rec.handle)
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())

	s, err := svc.Sessions.Create(ctx)
	require.NoError(t, err)
	topic := "fieldassign/sessions/" + s.ID + "/table"

	require.Eventually(t, func() bool {
		if _, err := svc.Sessions.ApplyPreset(ctx, s.ID, "novice-care"); err != nil {
			return false
		}
		_, ok := rec.get(topic)
		return ok
	}, 10*time.Second, 250*time.Millisecond)

	p, _ := rec.get(topic)
	assert.Equal(t, s.ID, p.SessionID)
	assert.Equal(t, "novice", p.Rule.String())
	assert.Equal(t, 5, p.Stats.Assigned)
	assert.Len(t, p.Markers, 5)
	for _, r := range p.Routes {
		if r.Staff == "C" {
			assert.Equal(t, []string{"Chuo Building", "Midori Ward Office"}, r.Sites)
		}
	}
}

func TestRemoteInstructionWithMQTTContainer(t *testing.T) {
	util.RequireDocker(t)
	ctx := context.Background()
	broker := util.StartMosquitto(ctx, t)
	svc := startService(ctx, t, broker)

	s, err := svc.Sessions.Create(ctx)
	require.NoError(t, err)

	operator := util.Connect(t, broker, "operator")
	body, err := json.Marshal(map[string]string{"text": "trouble at the mall"})
	require.NoError(t, err)
	instructions := "fieldassign/sessions/" + s.ID + "/instructions"

	require.Eventually(t, func() bool {
		operator.Publish(instructions, 1, false, body).WaitTimeout(time.Second)
		got, err := svc.Sessions.Get(s.ID)
		return err == nil && got.Runs > 0
	}, 10*time.Second, 250*time.Millisecond)

	got, err := svc.Sessions.Get(s.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(got.Messages), 3)
	assert.Equal(t, "trouble at the mall", got.Messages[1].Text)
	for _, site := range got.Sites {
		assert.True(t, site.Assigned(), site.Name)
	}
}
