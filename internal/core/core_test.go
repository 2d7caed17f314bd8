package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stugahq/stuga-core/internal/hub"
	"github.com/stugahq/stuga-core/internal/infrastructure/config"
	"github.com/stugahq/stuga-core/internal/registry"
)

// scriptedConn plays a canned hub: it answers auth, then answers every
// request with a scripted or empty-success result.
type scriptedConn struct {
	mu      sync.Mutex
	inbound chan []byte
	closed  bool
	results map[string]string // msgType -> result payload
}

func newScriptedConn() *scriptedConn {
	c := &scriptedConn{
		inbound: make(chan []byte, 64),
		results: map[string]string{},
	}
	c.inbound <- []byte(`{"type":"auth_required"}`)
	return c
}

func (c *scriptedConn) ReadMessage() ([]byte, error) {
	data, ok := <-c.inbound
	if !ok {
		return nil, errors.New("closed")
	}
	return data, nil
}

func (c *scriptedConn) WriteMessage(data []byte) error {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	msgType, _ := msg["type"].(string)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}

	switch msgType {
	case hub.TypeAuth:
		c.inbound <- []byte(`{"type":"auth_ok"}`)
	default:
		id := int64(msg["id"].(float64))
		result, ok := c.results[msgType]
		if !ok {
			result = "null"
		}
		c.inbound <- []byte(fmt.Sprintf(`{"id":%d,"type":"result","success":true,"result":%s}`, id, result))
	}
	return nil
}

func (c *scriptedConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.inbound)
	}
	return nil
}

func (c *scriptedConn) event(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.inbound <- []byte(raw)
	}
}

func newTestCore(conn *scriptedConn) *Core {
	cfg := config.Default()
	cfg.Hub.URL = "ws://hub.local:8123/api/websocket"
	cfg.Hub.Token = "tok"
	return New(Options{
		Config: cfg,
		Dialer: func(string, int) (hub.Conn, error) { return conn, nil },
	})
}

func TestCoreFullSyncLifecycle(t *testing.T) {
	conn := newScriptedConn()
	conn.results[hub.TypeGetStates] = `[{"entity_id":"light.kitchen","state":"on","attributes":{}}]`
	conn.results[registry.TypeAreaList] = `[{"area_id":"kitchen","name":"Kitchen"}]`
	conn.results[registry.TypeEntityList] = `[{"entity_id":"light.kitchen","area_id":"kitchen","hidden_by":null}]`

	c := newTestCore(conn)
	defer c.Disconnect()

	snapshots := make(chan map[string]registry.Entity, 16)
	off := c.OnMessage(func(snap map[string]registry.Entity) { snapshots <- snap })
	defer off()

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Wait for the bulk load to surface the kitchen light with its
	// denormalized area.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-snapshots:
			e, ok := snap["light.kitchen"]
			if !ok {
				continue
			}
			if e.State != "on" {
				continue
			}
			if e.Attributes["area"] != "Kitchen" {
				continue
			}
			// Synced. Now push a live event.
			conn.event(`{"type":"event","event":{"event_type":"state_changed","data":{"entity_id":"light.kitchen","new_state":{"entity_id":"light.kitchen","state":"off","attributes":{}}}}}`)
			goto waitEvent
		case <-deadline:
			t.Fatal("bulk load never produced the synced snapshot")
		}
	}

waitEvent:
	deadline = time.After(2 * time.Second)
	for {
		select {
		case snap := <-snapshots:
			if e, ok := snap["light.kitchen"]; ok && e.State == "off" {
				if !c.IsAuthenticated() {
					t.Error("IsAuthenticated() = false after full sync")
				}
				return
			}
		case <-deadline:
			t.Fatal("live state change never reached subscribers")
		}
	}
}

func TestCoreOptimisticThenAuthoritative(t *testing.T) {
	conn := newScriptedConn()
	conn.results[hub.TypeGetStates] = `[{"entity_id":"light.a","state":"off","attributes":{}}]`

	c := newTestCore(conn)
	defer c.Disconnect()

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Wait until the snapshot is loaded.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := c.Entity("light.a"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("snapshot never loaded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	c.SetOptimisticState("light.a", "on", nil)
	if e, _ := c.Entity("light.a"); e.State != "on" {
		t.Errorf("projected state = %s, want the optimistic on", e.State)
	}

	conn.event(`{"type":"event","event":{"event_type":"state_changed","data":{"entity_id":"light.a","new_state":{"entity_id":"light.a","state":"off","attributes":{}}}}}`)

	deadline = time.Now().Add(2 * time.Second)
	for {
		if e, _ := c.Entity("light.a"); e.State == "off" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("authoritative state never displaced the override")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
