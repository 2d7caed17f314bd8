package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/stugahq/stuga-core/internal/registry"
)

// fakeClient scripts RPC responses and records every request.
type fakeClient struct {
	mu      sync.Mutex
	calls   []rpcCall
	handler func(msgType string, fields map[string]any) (json.RawMessage, error)

	labelSeq int
}

type rpcCall struct {
	msgType string
	fields  map[string]any
}

func (f *fakeClient) Request(_ context.Context, msgType string, fields map[string]any) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rpcCall{msgType, fields})
	handler := f.handler
	f.mu.Unlock()

	if handler != nil {
		return handler(msgType, fields)
	}
	return f.defaultResponse(msgType, fields)
}

// defaultResponse echoes requests back the way a cooperative hub would.
func (f *fakeClient) defaultResponse(msgType string, fields map[string]any) (json.RawMessage, error) {
	switch msgType {
	case typeLabelCreate:
		f.mu.Lock()
		f.labelSeq++
		id := fmt.Sprintf("lbl-%d", f.labelSeq)
		f.mu.Unlock()
		return json.RawMessage(fmt.Sprintf(`{"label_id":%q,"name":%q}`, id, fields["name"])), nil
	default:
		echo, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		return echo, nil
	}
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeClient) callsOf(msgType string) []rpcCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []rpcCall
	for _, c := range f.calls {
		if c.msgType == msgType {
			out = append(out, c)
		}
	}
	return out
}

// noSender satisfies registry.Sender for managers that never bulk-load in
// these tests.
type noSender struct{ nextID int64 }

func (n *noSender) NextMessageID() int64                    { n.nextID++; return n.nextID }
func (n *noSender) Send(int64, string, map[string]any)      {}

func newTestServices() (*Services, *fakeClient, *registry.Manager) {
	client := &fakeClient{}
	reg := registry.NewManager(registry.Options{Client: &noSender{}})
	return New(client, reg, nil), client, reg
}
