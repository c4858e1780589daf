package server

import (
	"testing"
)

func TestRegistryAttachDefaults(t *testing.T) {
	registry := NewRegistry()

	c1 := registry.Attach(newMockConn())
	c2 := registry.Attach(newMockConn())

	if c1.Type() != ClientTypeUnknown {
		t.Errorf("Expected new client type %s, got %s", ClientTypeUnknown, c1.Type())
	}
	if c1.UID() != "" {
		t.Errorf("Expected empty uid, got %q", c1.UID())
	}
	if !c1.IsOpen() {
		t.Error("New client should be open")
	}
	if c2.ID <= c1.ID {
		t.Errorf("Expected increasing IDs, got %d then %d", c1.ID, c2.ID)
	}
	if registry.Count() != 2 {
		t.Errorf("Expected 2 clients, got %d", registry.Count())
	}
}

func TestRegistryRegisterAndFind(t *testing.T) {
	registry := NewRegistry()

	c1 := registry.Attach(newMockConn())
	c2 := registry.Attach(newMockConn())

	registry.Register(c1, ClientTypeBrowserExtension, "u1")

	t.Run("FindByUID", func(t *testing.T) {
		found, ok := registry.FindByUID("u1")
		if !ok {
			t.Fatal("Expected to find client by uid")
		}
		if found.ID != c1.ID {
			t.Errorf("Expected client %d, got %d", c1.ID, found.ID)
		}
	})

	t.Run("FindByType", func(t *testing.T) {
		found, ok := registry.FindByType(ClientTypeBrowserExtension)
		if !ok {
			t.Fatal("Expected to find client by type")
		}
		if found.ID != c1.ID {
			t.Errorf("Expected client %d, got %d", c1.ID, found.ID)
		}
	})

	t.Run("NoMatch", func(t *testing.T) {
		if _, ok := registry.FindByUID("nope"); ok {
			t.Error("Expected no match for unknown uid")
		}
		if _, ok := registry.FindByUID(""); ok {
			t.Error("Empty uid should never match")
		}
	})

	t.Run("RegisterIsIdempotent", func(t *testing.T) {
		registry.Register(c1, ClientTypeBrowserExtension, "u1")
		if c1.Type() != ClientTypeBrowserExtension || c1.UID() != "u1" {
			t.Errorf("Repeated registration changed metadata: %s %q", c1.Type(), c1.UID())
		}
	})

	t.Run("DuplicateUIDFirstMatchWins", func(t *testing.T) {
		registry.Register(c2, ClientTypeBrowserExtension, "u1")

		found, ok := registry.FindByUID("u1")
		if !ok {
			t.Fatal("Expected to find client by uid")
		}
		if found.ID != c1.ID {
			t.Errorf("Expected earliest-attached client %d, got %d", c1.ID, found.ID)
		}

		// Once the earlier client detaches, the later one resolves.
		registry.Remove(c1.ID)
		found, ok = registry.FindByUID("u1")
		if !ok {
			t.Fatal("Expected to find remaining client by uid")
		}
		if found.ID != c2.ID {
			t.Errorf("Expected client %d after removal, got %d", c2.ID, found.ID)
		}
	})
}

func TestRegistryRemove(t *testing.T) {
	registry := NewRegistry()

	mc := newMockConn()
	client := registry.Attach(mc)

	registry.Remove(client.ID)

	if registry.Count() != 0 {
		t.Errorf("Expected 0 clients after removal, got %d", registry.Count())
	}
	if client.IsOpen() {
		t.Error("Removed client should be closed")
	}
	mc.mu.Lock()
	closed := mc.closed
	mc.mu.Unlock()
	if !closed {
		t.Error("Removing a client should close its connection")
	}

	// Removing an unknown ID is a no-op.
	registry.Remove(client.ID)
	registry.Remove(9999)
}

func TestRegistryCloseAll(t *testing.T) {
	registry := NewRegistry()

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = registry.Attach(newMockConn())
	}

	registry.CloseAll()

	if registry.Count() != 0 {
		t.Errorf("Expected empty registry, got %d clients", registry.Count())
	}
	for _, client := range clients {
		if client.IsOpen() {
			t.Errorf("Client %d should be closed", client.ID)
		}
	}
}

func TestClientWriteAfterCloseFails(t *testing.T) {
	registry := NewRegistry()
	client := registry.Attach(newMockConn())

	registry.Remove(client.ID)

	if err := client.writeText([]byte(`{}`), writeTimeout); err == nil {
		t.Error("Expected write to a closed client to fail")
	}
	if err := client.ping(writeTimeout); err == nil {
		t.Error("Expected ping to a closed client to fail")
	}
}

func TestClientTypeFromString(t *testing.T) {
	tests := []struct {
		input string
		want  ClientType
		ok    bool
	}{
		{"UNKNOWN", ClientTypeUnknown, true},
		{"BIBLINK_BROWSER_EXTENSION", ClientTypeBrowserExtension, true},
		{"", ClientTypeUnknown, false},
		{"browser_extension", ClientTypeUnknown, false},
	}

	for _, tt := range tests {
		got, ok := ClientTypeFromString(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ClientTypeFromString(%q) = (%s, %v), want (%s, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}
