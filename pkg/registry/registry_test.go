// Copyright 2025 Mangwale
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"fmt"
	"testing"
)

type testAgent struct {
	ID   string
	Type string
}

func TestBaseRegistry_Register(t *testing.T) {
	reg := NewBaseRegistry[testAgent]()

	tests := []struct {
		name    string
		key     string
		item    testAgent
		wantErr bool
	}{
		{name: "register valid agent", key: "faq_agent", item: testAgent{ID: "faq_agent", Type: "faq"}, wantErr: false},
		{name: "register empty name", key: "", item: testAgent{Type: "faq"}, wantErr: true},
		{name: "register duplicate name", key: "faq_agent", item: testAgent{ID: "faq_agent", Type: "faq"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.key, tt.item)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBaseRegistry_Get(t *testing.T) {
	reg := NewBaseRegistry[testAgent]()
	search := testAgent{ID: "search_agent", Type: "search"}
	if err := reg.Register("search_agent", search); err != nil {
		t.Fatalf("Register() = %v", err)
	}

	if got, ok := reg.Get("search_agent"); !ok || got != search {
		t.Errorf("Get() = %v, %v, want %v, true", got, ok, search)
	}
	if _, ok := reg.Get("missing_agent"); ok {
		t.Errorf("Get() on missing key = true, want false")
	}
}

func TestBaseRegistry_Keys(t *testing.T) {
	reg := NewBaseRegistry[testAgent]()
	for _, id := range []string{"order_agent", "faq_agent", "search_agent"} {
		if err := reg.Register(id, testAgent{ID: id}); err != nil {
			t.Fatalf("Register(%s) = %v", id, err)
		}
	}

	got := reg.Keys()
	want := []string{"faq_agent", "order_agent", "search_agent"}
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q (not sorted)", i, got[i], want[i])
		}
	}
}

func TestBaseRegistry_List(t *testing.T) {
	reg := NewBaseRegistry[testAgent]()
	if items := reg.List(); len(items) != 0 {
		t.Errorf("List() on empty registry = %v, want empty", items)
	}

	agents := []testAgent{
		{ID: "faq_agent", Type: "faq"},
		{ID: "order_agent", Type: "order"},
	}
	for _, a := range agents {
		if err := reg.Register(a.ID, a); err != nil {
			t.Fatalf("Register(%s) = %v", a.ID, err)
		}
	}

	items := reg.List()
	if len(items) != len(agents) {
		t.Fatalf("List() length = %d, want %d", len(items), len(agents))
	}
	seen := make(map[string]bool)
	for _, item := range items {
		seen[item.ID] = true
	}
	for _, a := range agents {
		if !seen[a.ID] {
			t.Errorf("List() missing agent %s", a.ID)
		}
	}
}

func TestBaseRegistry_Remove(t *testing.T) {
	reg := NewBaseRegistry[testAgent]()
	if err := reg.Register("faq_agent", testAgent{ID: "faq_agent"}); err != nil {
		t.Fatalf("Register() = %v", err)
	}

	if err := reg.Remove("faq_agent"); err != nil {
		t.Errorf("Remove() = %v, want nil", err)
	}
	if _, ok := reg.Get("faq_agent"); ok {
		t.Errorf("Get() after Remove() = true, want false")
	}
	if err := reg.Remove("faq_agent"); err == nil {
		t.Errorf("Remove() on already-removed agent = nil, want error")
	}
}

func TestBaseRegistry_Count(t *testing.T) {
	reg := NewBaseRegistry[testAgent]()
	if c := reg.Count(); c != 0 {
		t.Errorf("Count() = %d, want 0", c)
	}
	for i, id := range []string{"a1", "a2", "a3"} {
		if err := reg.Register(id, testAgent{ID: id}); err != nil {
			t.Fatalf("Register(%s) = %v", id, err)
		}
		if c := reg.Count(); c != i+1 {
			t.Errorf("Count() = %d, want %d", c, i+1)
		}
	}
}

func TestBaseRegistry_Clear(t *testing.T) {
	reg := NewBaseRegistry[testAgent]()
	for _, id := range []string{"a1", "a2"} {
		if err := reg.Register(id, testAgent{ID: id}); err != nil {
			t.Fatalf("Register(%s) = %v", id, err)
		}
	}

	reg.Clear()

	if c := reg.Count(); c != 0 {
		t.Errorf("Count() after Clear() = %d, want 0", c)
	}
	if items := reg.List(); len(items) != 0 {
		t.Errorf("List() after Clear() = %v, want empty", items)
	}
}

func TestBaseRegistry_Concurrency(t *testing.T) {
	reg := NewBaseRegistry[testAgent]()
	done := make(chan bool, 2)

	go func() {
		defer func() { done <- true }()
		for i := 0; i < 100; i++ {
			id := fmt.Sprintf("agent-%d", i)
			_ = reg.Register(id, testAgent{ID: id})
		}
	}()

	go func() {
		defer func() { done <- true }()
		for i := 0; i < 100; i++ {
			reg.Get(fmt.Sprintf("agent-%d", i))
			reg.Count()
			reg.List()
		}
	}()

	<-done
	<-done

	if c := reg.Count(); c != 100 {
		t.Errorf("Count() after concurrent registration = %d, want 100", c)
	}
}
