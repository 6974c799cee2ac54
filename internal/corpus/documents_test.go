package corpus

import (
	"encoding/json"
	"testing"
)

func TestDocumentStore(t *testing.T) {
	s := NewDocumentStore()
	for _, id := range []string{"c", "a", "b"} {
		if !s.Put(doc(id)) {
			t.Fatalf("Put(%s) reported duplicate", id)
		}
	}
	if s.Put(doc("a")) {
		t.Error("duplicate Put accepted")
	}
	if !s.Delete("a") || s.Delete("a") {
		t.Error("Delete should succeed once")
	}
	list := s.List()
	if len(list) != 2 || list[0].ID != "c" || list[1].ID != "b" {
		t.Errorf("List order wrong: %v", list)
	}
	if _, ok := s.Get("b"); !ok {
		t.Error("Get(b) missing")
	}
	if s.Len() != 2 {
		t.Errorf("Len=%d", s.Len())
	}
}

func TestDocumentStoreJSON(t *testing.T) {
	s := NewDocumentStore()
	for _, id := range []string{"z", "m", "a"} {
		s.Put(doc(id))
	}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	restored := NewDocumentStore()
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatal(err)
	}
	list := restored.List()
	if len(list) != 3 || list[0].ID != "z" || list[1].ID != "m" || list[2].ID != "a" {
		t.Fatalf("restored order wrong: %v", list)
	}
	orig, _ := s.Get("m")
	got, _ := restored.Get("m")
	if got.Name != orig.Name || got.Content != orig.Content {
		t.Errorf("restored doc = %+v, want %+v", got, orig)
	}

	if err := json.Unmarshal([]byte(`[{"id":"x"},{"id":"x"}]`), restored); err == nil {
		t.Error("duplicate ids should be rejected")
	}
	if restored.Len() != 3 {
		t.Errorf("failed unmarshal must leave the store unchanged, Len=%d", restored.Len())
	}
}
