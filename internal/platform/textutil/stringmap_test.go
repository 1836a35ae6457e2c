package textutil

import (
	"reflect"
	"testing"
)

func TestNormalizeLinks(t *testing.T) {
	t.Run("trims keys and values", func(t *testing.T) {
		input := map[string]string{
			" Facebook ": " https://facebook.com/archive ",
			"youtube":    "https://youtube.com/@archive",
			"empty":      " ",
			" ":          "ignored",
		}

		expected := map[string]string{
			"facebook": "https://facebook.com/archive",
			"youtube":  "https://youtube.com/@archive",
		}

		actual := NormalizeLinks(input)
		if !reflect.DeepEqual(actual, expected) {
			t.Fatalf("expected %#v got %#v", expected, actual)
		}
	})

	t.Run("returns nil for nil or empty input", func(t *testing.T) {
		if NormalizeLinks(nil) != nil {
			t.Fatalf("expected nil for nil input")
		}
		if NormalizeLinks(map[string]string{"x": ""}) != nil {
			t.Fatalf("expected nil when every entry is dropped")
		}
	})
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty(" ", "", " الشهيد ", "martyr"); got != "الشهيد" {
		t.Fatalf("unexpected value %q", got)
	}
	if got := FirstNonEmpty(); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}
