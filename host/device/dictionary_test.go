package device

import (
	"testing"

	"tidal/protocol"
)

func TestParseDictionary(t *testing.T) {
	text := "tidal-0.2.0 variant=production\n" +
		"resp 0 identify_response offset=%u data=%*s\n" +
		"cmd 1 identify offset=%u count=%c\n" +
		"cmd 3 get_variant\n" +
		"resp 4 variant name=%s\n" +
		"const ESP_PD_OPTION_ON 1\n"

	dict, err := ParseDictionary([]byte(text))
	if err != nil {
		t.Fatal(err)
	}

	if dict.Header != "tidal-0.2.0 variant=production" {
		t.Errorf("Header = %q", dict.Header)
	}
	identify := dict.Commands["identify"]
	if identify == nil || identify.ID != 1 || len(identify.Params) != 2 {
		t.Fatalf("identify = %+v", identify)
	}
	if identify.Params[1].Type != protocol.ParamByte {
		t.Error("count should be a byte parameter")
	}
	if e, ok := dict.Lookup(4); !ok || e.Name != "variant" || !e.Response {
		t.Errorf("Lookup(4) = %+v", e)
	}
	if dict.Commands["get_variant"].Format != "" {
		t.Error("get_variant takes no arguments")
	}
	if dict.Constants["ESP_PD_OPTION_ON"] != "1" {
		t.Error("Constant not parsed")
	}

	names := dict.CommandNames()
	if len(names) != 2 || names[0] != "identify" || names[1] != "get_variant" {
		t.Errorf("CommandNames = %v", names)
	}
}

func TestParseDictionaryErrors(t *testing.T) {
	tests := []string{
		"",
		"header\ncmd x get_variant\n",
		"header\ncmd 1\n",
		"header\ncmd 1 bad pin=%q\n",
		"header\nconst ONLYNAME\n",
		"header\nwhat 1 thing\n",
	}
	for _, text := range tests {
		if _, err := ParseDictionary([]byte(text)); err == nil {
			t.Errorf("Expected error for %q", text)
		}
	}
}
