package message

import "testing"

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{"direct", KindDirect, false},
		{"group", KindGroup, false},
		{"", 0, true},
		{"Group", 0, true},
		{"channel", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseKind(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestKindStringRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindDirect, KindGroup} {
		got, err := ParseKind(k.String())
		if err != nil {
			t.Fatal(err)
		}
		if got != k {
			t.Errorf("ParseKind(%q) = %s, want %s", k.String(), got, k)
		}
	}
	if s := Kind(7).String(); s != "Kind(7)" {
		t.Errorf("Kind(7).String() = %q", s)
	}
}

func TestNewBuildsVariant(t *testing.T) {
	q := &Quote{GlobalMsgID: "999", CliMsgID: "5"}

	m, err := New(KindDirect, "123", Data{Quote: q})
	if err != nil {
		t.Fatal(err)
	}
	dm, ok := m.(*DirectMessage)
	if !ok {
		t.Fatalf("New(direct) = %T, want *DirectMessage", m)
	}
	if dm.Thread() != "123" || dm.QuoteRef() != q || dm.Kind() != KindDirect {
		t.Errorf("direct message = %+v", dm)
	}

	m, err = New(KindGroup, "g1", Data{})
	if err != nil {
		t.Fatal(err)
	}
	gm, ok := m.(*GroupMessage)
	if !ok {
		t.Fatalf("New(group) = %T, want *GroupMessage", m)
	}
	if gm.Thread() != "g1" || gm.QuoteRef() != nil || gm.Kind() != KindGroup {
		t.Errorf("group message = %+v", gm)
	}

	if _, err := New(Kind(3), "x", Data{}); err == nil {
		t.Error("New(Kind(3)) expected error")
	}
}
