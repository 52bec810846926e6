package lib

import "testing"

func TestDomainIsExternal(t *testing.T) {
	d := NewDomain("dom0", nil, nil, nil)
	addMapping(t, d.Table, "outA", "2001:db8:1::", "2001:db8:2::", 64)

	if !d.IsExternal("outA") {
		t.Fatalf("outA should be external")
	}
	if d.IsExternal("inA") {
		t.Fatalf("inA should be internal")
	}
}

func TestVerdictString(t *testing.T) {
	if Accept.String() != "accept" {
		t.Fatalf("Accept.String() = %q", Accept.String())
	}
	if Drop.String() != "drop" {
		t.Fatalf("Drop.String() = %q", Drop.String())
	}
}

func TestNewDomainDefaultsLoggerWhenNil(t *testing.T) {
	d := NewDomain("dom0", nil, nil, nil)
	if d.Logger == nil {
		t.Fatalf("expected a non-nil default logger")
	}
}
