package lib

import (
	"strings"
	"testing"
)

func TestApplyLineAddDelDrop(t *testing.T) {
	table := NewMappingTable()

	if err := ApplyLine(table, "add eth0 2001:db8:1::/64 2001:db8:2::/64"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(table.Enumerate()) != 1 {
		t.Fatalf("expected 1 mapping after add")
	}

	if err := ApplyLine(table, "del eth0 2001:db8:1::/64"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if len(table.Enumerate()) != 0 {
		t.Fatalf("expected 0 mappings after del")
	}

	ApplyLine(table, "add eth0 2001:db8:1::/64 2001:db8:2::/64")
	ApplyLine(table, "add eth1 2001:db8:3::/64 2001:db8:4::/64")
	if err := ApplyLine(table, "drop eth0"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if len(table.Enumerate()) != 1 {
		t.Fatalf("expected 1 mapping after drop eth0")
	}

	if err := ApplyLine(table, "drop --all"); err != nil {
		t.Fatalf("drop --all: %v", err)
	}
	if len(table.Enumerate()) != 0 {
		t.Fatalf("expected 0 mappings after drop --all")
	}
}

func TestApplyLineRejectsMalformed(t *testing.T) {
	table := NewMappingTable()
	cases := []string{
		"",
		"add eth0",
		"add eth0 2001:db8:1::/64",
		"del eth0",
		"frobnicate eth0",
	}
	for _, line := range cases {
		t.Run(line, func(t *testing.T) {
			if err := ApplyLine(table, line); err == nil {
				t.Fatalf("ApplyLine(%q) succeeded, want error", line)
			}
		})
	}
}

func TestApplyBatchCountsErrorsWithoutAborting(t *testing.T) {
	table := NewMappingTable()
	batch := `# a comment

add eth0 2001:db8:1::/64 2001:db8:2::/64
this line is garbage
add eth1 2001:db8:3::/64 2001:db8:4::/64
`
	result := ApplyBatch(table, batch)
	if result.Processed != 2 {
		t.Fatalf("Processed = %d, want 2", result.Processed)
	}
	if result.Errors != 1 {
		t.Fatalf("Errors = %d, want 1", result.Errors)
	}
	if len(table.Enumerate()) != 2 {
		t.Fatalf("expected both valid lines applied despite the bad one")
	}
}

func TestApplyBatchDropCountsRemoved(t *testing.T) {
	table := NewMappingTable()
	ApplyBatch(table, "add eth0 2001:db8:1::/64 2001:db8:2::/64\nadd eth0 2001:db8:3::/64 2001:db8:4::/64\n")

	result := ApplyBatch(table, "drop eth0\n")
	if result.Processed != 2 {
		t.Fatalf("drop Processed = %d, want 2 (removed count)", result.Processed)
	}
}

func TestApplyBatchRejectsOversizeWrite(t *testing.T) {
	table := NewMappingTable()
	huge := strings.Repeat("# filler line\n", MaxBatchBytes/14+1)

	result := ApplyBatch(table, huge)
	if result.Processed != 0 || result.Errors != 1 {
		t.Fatalf("oversize batch: Processed=%d Errors=%d, want 0/1", result.Processed, result.Errors)
	}
}

func TestFormatMappingListIncludesHeaderAndPrefixes(t *testing.T) {
	table := NewMappingTable()
	addMapping(t, table, "eth0", "2001:db8:1::", "2001:db8:2::", 64)

	listed := FormatMappingList(table.Enumerate())
	for _, want := range []string{"# IPv6 NAT Mappings", "eth0", "2001:db8:1::/64", "2001:db8:2::/64"} {
		if !strings.Contains(listed, want) {
			t.Fatalf("FormatMappingList missing %q: %s", want, listed)
		}
	}
}
