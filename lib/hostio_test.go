package lib

import (
	"net"
	"testing"
)

func TestStaticInterfaceDirectory(t *testing.T) {
	dir := NewStaticInterfaceDirectory()
	addr := mustParse(t, "2001:db8:ff::1")
	mac := net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	dir.Set("eth0", addr, mac)

	got, ok := dir.GlobalAddress("eth0")
	if !ok || got != addr {
		t.Fatalf("GlobalAddress(eth0) = %v, %v, want %v, true", got, ok, addr)
	}
	if _, ok := dir.GlobalAddress("eth1"); ok {
		t.Fatalf("GlobalAddress(eth1) should report false for an unconfigured interface")
	}

	gotMAC, ok := dir.MAC("eth0")
	if !ok || gotMAC.String() != mac.String() {
		t.Fatalf("MAC(eth0) = %v, %v, want %v, true", gotMAC, ok, mac)
	}
}

func TestRecordingTransmitterRecordsFrames(t *testing.T) {
	rt := &RecordingTransmitter{}
	frame := SynthesizedFrame{
		DstMAC:    net.HardwareAddr{1, 2, 3, 4, 5, 6},
		SrcMAC:    net.HardwareAddr{6, 5, 4, 3, 2, 1},
		EtherType: EtherTypeIPv6,
		Payload:   []byte{0x60, 0, 0, 0},
	}
	if err := rt.Transmit(frame); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	if len(rt.Frames) != 1 {
		t.Fatalf("expected 1 recorded frame, got %d", len(rt.Frames))
	}
	if rt.Frames[0].String() == "" {
		t.Fatalf("SynthesizedFrame.String() should not be empty")
	}
}
