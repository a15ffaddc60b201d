package ir

import (
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		address bool
		name    string
		want    string
	}{
		{false, "Int64", "Int64"},
		{false, "Int8", "Int8"},
		{false, "Integer", "Integer"},
		{false, "Bool", "Bool"},
		{false, "RawPointer", "RawPointer"},
		{false, "Function", "Function"},
		{false, "Buffer", "Buffer"},
		{true, "Buffer", "*Buffer"},
		{true, "Int32", "*Int32"},
	}

	for _, tt := range tests {
		got := ParseType(tt.address, tt.name)
		if got.String() != tt.want {
			t.Errorf("ParseType(%v, %q) = %s, want %s", tt.address, tt.name, got, tt.want)
		}
		if IsAddress(got) != tt.address {
			t.Errorf("IsAddress(%s) = %v, want %v", got, !tt.address, tt.address)
		}
	}

	if _, ok := ParseType(false, "Integer").(*NamedType); !ok {
		t.Error("Integer is a named type, not an integer width")
	}
	if it, ok := ParseType(false, "Int16").(*IntType); !ok || it.Bits != 16 {
		t.Error("Int16 should parse as a 16 bit integer")
	}
}

func TestObjectType(t *testing.T) {
	buffer := &NamedType{Name: "Buffer"}
	if ObjectType(&AddressType{Elem: buffer}) != buffer {
		t.Error("ObjectType should strip the address")
	}
	if ObjectType(buffer) != buffer {
		t.Error("ObjectType of a non-address is the type itself")
	}
}

func TestConventions(t *testing.T) {
	tests := []struct {
		convention Convention
		inout      bool
		indirect   bool
	}{
		{ConventionDirect, false, false},
		{ConventionIndirectIn, false, true},
		{ConventionIndirectInout, true, true},
		{ConventionIndirectInoutAliased, true, true},
		{ConventionIndirectOut, false, true},
	}

	for _, tt := range tests {
		if tt.convention.IsInout() != tt.inout {
			t.Errorf("%s.IsInout() = %v, want %v", tt.convention, !tt.inout, tt.inout)
		}
		if tt.convention.IsIndirect() != tt.indirect {
			t.Errorf("%s.IsIndirect() = %v, want %v", tt.convention, !tt.indirect, tt.indirect)
		}
	}
}
