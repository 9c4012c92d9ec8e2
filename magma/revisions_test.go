// Copyright (c) 2025 Magma Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at magma.foundation/bsl11.
//
// Change Date: 2029-3-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package magma

import "testing"

func TestRevision_MarshalingProducesNames(t *testing.T) {
	tests := map[Revision]string{
		R07_Istanbul:            "\"Istanbul\"",
		R09_Berlin:              "\"Berlin\"",
		R10_London:              "\"London\"",
		R11_Paris:               "\"Paris\"",
		R12_Shanghai:            "\"Shanghai\"",
		R13_Cancun:              "\"Cancun\"",
		R99_UnknownNextRevision: "\"UnknownNextRevision\"",
	}
	for revision, want := range tests {
		data, err := revision.MarshalJSON()
		if err != nil {
			t.Fatalf("failed to marshal revision %v: %v", revision, err)
		}
		if string(data) != want {
			t.Errorf("unexpected marshaling, wanted %s, got %s", want, data)
		}
	}
}

func TestRevision_MarshalingRoundTrip(t *testing.T) {
	for _, revision := range []Revision{
		R07_Istanbul, R09_Berlin, R10_London,
		R11_Paris, R12_Shanghai, R13_Cancun,
		R99_UnknownNextRevision,
	} {
		data, err := revision.MarshalJSON()
		if err != nil {
			t.Fatalf("failed to marshal revision %v: %v", revision, err)
		}
		var restored Revision
		if err := restored.UnmarshalJSON(data); err != nil {
			t.Fatalf("failed to unmarshal %s: %v", data, err)
		}
		if revision != restored {
			t.Errorf("unexpected revision, wanted %v, got %v", revision, restored)
		}
	}
}

func TestRevision_MarshalingRejectsUnknownRevisions(t *testing.T) {
	if _, err := Revision(42).MarshalJSON(); err == nil {
		t.Errorf("expected marshaling of unknown revision to fail")
	}
	var revision Revision
	if err := revision.UnmarshalJSON([]byte("\"Frontier\"")); err == nil {
		t.Errorf("expected unmarshaling of unknown revision to fail")
	}
}
