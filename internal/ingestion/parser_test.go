package ingestion_test

import (
	"strings"
	"testing"

	"VaultCore/internal/event"
	"VaultCore/internal/ingestion"
)

func rawFromJSON(js string) ingestion.RawCommand {
	return ingestion.RawCommand{
		Subject: "test.subject",
		Data:    []byte(js),
	}
}

// ============================================================================
// Test: valid commands
// ============================================================================

func TestParse_ValidDraw(t *testing.T) {
	raw := rawFromJSON(`{
		"cmd_id": "c61a9a43-9fbb-4271-94cb-69db2c717b6b",
		"ilk": "ETH-A",
		"caller": "ops/admin",
		"wad": "50000000000000000000",
		"timestamp_us": 1761000000000000
	}`)

	cmd, err := ingestion.ParseRawCommand(raw, "Draw")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	draw, ok := cmd.(*event.DrawCommand)
	if !ok {
		t.Fatalf("got %T, want *event.DrawCommand", cmd)
	}
	if draw.IlkID != "ETH-A" {
		t.Errorf("ilk: got %q, want %q", draw.IlkID, "ETH-A")
	}
	if draw.Caller != "ops/admin" {
		t.Errorf("caller: got %q, want %q", draw.Caller, "ops/admin")
	}
	if draw.Wad.String() != "50000000000000000000" {
		t.Errorf("wad: got %s, want 50000000000000000000", draw.Wad)
	}
	if draw.CommandType() != "Draw" {
		t.Errorf("command type: got %q, want %q", draw.CommandType(), "Draw")
	}
	wantKey := "draw:c61a9a43-9fbb-4271-94cb-69db2c717b6b"
	if draw.IdempotencyKey() != wantKey {
		t.Errorf("idempotency key: got %q, want %q", draw.IdempotencyKey(), wantKey)
	}
}

func TestParse_ValidWipe(t *testing.T) {
	raw := rawFromJSON(`{
		"cmd_id": "5e3f1f94-1d4e-4f07-a2a3-0f2b6a3b77d1",
		"ilk": "ETH-A",
		"caller": "ops/admin",
		"wad": "100050000000000000000",
		"timestamp_us": 1761000000000000
	}`)

	cmd, err := ingestion.ParseRawCommand(raw, "Wipe")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	wipe, ok := cmd.(*event.WipeCommand)
	if !ok {
		t.Fatalf("got %T, want *event.WipeCommand", cmd)
	}
	if wipe.Wad.String() != "100050000000000000000" {
		t.Errorf("wad: got %s, want 100050000000000000000", wipe.Wad)
	}
}

func TestParse_ValidInit(t *testing.T) {
	raw := rawFromJSON(`{
		"cmd_id": "0e9c7153-9b6b-4d89-bacd-4e2b9fdc2f10",
		"ilk": "ETH-A",
		"caller": "ops/admin",
		"timestamp_us": 1761000000000000
	}`)

	cmd, err := ingestion.ParseRawCommand(raw, "Init")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	init, ok := cmd.(*event.InitCommand)
	if !ok {
		t.Fatalf("got %T, want *event.InitCommand", cmd)
	}
	if init.Ilk() != "ETH-A" {
		t.Errorf("ilk: got %q, want %q", init.Ilk(), "ETH-A")
	}
}

func TestParse_ValidCeilingUpdate(t *testing.T) {
	raw := rawFromJSON(`{
		"ilk": "ETH-A",
		"line_wad": "1000000000000000000000",
		"sequence": 7,
		"timestamp_us": 1761000000000000
	}`)

	cmd, err := ingestion.ParseRawCommand(raw, "CeilingUpdate")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	upd, ok := cmd.(*event.CeilingUpdate)
	if !ok {
		t.Fatalf("got %T, want *event.CeilingUpdate", cmd)
	}
	if upd.Line.String() != "1000000000000000000000" {
		t.Errorf("line: got %s, want 1000000000000000000000", upd.Line)
	}
	if upd.IdempotencyKey() != "line:ETH-A:7" {
		t.Errorf("idempotency key: got %q, want %q", upd.IdempotencyKey(), "line:ETH-A:7")
	}
}

func TestParse_CeilingUpdateZeroLine(t *testing.T) {
	// A zero line is a valid publication: it halts further draws.
	raw := rawFromJSON(`{"ilk": "ETH-A", "line_wad": "0", "sequence": 8, "timestamp_us": 1}`)
	if _, err := ingestion.ParseRawCommand(raw, "CeilingUpdate"); err != nil {
		t.Errorf("zero line should parse: %v", err)
	}
}

// ============================================================================
// Test: rejected payloads
// ============================================================================

func TestParse_BadUUID(t *testing.T) {
	raw := rawFromJSON(`{"cmd_id": "not-a-uuid", "ilk": "ETH-A", "caller": "ops/admin", "wad": "1", "timestamp_us": 1}`)
	if _, err := ingestion.ParseRawCommand(raw, "Draw"); err == nil {
		t.Error("bad cmd_id should fail")
	}
}

func TestParse_BadAmounts(t *testing.T) {
	cases := map[string]string{
		"non-decimal": `"50.5"`,
		"float-ish":   `"5e19"`,
		"negative":    `"-1"`,
		"zero":        `"0"`,
		"empty":       `""`,
	}
	for name, wadJSON := range cases {
		raw := rawFromJSON(`{"cmd_id": "c61a9a43-9fbb-4271-94cb-69db2c717b6b", "ilk": "ETH-A", "caller": "ops/admin", "wad": ` + wadJSON + `, "timestamp_us": 1}`)
		if _, err := ingestion.ParseRawCommand(raw, "Draw"); err == nil {
			t.Errorf("%s wad should fail", name)
		}
	}
}

func TestParse_NegativeLine(t *testing.T) {
	raw := rawFromJSON(`{"ilk": "ETH-A", "line_wad": "-1", "sequence": 1, "timestamp_us": 1}`)
	if _, err := ingestion.ParseRawCommand(raw, "CeilingUpdate"); err == nil {
		t.Error("negative line should fail")
	}
}

func TestParse_EmptyIlk(t *testing.T) {
	raw := rawFromJSON(`{"cmd_id": "c61a9a43-9fbb-4271-94cb-69db2c717b6b", "caller": "ops/admin", "timestamp_us": 1}`)
	if _, err := ingestion.ParseRawCommand(raw, "Init"); err == nil {
		t.Error("empty ilk should fail")
	}
}

func TestParse_UnknownCommandType(t *testing.T) {
	raw := rawFromJSON(`{}`)
	_, err := ingestion.ParseRawCommand(raw, "Liquidate")
	if err == nil {
		t.Fatal("unknown command type should fail")
	}
	if !strings.Contains(err.Error(), "unknown command type") {
		t.Errorf("got %q, want mention of unknown command type", err)
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	raw := rawFromJSON(`{"cmd_id": `)
	if _, err := ingestion.ParseRawCommand(raw, "Draw"); err == nil {
		t.Error("malformed JSON should fail")
	}
}
