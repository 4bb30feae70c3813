package ingestion

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"VaultCore/internal/event"
)

// ParseRawCommand converts a RawCommand (JSON bytes + command type string)
// into a typed event.Command. The ingestion shell validates, parses, and
// converts messages before they reach the engine.
func ParseRawCommand(raw RawCommand, commandType string) (event.Command, error) {
	switch commandType {
	case "Init":
		return parseInit(raw.Data)
	case "Draw":
		return parseDraw(raw.Data)
	case "Wipe":
		return parseWipe(raw.Data)
	case "CeilingUpdate":
		return parseCeilingUpdate(raw.Data)
	default:
		return nil, fmt.Errorf("unknown command type: %s", commandType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers. Wads and rays are
// decimal strings: they exceed int64 and must never pass through a float.

type initCommandJSON struct {
	CmdID       string `json:"cmd_id"`
	Ilk         string `json:"ilk"`
	Caller      string `json:"caller"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseInit(data []byte) (*event.InitCommand, error) {
	var j initCommandJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Init: %w", err)
	}
	cmdID, err := uuid.Parse(j.CmdID)
	if err != nil {
		return nil, fmt.Errorf("parse cmd_id: %w", err)
	}
	if j.Ilk == "" {
		return nil, fmt.Errorf("parse Init: empty ilk")
	}
	return &event.InitCommand{
		CmdID:     cmdID,
		IlkID:     j.Ilk,
		Caller:    j.Caller,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type amountCommandJSON struct {
	CmdID       string `json:"cmd_id"`
	Ilk         string `json:"ilk"`
	Caller      string `json:"caller"`
	Wad         string `json:"wad"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseDraw(data []byte) (*event.DrawCommand, error) {
	var j amountCommandJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Draw: %w", err)
	}
	cmdID, err := uuid.Parse(j.CmdID)
	if err != nil {
		return nil, fmt.Errorf("parse cmd_id: %w", err)
	}
	wad, err := parseAmount(j.Wad)
	if err != nil {
		return nil, fmt.Errorf("parse wad: %w", err)
	}
	return &event.DrawCommand{
		CmdID:     cmdID,
		IlkID:     j.Ilk,
		Caller:    j.Caller,
		Wad:       wad,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

func parseWipe(data []byte) (*event.WipeCommand, error) {
	var j amountCommandJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Wipe: %w", err)
	}
	cmdID, err := uuid.Parse(j.CmdID)
	if err != nil {
		return nil, fmt.Errorf("parse cmd_id: %w", err)
	}
	wad, err := parseAmount(j.Wad)
	if err != nil {
		return nil, fmt.Errorf("parse wad: %w", err)
	}
	return &event.WipeCommand{
		CmdID:     cmdID,
		IlkID:     j.Ilk,
		Caller:    j.Caller,
		Wad:       wad,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type ceilingUpdateJSON struct {
	Ilk         string `json:"ilk"`
	LineWad     string `json:"line_wad"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseCeilingUpdate(data []byte) (*event.CeilingUpdate, error) {
	var j ceilingUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CeilingUpdate: %w", err)
	}
	if j.Ilk == "" {
		return nil, fmt.Errorf("parse CeilingUpdate: empty ilk")
	}
	line, ok := new(big.Int).SetString(j.LineWad, 10)
	if !ok {
		return nil, fmt.Errorf("parse line_wad: not a decimal integer: %q", j.LineWad)
	}
	if line.Sign() < 0 {
		return nil, fmt.Errorf("parse line_wad: negative: %q", j.LineWad)
	}
	return &event.CeilingUpdate{
		IlkID:     j.Ilk,
		Line:      line,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

// parseAmount reads a strictly positive decimal-string integer.
func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not a decimal integer: %q", s)
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive: %q", s)
	}
	return v, nil
}
