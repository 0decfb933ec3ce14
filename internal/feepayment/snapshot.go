package feepayment

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// snapshot is the audit document kept in raw_response. The initiation block
// survives every later write so a receipt can be rebuilt from the row alone.
type snapshot struct {
	Initiation   *initiationAudit `json:"initiation,omitempty"`
	Gateway      json.RawMessage  `json:"gateway,omitempty"`
	Verification json.RawMessage  `json:"verification,omitempty"`
}

type initiationAudit struct {
	Payer       payerContact `json:"payer"`
	StudentName string       `json:"student_name"`
	OriginURL   string       `json:"origin_url"`
	InitiatedAt time.Time    `json:"initiated_at"`
}

type payerContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func decodeSnapshot(raw datatypes.JSON) snapshot {
	var s snapshot
	if len(raw) == 0 {
		return s
	}
	// Older rows may carry an arbitrary body; they simply have no initiation block.
	_ = json.Unmarshal(raw, &s)
	return s
}

func (s snapshot) encode() datatypes.JSON {
	s.Gateway = asJSON(s.Gateway)
	s.Verification = asJSON(s.Verification)
	b, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

func asJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || json.Valid(raw) {
		return raw
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}
