package model

// IssueRequest asks for one issuance attempt. Addresses are base58.
//
// Proof siblings are hex, leaf side first.
type IssueRequest struct {
	Variant  string   `json:"variant"`
	Claimant string   `json:"claimant"`
	Mint     string   `json:"mint"`
	Round    uint8    `json:"round"`
	Position *uint16  `json:"position,omitempty"`
	Proof    []string `json:"proof"`
}

// Receipt reports one attempt, successful or not.
type Receipt struct {
	AttemptID string      `json:"attemptID"`
	Variant   string      `json:"variant"`
	Opcode    byte        `json:"opcode"`
	Round     uint8       `json:"round"`
	Claimant  string      `json:"claimant"`
	Mint      string      `json:"mint"`
	Holding   string      `json:"holding,omitempty"`
	Record    string      `json:"record,omitempty"`
	Trace     []string    `json:"trace"`
	Committed bool        `json:"committed"`
	Error     *CodedError `json:"error,omitempty"`
}

// RecordView is the decoded content of one ledger record.
type RecordView struct {
	Address   string `json:"address"`
	Schema    string `json:"schema"`
	Round     uint8  `json:"round"`
	Claimant  string `json:"claimant"`
	Kind      string `json:"kind"`
	Issued    bool   `json:"issued"`
	Reference string `json:"reference,omitempty"`
	Deposit   uint64 `json:"deposit"`
}
