package sol

// SystemProgramID is the program every plain transfer instruction targets.
const SystemProgramID = "11111111111111111111111111111112"

// TransferInstruction is the unsigned instruction returned to clients. The
// client signs and broadcasts it; this service never holds a connection able
// to broadcast on the caller's behalf.
type TransferInstruction struct {
	Type       string `json:"type"`
	FromPubkey string `json:"fromPubkey"`
	ToPubkey   string `json:"toPubkey"`
	Lamports   uint64 `json:"lamports"`
	ProgramID  string `json:"programId"`
}

// NewTransferInstruction builds the unsigned transfer instruction for the
// given endpoints and amount in lamports.
func NewTransferInstruction(from, to string, lamports uint64) TransferInstruction {
	return TransferInstruction{
		Type:       "transfer",
		FromPubkey: from,
		ToPubkey:   to,
		Lamports:   lamports,
		ProgramID:  SystemProgramID,
	}
}
