package models

// SentinelUnavailable is substituted for identity fields the scanner did not
// report. Absence of identity data is never fatal.
const SentinelUnavailable = "unavailable"

// Identity holds the identifying fields of the analyzed binary
type Identity struct {
	SHA256      string `json:"sha256"`       // content hash of the APK
	PackageName string `json:"package_name"` // e.g. "com.example.app"
	EntryPoint  string `json:"entry_point"`  // main activity / entry class
}

// AnalysisReport is the static-analysis report produced by the external
// scanner for one binary. It is immutable input to the pipeline.
type AnalysisReport struct {
	Identity    Identity       `json:"identity"`
	Permissions []string       `json:"permissions"` // e.g. "android.permission.SEND_SMS"
	Opcodes     map[string]int `json:"opcodes"`     // opcode name -> occurrence count
	APICalls    map[string]int `json:"api_calls"`   // API call name -> occurrence count
}

// Empty reports true when the report carries no analyzable content.
// Identity alone is not enough to classify against.
func (r *AnalysisReport) Empty() bool {
	if r == nil {
		return true
	}
	return len(r.Permissions) == 0 && len(r.Opcodes) == 0 && len(r.APICalls) == 0
}

// Prediction labels as encoded by the trained model
const (
	LabelBenign  = 0
	LabelMalware = 1
)

// VerdictString converts a model label to a human-readable verdict
func VerdictString(label int) string {
	if label == LabelMalware {
		return "malware"
	}
	return "benign"
}

// Summary is the per-artifact result handed to presentation layers
type Summary struct {
	Hash                 string   `json:"hash"`
	PackageName          string   `json:"package_name"`
	DangerousPermissions []string `json:"dangerous_permissions"`
	Prediction           int      `json:"prediction"` // 0 = benign, 1 = malware
	Verdict              string   `json:"verdict"`
	KnownMalware         bool     `json:"known_malware"` // hash matched the known-malware set
}
