package dto

// Import modes.
const (
	ImportModeSync    = "sync"
	ImportModeReplace = "replace"
)

// ImportRequest describes a spreadsheet upload.
type ImportRequest struct {
	FileName string
	Mode     string
	DryRun   bool
}

// RowError explains why a spreadsheet row was skipped. Row is the 1-based
// sheet row, header included.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ImportReport is the outcome of an import or a dry run.
type ImportReport struct {
	FileName  string     `json:"file_name"`
	Mode      string     `json:"mode"`
	DryRun    bool       `json:"dry_run"`
	Rows      int        `json:"rows"`
	Inserted  int        `json:"inserted"`
	Updated   int        `json:"updated"`
	Unchanged int        `json:"unchanged"`
	Deleted   int        `json:"deleted"`
	Skipped   int        `json:"skipped"`
	Errors    []RowError `json:"errors,omitempty"`
}
