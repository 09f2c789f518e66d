package models

// TeamDetail pairs a club identifier with its resolved display name.
type TeamDetail struct {
	ClubID   string `json:"clubId"`
	ClubName string `json:"clubName"`
}

// WorkflowResult summarises a completed run. All paths are relative to
// the managed data root so they can be fed to the download endpoint.
// Immutable once constructed.
type WorkflowResult struct {
	Teams          []TeamDetail `json:"teams"`
	ClubIDsCSV     string       `json:"clubIdsCsv"`
	GeneratedCSVs  []string     `json:"generatedCsvs"`
	AugmentedCSVs  []string     `json:"augmentedCsvs"`
	Workbook       string       `json:"workbook"`
	SelectedFields []string     `json:"selectedFields"`
}
