package models

// FailureGroup collects failed or timed-out jobs of one batch that share a
// normalized failure reason.
type FailureGroup struct {
	Fingerprint  string    `json:"fingerprint"`
	Outcome      JobStatus `json:"outcome"`
	Count        int       `json:"count"`
	SampleReason string    `json:"sample_reason"`
	Effects      []string  `json:"effects"`
	AssetNames   []string  `json:"asset_names"`
	JobOrdinals  []int     `json:"job_ordinals"`
}
