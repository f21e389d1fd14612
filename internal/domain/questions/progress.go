package questions

// Stage enum for a single-file run
type Stage string

const (
	StageUploading  Stage = "uploading"
	StageExtracting Stage = "extracting"
	StageEnhancing  Stage = "enhancing"
	StageAnalyzing  Stage = "analyzing"
	StageEnriching  Stage = "enriching"
	StageDone       Stage = "done"
	StageSkipped    Stage = "skipped"
	StageError      Stage = "error"
)

// Progress is one event of the progress stream.
type Progress struct {
	Percent          int    `json:"percent"`
	Label            string `json:"label"`
	Stage            Stage  `json:"stage"`
	CurrentFileIndex int    `json:"currentFileIndex"`
	TotalFiles       int    `json:"totalFiles"`
}

// fraction of a file's progress span reached when a stage starts
var stageFraction = map[Stage]float64{
	StageUploading:  0.0,
	StageExtracting: 0.1,
	StageEnhancing:  0.3,
	StageAnalyzing:  0.55,
	StageEnriching:  0.8,
	StageDone:       1.0,
	StageSkipped:    1.0,
	StageError:      1.0,
}

// Fraction returns how far into a file's span the stage sits (0..1).
func (s Stage) Fraction() float64 {
	return stageFraction[s]
}
