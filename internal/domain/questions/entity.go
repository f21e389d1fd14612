package questions

import "time"

// QuestionID tipe untuk Question
type QuestionID string

// UnknownYear dipakai kalau tahun soal tidak bisa ditentukan
const UnknownYear = "Unknown"

// Video value object hasil pencarian video edukasi
type Video struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

// Question is one classified question. It is never mutated after analysis.
type Question struct {
	ID       QuestionID `json:"id"`
	Text     string     `json:"text"`
	Year     string     `json:"year"`
	Subject  string     `json:"subject"`
	Topics   []string   `json:"topics"`
	Keywords []string   `json:"keywords"`
	Videos   []Video    `json:"videos,omitempty"`
	Source   string     `json:"source,omitempty"`
}

// QuestionTopic is a derived frequency entry over a question list.
type QuestionTopic struct {
	Name        string       `json:"name"`
	Count       int          `json:"count"`
	QuestionIDs []QuestionID `json:"questionIds"`
}

// AnalysisResult pasangan questions + topics dari satu run
type AnalysisResult struct {
	Questions []Question      `json:"questions"`
	Topics    []QuestionTopic `json:"topics"`
}

// Empty reports whether the result carries no questions.
func (r *AnalysisResult) Empty() bool {
	return r == nil || len(r.Questions) == 0
}

// RecentResult snapshot bernama untuk quick-load
type RecentResult struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Timestamp time.Time      `json:"timestamp"`
	Result    AnalysisResult `json:"result"`
}

// Candidate is classifier output before ids and years are resolved.
type Candidate struct {
	Text     string   `json:"question"`
	Year     string   `json:"year,omitempty"`
	Subject  string   `json:"subject,omitempty"`
	Topics   []string `json:"topics,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// File adalah upload mentah (PDF atau gambar)
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Page satu halaman hasil ekstraksi, nomor mulai dari 1
type Page struct {
	Number int    `json:"pageNumber"`
	Text   string `json:"text"`
}

// Filter untuk daftar soal
type Filter struct {
	Subject string
	Year    string
	Topic   string
	Query   string
}
