package dto

// OCRStatusResponse reports which OCR engines can run on this host.
type OCRStatusResponse struct {
	TesseractAvailable       bool `json:"tesseract_available"`
	DockerTesseractAvailable bool `json:"docker_tesseract_available"`
	Available                bool `json:"available"`
}

// OCRPageResult describes the outcome for one uploaded page.
type OCRPageResult struct {
	Page       int    `json:"page"`
	Engine     string `json:"engine,omitempty"`
	Text       string `json:"text"`
	WordCount  int    `json:"word_count"`
	CharCount  int    `json:"char_count"`
	Error      string `json:"error,omitempty"`
	NoTextSeen bool   `json:"no_text_detected,omitempty"`
}

// OCRExtractResponse is the combined extraction of every uploaded page.
// Text is ready to be reviewed and submitted as an essay.
type OCRExtractResponse struct {
	Text       string          `json:"text"`
	Pages      []OCRPageResult `json:"pages"`
	TotalWords int             `json:"total_words"`
	TotalChars int             `json:"total_chars"`
}
