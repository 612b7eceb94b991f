package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// refusalPhrases mark a model response that declined the task.
var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// contentGenerator is the part of *genai.GenerativeModel the OCR reader uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// OCRReader transcribes single-page PDFs with Gemini. It satisfies
// pdftext.PageReader.
type OCRReader struct {
	model  contentGenerator
	prompt string
	logger *slog.Logger
}

// NewOCRReader wraps model. prompt is sent with every page.
func NewOCRReader(model *genai.GenerativeModel, prompt string, logger *slog.Logger) *OCRReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRReader{model: model, prompt: prompt, logger: logger}
}

// ReadPage returns the transcribed text of pagePDF.
func (r *OCRReader) ReadPage(ctx context.Context, pagePDF []byte, pageNr int) (string, error) {
	logCtx := r.logger.With("page", pageNr)
	logCtx.Info("Sending page to OCR.", "bytes", len(pagePDF))

	resp, err := r.model.GenerateContent(ctx,
		genai.Blob{MIMEType: "application/pdf", Data: pagePDF},
		genai.Text(r.prompt),
	)
	if err != nil {
		logCtx.Error("Failed calling Vertex AI", "error", err)
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}

	text := extractText(resp, logCtx)
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			err := fmt.Errorf("gemini response indicates refusal for page %d", pageNr)
			logCtx.Error("OCR refused", "error", err, "response", text)
			return "", err
		}
	}
	if text == "" {
		logCtx.Warn("No text in OCR response. Treating as empty page.")
	}
	return text, nil
}

// extractText concatenates the text parts of the first candidate and strips
// code fences the model sometimes adds.
func extractText(resp *genai.GenerateContentResponse, logCtx *slog.Logger) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}

	var b strings.Builder
	var textParts int
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
			textParts++
		}
	}
	if textParts > 1 {
		logCtx.Warn("Gemini response contained several text parts; they have been concatenated.", "parts", textParts)
	}

	s := strings.TrimSpace(b.String())
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
