package resume

import (
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/interviewman/internal/model"
)

// TestExtractDocumentText_Plain はテキストファイルがそのまま抽出されること
// を検証する。
func TestExtractDocumentText_Plain(t *testing.T) {
	content := "Taro Yamada is a senior engineer with seven years of backend experience in Go and PostgreSQL."

	result, err := ExtractDocumentText("resume.txt", []byte(content))
	if err != nil {
		t.Fatalf("ExtractDocumentText failed: %v", err)
	}
	if result.Text != content {
		t.Errorf("Text = %q, want original content", result.Text)
	}
	if !result.OK {
		t.Error("result should be confident for a full sentence")
	}
}

// TestExtractDocumentText_HTML はHTMLからテキストノードのみが抽出され、
// script/style配下が除外されることを検証する。
func TestExtractDocumentText_HTML(t *testing.T) {
	rawHTML := `<html><head>
<style>body { color: red; }</style>
<script>console.log("tracking");</script>
</head><body>
<h1>Taro Yamada</h1>
<p>Senior engineer with seven years of experience building web services in Go.</p>
</body></html>`

	result, err := ExtractDocumentText("resume.html", []byte(rawHTML))
	if err != nil {
		t.Fatalf("ExtractDocumentText failed: %v", err)
	}
	if strings.Contains(result.Text, "color: red") {
		t.Errorf("style content should be excluded: %q", result.Text)
	}
	if strings.Contains(result.Text, "tracking") {
		t.Errorf("script content should be excluded: %q", result.Text)
	}
	if !strings.Contains(result.Text, "Taro Yamada") {
		t.Errorf("heading text missing from %q", result.Text)
	}
	if !strings.Contains(result.Text, "seven years") {
		t.Errorf("paragraph text missing from %q", result.Text)
	}
}

// TestExtractDocumentText_Unsupported は未対応の拡張子でAPIErrorが返ること
// を検証する。
func TestExtractDocumentText_Unsupported(t *testing.T) {
	_, err := ExtractDocumentText("resume.pdf", []byte("%PDF-1.4"))
	if err == nil {
		t.Fatal("expected error for pdf")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeUnsupportedFormat {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeUnsupportedFormat)
	}
}

// TestExtractDocumentText_LowConfidence は短いテキストや語数の少ない
// テキストがOK=falseになることを検証する。
func TestExtractDocumentText_LowConfidence(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"too short", "Taro Yamada"},
		{"few words", "averyverylongsingletokenwithoutanyspacesatallinsideit_goeshere"},
		{"empty", "   \n\n  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExtractDocumentText("resume.txt", []byte(tt.content))
			if err != nil {
				t.Fatalf("ExtractDocumentText failed: %v", err)
			}
			if result.OK {
				t.Errorf("result.OK = true for %q, want false", tt.content)
			}
		})
	}
}
