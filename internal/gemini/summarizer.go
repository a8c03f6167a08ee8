// Package gemini はGemini APIによるメッセージ要約を提供する。
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	// DefaultModel はモデル未指定時に使用するモデル名。
	DefaultModel = "gemini-2.5-flash"
	// maxContentRunes はプロンプトに含める本文の上限（rune単位）。
	maxContentRunes = 30000
)

var (
	// ErrNotConfigured はAPIキーが未設定であることを示す。
	ErrNotConfigured = errors.New("gemini api key is not configured")
	// ErrEmptyContent は要約対象の本文が空であることを示す。
	ErrEmptyContent = errors.New("content is empty")
)

// Generator はテキスト生成のインターフェース。テスト時にモックに差し替え可能。
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// genaiGenerator はgenaiクライアントを使用するGeneratorの実装。
type genaiGenerator struct {
	client *genai.Client
}

// Generate はプロンプトを送信し、応答のテキスト部分のみを返す。
func (g *genaiGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	res, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return res.Text(), nil
}

// Summarizer はメッセージ本文の要約を生成する。
type Summarizer struct {
	generator Generator
	model     string
}

// NewSummarizer はGemini APIバックエンドのSummarizerを生成する。
// APIキーが空の場合は未設定状態のSummarizerを返し、要約時にErrNotConfiguredとなる。
func NewSummarizer(ctx context.Context, apiKey, model string) (*Summarizer, error) {
	if model == "" {
		model = DefaultModel
	}
	if apiKey == "" {
		return &Summarizer{model: model}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Summarizer{generator: &genaiGenerator{client: client}, model: model}, nil
}

// NewSummarizerWithGenerator は任意のGeneratorでSummarizerを生成する。
func NewSummarizerWithGenerator(generator Generator, model string) *Summarizer {
	if model == "" {
		model = DefaultModel
	}
	return &Summarizer{generator: generator, model: model}
}

// Configured は要約可能な状態かを返す。
func (s *Summarizer) Configured() bool {
	return s.generator != nil
}

// Summarize はメッセージ種別に応じたプロンプトで本文を要約する。
// モデルの応答が空の場合はエラーを返す。
func (s *Summarizer) Summarize(ctx context.Context, content, messageType string) (string, error) {
	if !s.Configured() {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}

	text, err := s.generator.Generate(ctx, s.model, BuildPrompt(content, messageType))
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("gemini returned empty text")
	}
	return text, nil
}

// BuildPrompt は要約用のプロンプトを組み立てる。
// 本文はmaxContentRunesで切り詰める。
func BuildPrompt(content, messageType string) string {
	kind := strings.ToUpper(strings.TrimSpace(messageType))
	if kind == "" {
		kind = "military administrative"
	}

	runes := []rune(strings.TrimSpace(content))
	if len(runes) > maxContentRunes {
		runes = runes[:maxContentRunes]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following %s message for service members.\n", kind)
	b.WriteString("List the purpose, who is affected, required actions, and key dates.\n")
	b.WriteString("Use plain language and keep it under 200 words.\n\n")
	b.WriteString("Message:\n")
	b.WriteString(string(runes))
	return b.String()
}
