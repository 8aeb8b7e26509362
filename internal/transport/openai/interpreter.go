package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/zakupki-tools/tendex/internal/domain"
)

// interpreterPrompt instructs the model to decompose a procurement query
// into a free-text part and structured filters. The model answers with a
// single JSON object and nothing else.
const interpreterPrompt = `Ты помощник поиска по базе государственных закупок России.
Разбери запрос пользователя на составляющие и верни ТОЛЬКО JSON-объект без пояснений:
{
  "query": "что ищут, своими словами (обязательное поле)",
  "customer": "название заказчика, если запрос про конкретного заказчика, иначе null",
  "region": "код региона (число строкой), если указан, иначе null",
  "date": "дата добавления в формате YYYY-MM-DD, если указана, иначе null",
  "min_price": минимальная цена числом или null,
  "max_price": максимальная цена числом или null,
  "document": "44-ФЗ или 223-ФЗ, если указан закон, иначе null",
  "type": "способ закупки (аукцион, конкурс, запрос котировок...), если указан, иначе null",
  "okpd2": "код ОКПД2, если указан, иначе null",
  "inn": "ИНН заказчика, если указан, иначе null",
  "keywords": ["ключевые", "слова"] или null
}`

// Interpreter turns raw user queries into structured search intents via
// a chat completion.
type Interpreter struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewInterpreter creates an LLM-backed query interpreter sharing the
// embedder's client configuration.
func NewInterpreter(cfg *Config, model string) *Interpreter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Interpreter{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: cfg.Logger,
	}
}

// Parse decomposes the raw query. The caller treats any error as a signal
// to degrade to an unfiltered raw-text search, so errors here carry
// domain.ErrInterpreterError.
func (i *Interpreter) Parse(ctx context.Context, rawQuery, regionHint string) (domain.Intent, error) {
	resp, err := i.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: i.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: interpreterPrompt},
			{Role: openai.ChatMessageRoleUser, Content: rawQuery},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return domain.Intent{}, fmt.Errorf("chat completion: %v: %w", err, domain.ErrInterpreterError)
	}
	if len(resp.Choices) == 0 {
		return domain.Intent{}, fmt.Errorf("empty completion: %w", domain.ErrInterpreterError)
	}

	intent, err := intentFromJSON(resp.Choices[0].Message.Content, rawQuery, regionHint)
	if err != nil {
		return domain.Intent{}, err
	}
	return intent, nil
}

// parsedQuery mirrors the JSON contract of interpreterPrompt.
type parsedQuery struct {
	Query    string   `json:"query"`
	Customer string   `json:"customer"`
	Region   string   `json:"region"`
	Date     string   `json:"date"`
	MinPrice *float64 `json:"min_price"`
	MaxPrice *float64 `json:"max_price"`
	Document string   `json:"document"`
	Type     string   `json:"type"`
	OKPD2    string   `json:"okpd2"`
	INN      string   `json:"inn"`
	Keywords []string `json:"keywords"`
}

// intentFromJSON converts the model output to an intent. A missing or
// empty "query" falls back to the raw query; an explicit region in the
// query wins over the region hint from the request.
func intentFromJSON(content, rawQuery, regionHint string) (domain.Intent, error) {
	content = stripCodeFence(content)

	var p parsedQuery
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return domain.Intent{}, fmt.Errorf("parse completion JSON: %v: %w", err, domain.ErrInterpreterError)
	}

	freeText := strings.TrimSpace(p.Query)
	if freeText == "" {
		freeText = rawQuery
	}
	region := strings.TrimSpace(p.Region)
	if region == "" {
		region = regionHint
	}

	return domain.Intent{
		FreeText:       freeText,
		CustomerText:   strings.TrimSpace(p.Customer),
		Region:         region,
		Date:           strings.TrimSpace(p.Date),
		MinPrice:       p.MinPrice,
		MaxPrice:       p.MaxPrice,
		LawType:        strings.TrimSpace(p.Document),
		PurchaseMethod: strings.TrimSpace(p.Type),
		OKPD2Code:      strings.TrimSpace(p.OKPD2),
		CustomerINN:    strings.TrimSpace(p.INN),
		Keywords:       p.Keywords,
	}, nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add even
// in JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
