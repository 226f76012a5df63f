package classifier

import (
	"fmt"
	"os"
	"strings"

	"github.com/r-ms/detect-spam/internal/verdict"
)

// TextPlaceholder marks where the message goes in a prompt template.
const TextPlaceholder = "{text}"

const twoLineTemplate = `
Определите, содержит ли следующий текст признаки спама. Сообщения считаются спамом, если они:
- Имитируют названия веб-сайтов, но написаны с пробелами или точками, например: 'B ET WIN. РУ'
- Смешивают русские и английские буквы для обхода фильтров
- Содержат нецензурную брань
- Используют комбинации букв, похожие на доменные имена

Ответьте РОВНО ДВУМЯ СТРОКАМИ:
- Первая строка: только "true", если сообщение содержит признаки спама
- Вторая строка: признак, который содержит или "FALSE"

Не включайте никакого дополнительного текста, пояснений или комментариев.

Текст для анализа: '{text}'
`

const jsonTemplate = `
Определите, содержит ли следующий текст признаки спама. Сообщения считаются спамом, если они:
- Имитируют названия веб-сайтов, но написаны с пробелами или точками, например: 'B ET WIN. РУ'
- Смешивают русские и английские буквы для обхода фильтров
- Содержат нецензурную брань
- Используют комбинации букв, похожие на доменные имена

Ответьте ТОЛЬКО JSON-объектом вида:
{"is_spam": true или false, "reason": "найденный признак спама или краткое пояснение"}

Не включайте никакого дополнительного текста, пояснений или комментариев.

Текст для анализа: '{text}'
`

// Prompt renders the instruction sent to the model for one message.
type Prompt struct {
	template string
}

// DefaultPrompt returns the built-in template asking for the given format.
func DefaultPrompt(format verdict.Format) *Prompt {
	if format == verdict.FormatJSON {
		return &Prompt{template: jsonTemplate}
	}
	return &Prompt{template: twoLineTemplate}
}

// NewPrompt validates a custom template.
func NewPrompt(template string) (*Prompt, error) {
	if !strings.Contains(template, TextPlaceholder) {
		return nil, fmt.Errorf("prompt template has no %s placeholder", TextPlaceholder)
	}
	return &Prompt{template: template}, nil
}

// LoadPrompt reads a template from path, or returns the default for format
// when path is empty.
func LoadPrompt(path string, format verdict.Format) (*Prompt, error) {
	if path == "" {
		return DefaultPrompt(format), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt file: %w", err)
	}
	return NewPrompt(string(data))
}

// Render substitutes text for every placeholder.
func (p *Prompt) Render(text string) string {
	return strings.ReplaceAll(p.template, TextPlaceholder, text)
}
