package stages

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"perfumevisual/internal/domain"
)

const (
	// BackgroundRemovalPrompt is sent with every background removal job.
	BackgroundRemovalPrompt = "In the image, there is a perfume bottle. Remove the background and keep only the bottle! Do not change any existing labels or text on the bottle, and do not add any new elements or writings."

	// ConceptPlaceholder is used when the concept reply is missing its labels.
	ConceptPlaceholder = "Визуал для парфюма"

	conceptLabel = "КОНЦЕПЦИЯ:"
	promptLabel  = "ПРОМТ:"

	stylizeTemplateLimit = 400
	stylizeDefaultLimit  = 200
)

// TruncateRunes cuts s to at most n characters without splitting a rune.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// ApplyTemplate substitutes the description placeholder, truncating the
// description to limit characters.
func ApplyTemplate(template, description string, limit int) string {
	return strings.ReplaceAll(template, domain.DescriptionPlaceholder, TruncateRunes(description, limit))
}

// StylizePrompt renders the stylization prompt from a template or the default.
func StylizePrompt(template, description string) string {
	if strings.TrimSpace(template) != "" {
		return ApplyTemplate(template, description, stylizeTemplateLimit)
	}
	return fmt.Sprintf(`Transform this perfume bottle image by adding a stunning, vibrant, artistic background while keeping the bottle EXACTLY as it is - same shape, same color, same text, same position.

Create a beautiful atmospheric background that captures the mood and essence of this fragrance: %s

The background should feature: vivid elegant colors with glowing bokeh lights in pink, purple, gold, and blue tones, soft dreamy blur, sophisticated luxury ambiance, professional studio lighting with colored gels, cinematic composition. Make it look like high-end commercial perfume advertising photography with magazine quality.

IMPORTANT: Do NOT change the perfume bottle itself - keep it identical to the input. Only transform the background behind it!`, TruncateRunes(description, stylizeDefaultLimit))
}

// ConceptPrompt asks the text model for a one-shot video concept and a
// short technical prompt for the video model.
func ConceptPrompt(brand, name, description string) string {
	return fmt.Sprintf(`Придумай интересный однокадровый визуал длинной 5 секунд для парфюма %s %s соответствующий описанию: %s

И составь по нему МАКСИМАЛЬНО КРАТКИЙ технический промт для AI seedance-1-pro на английском языке.

Промт должен быть в стиле:
- Описание движения камеры (tracking shot, dolly, static, etc)
- Конкретные объекты в кадре
- Технические детали (shallow focus, depth of field, lighting)
- Стиль (cinematic, commercial, photorealistic)
- БЕЗ лирики, только технические описания

Пример стиля промта:
"Low angle tracking shot: perfume bottle on marble surface, rose petals, golden light rays. Camera slowly orbits around bottle. Shallow focus, luxury commercial style, depth of field, moody lighting."

Формат ответа:
%s [краткое описание на русском]
%s [краткий технический промт на английском, максимум 2-3 предложения]`, brand, name, description, conceptLabel, promptLabel)
}

// CaptionPrompt renders the caption prompt from a template or the default.
func CaptionPrompt(template, brand, name, description string) string {
	if strings.TrimSpace(template) != "" {
		return strings.ReplaceAll(template, domain.DescriptionPlaceholder, description)
	}
	return fmt.Sprintf(`Создай продающий пост для Telegram канала о парфюме %s %s.

Описание аромата: %s

Требования:
- Текст должен быть живым и эмоциональным
- Вызывать желание купить
- Подчеркивать уникальность аромата
- Использовать емодзи (но не переборщить)
- Длина: 3-5 предложений
- Стиль: casual, но профессионально

Формат ответа: только текст поста, без заголовков и пояснений.`, brand, name, description)
}
