package telegram

import "strings"

// messageLimit — лимит Bot API на длину текстового сообщения в рунах.
const messageLimit = 4096

// SplitMessage режет текст на части в пределах лимита платформы.
// Разрез по возможности проходит по границе строки, чтобы не рвать блоки.
func SplitMessage(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	runes := []rune(trimmed)
	if len(runes) <= messageLimit {
		return []string{trimmed}
	}

	var parts []string
	start := 0
	for start < len(runes) {
		end := start + messageLimit
		if end >= len(runes) {
			end = len(runes)
		} else if nl := lastNewline(runes, start, end); nl > start {
			end = nl
		}
		if chunk := strings.Trim(string(runes[start:end]), "\n"); chunk != "" {
			parts = append(parts, chunk)
		}
		start = end
		for start < len(runes) && runes[start] == '\n' {
			start++
		}
	}
	if len(parts) == 0 {
		return []string{trimmed}
	}
	return parts
}

// lastNewline возвращает позицию сразу после последнего перевода строки в
// интервале (start, end], либо -1.
func lastNewline(runes []rune, start, end int) int {
	for i := end; i > start; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	return -1
}
